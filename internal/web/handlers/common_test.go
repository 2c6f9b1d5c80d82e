package handlers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/samephoto/internal/cluster"
)

func TestRespondJSON(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, map[string]int{"count": 42})

	assertStatusCode(t, recorder, http.StatusCreated)
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}

	var result map[string]int
	parseJSONResponse(t, recorder, &result)
	if result["count"] != 42 {
		t.Errorf("expected count 42, got %d", result["count"])
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusNoContent, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong")
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("sanitizeForLog() = %q, want %q", got, "abc")
	}
}

func TestParamsFromForm(t *testing.T) {
	base := cluster.Params{Width: 64, Height: 64, Threshold: 0.6, Window: 100}

	tests := []struct {
		name    string
		form    map[string]string
		want    cluster.Params
		wantErr bool
	}{
		{
			name: "defaults",
			form: map[string]string{},
			want: base,
		},
		{
			name: "overrides",
			form: map[string]string{"width": "32", "height": "24", "threshold": "0", "window": "5"},
			want: cluster.Params{Width: 32, Height: 24, Threshold: 0, Window: 5},
		},
		{name: "bad width", form: map[string]string{"width": "wide"}, wantErr: true},
		{name: "bad threshold", form: map[string]string{"threshold": "high"}, wantErr: true},
		{name: "threshold out of range", form: map[string]string{"threshold": "1.5"}, wantErr: true},
		{name: "zero window", form: map[string]string{"window": "0"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := paramsFromForm(func(key string) string { return tc.form[key] }, base)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("paramsFromForm() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestResolveScanRoot(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name      string
		base      string
		requested string
		want      string
		outside   bool
		wantErr   bool
	}{
		{name: "empty request", base: base, requested: "", wantErr: true},
		{name: "no base", base: "", requested: base, want: base},
		{name: "relative to base", base: base, requested: "2024/trip", want: filepath.Join(base, "2024", "trip")},
		{name: "absolute inside", base: base, requested: filepath.Join(base, "a"), want: filepath.Join(base, "a")},
		{name: "base itself", base: base, requested: base, want: base},
		{name: "escapes with dots", base: base, requested: "../elsewhere", outside: true},
		{name: "absolute outside", base: base, requested: filepath.Dir(base), outside: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveScanRoot(tc.base, tc.requested)
			switch {
			case tc.outside:
				if err != errOutsideScanRoot {
					t.Fatalf("expected errOutsideScanRoot, got %v", err)
				}
			case tc.wantErr:
				if err == nil {
					t.Fatal("expected error")
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tc.want {
					t.Errorf("resolveScanRoot() = %q, want %q", got, tc.want)
				}
			}
		})
	}
}
