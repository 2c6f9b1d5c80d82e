package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/samephoto/internal/cluster"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// errOutsideScanRoot is returned by resolveScanRoot for directories outside SCAN_ROOT.
var errOutsideScanRoot = errors.New("directory is outside the allowed scan root")

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// paramsFromForm overrides base with the width, height, threshold and window
// form values that are present and validates the result.
func paramsFromForm(get func(string) string, base cluster.Params) (cluster.Params, error) {
	p := base

	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"width", &p.Width},
		{"height", &p.Height},
		{"window", &p.Window},
	} {
		s := get(field.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return p, fmt.Errorf("invalid %s: %q", field.name, s)
		}
		*field.dst = n
	}

	if s := get("threshold"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return p, fmt.Errorf("invalid threshold: %q", s)
		}
		p.Threshold = f
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// resolveScanRoot turns a requested directory into an absolute path. When base
// is set, relative requests are resolved against it and the result must stay
// below base.
func resolveScanRoot(base, requested string) (string, error) {
	if requested == "" {
		return "", errors.New("root is required")
	}

	if base == "" {
		abs, err := filepath.Abs(requested)
		if err != nil {
			return "", fmt.Errorf("resolving root: %w", err)
		}
		return abs, nil
	}

	base, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolving scan root: %w", err)
	}
	path := requested
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideScanRoot
	}
	return path, nil
}

// isDir reports whether path is an existing directory.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
