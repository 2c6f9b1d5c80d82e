package cmd

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/config"
)

func newScanFlagsCommand() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	addScanFlags(c)
	return c
}

func TestApplyScanFlags_OnlyChangedFlagsOverride(t *testing.T) {
	c := newScanFlagsCommand()
	if err := c.Flags().Parse([]string{"--threshold", "0.8", "--batch-size", "10"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Defaults()
	cfg.Cluster.Width = 32
	applyScanFlags(c, cfg)

	if cfg.Cluster.Threshold != 0.8 {
		t.Errorf("threshold = %v, want 0.8", cfg.Cluster.Threshold)
	}
	if cfg.Cluster.BatchSize != 10 {
		t.Errorf("batch size = %d, want 10", cfg.Cluster.BatchSize)
	}
	if cfg.Cluster.Width != 32 {
		t.Errorf("width = %d, want config value 32 to be kept", cfg.Cluster.Width)
	}
}

func TestApplyScanFlags_Concurrency(t *testing.T) {
	c := newScanFlagsCommand()
	if err := c.Flags().Parse([]string{"--concurrency", "3"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Defaults()
	applyScanFlags(c, cfg)

	if cfg.Cluster.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.Cluster.Workers)
	}
}

func TestApplyScanFlags_MissingFlagsIgnored(t *testing.T) {
	c := &cobra.Command{Use: "test"}
	c.Flags().Int("width", 64, "")
	if err := c.Flags().Parse([]string{"--width", "8"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Defaults()
	window := cfg.Cluster.Window
	applyScanFlags(c, cfg)

	if cfg.Cluster.Width != 8 {
		t.Errorf("width = %d, want 8", cfg.Cluster.Width)
	}
	if cfg.Cluster.Window != window {
		t.Errorf("window = %d, want %d", cfg.Cluster.Window, window)
	}
}

func TestDuplicatesOf(t *testing.T) {
	groups := []cluster.Group{
		{Members: []cluster.Member{{ID: "a", Score: 1}, {ID: "b", Score: 0.9}, {ID: "c", Score: 0.8}}},
		{Members: []cluster.Member{{ID: "d", Score: 1}, {ID: "e", Score: 0.7}}},
	}

	got := duplicatesOf(groups)
	want := []string{"b", "c", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if ids := duplicatesOf(nil); len(ids) != 0 {
		t.Errorf("expected no duplicates for no groups, got %v", ids)
	}
}
