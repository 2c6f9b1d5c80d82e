package handlers

import (
	"net/http"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/config"
	"github.com/kozaktomas/samephoto/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config      *config.Config
	runsEnabled bool
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, runsEnabled bool) *ConfigHandler {
	return &ConfigHandler{
		config:      cfg,
		runsEnabled: runsEnabled,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Cluster       cluster.Params `json:"cluster"`
	BatchSize     int            `json:"batch_size"`
	Resampler     string         `json:"resampler"`
	Grayscale     string         `json:"grayscale"`
	ThumbnailSize int            `json:"thumbnail_size"`
	ScanRoot      string         `json:"scan_root,omitempty"`
	RunsEnabled   bool           `json:"runs_enabled"`
	Backends      []string       `json:"backends"`
}

// Get returns the effective clustering defaults
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Cluster:       h.config.ClusterParams(),
		BatchSize:     h.config.Cluster.BatchSize,
		Resampler:     h.config.Cluster.Resampler,
		Grayscale:     h.config.Cluster.Grayscale,
		ThumbnailSize: h.config.Library.ThumbnailSize,
		ScanRoot:      h.config.Web.ScanRoot,
		RunsEnabled:   h.runsEnabled,
		Backends:      database.Backends(),
	}

	respondJSON(w, http.StatusOK, response)
}
