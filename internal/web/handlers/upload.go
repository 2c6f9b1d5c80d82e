package handlers

import (
	"fmt"
	"image"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/config"
	"github.com/kozaktomas/samephoto/internal/constants"
	"github.com/kozaktomas/samephoto/internal/fingerprint"
	"github.com/kozaktomas/samephoto/internal/logging"
	"github.com/kozaktomas/samephoto/internal/pipeline"
	"github.com/kozaktomas/samephoto/internal/similarity"
)

// UploadHandler compares and clusters images sent as multipart uploads.
type UploadHandler struct {
	config *config.Config
	logger *slog.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(cfg *config.Config, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &UploadHandler{
		config: cfg,
		logger: logger,
	}
}

// pipelineOptions builds pipeline options from the configured extraction settings.
func pipelineOptions(cfg *config.Config, params cluster.Params, batchSize int, logger *slog.Logger) (pipeline.Options, error) {
	resampler, err := fingerprint.ParseResampler(cfg.Cluster.Resampler)
	if err != nil {
		return pipeline.Options{}, err
	}
	gray, err := fingerprint.ParseGrayMode(cfg.Cluster.Grayscale)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Params:    params,
		BatchSize: batchSize,
		Workers:   cfg.Cluster.Workers,
		Resampler: resampler,
		Gray:      gray,
		Logger:    logger,
	}, nil
}

// decodeUploadedFile opens and decodes one multipart file.
func decodeUploadedFile(fileHeader *multipart.FileHeader) (image.Image, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %s", fileHeader.Filename)
	}
	defer file.Close()

	img, _, err := fingerprint.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// readUploadedPhotos decodes files in the order they were sent. A file that
// cannot be decoded keeps its slot with a nil image and is skipped later.
func (h *UploadHandler) readUploadedPhotos(files []*multipart.FileHeader) []pipeline.Photo {
	photos := make([]pipeline.Photo, len(files))
	for i, fileHeader := range files {
		photos[i].ID = filepath.Base(fileHeader.Filename)
		img, err := decodeUploadedFile(fileHeader)
		if err != nil {
			h.logger.Debug("skipping upload", "file", sanitizeForLog(photos[i].ID), "error", err)
			continue
		}
		photos[i].Image = img
	}
	return photos
}

// CompareResponse is the similarity of two uploaded images.
type CompareResponse struct {
	SSIM      float64 `json:"ssim"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Threshold float64 `json:"threshold"`
	Similar   bool    `json:"similar"`
}

// Compare computes the SSIM of the multipart files a and b.
func (h *UploadHandler) Compare(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	params, err := paramsFromForm(r.FormValue, h.config.ClusterParams())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts, err := pipelineOptions(h.config, params, 1, h.logger)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	extractor := fingerprint.Extractor{
		Size:      fingerprint.Size{Width: params.Width, Height: params.Height},
		Resampler: opts.Resampler,
		Gray:      opts.Gray,
	}

	vectors := make([]fingerprint.Vector, 2)
	for i, name := range []string{"a", "b"} {
		files := r.MultipartForm.File[name]
		if len(files) == 0 {
			respondError(w, http.StatusBadRequest, "files a and b are required")
			return
		}

		img, err := decodeUploadedFile(files[0])
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "failed to decode image "+name)
			return
		}

		vec, ok := extractor.Extract(img)
		if !ok {
			respondError(w, http.StatusUnprocessableEntity, "failed to extract features from image "+name)
			return
		}
		vectors[i] = vec
	}

	score, err := similarity.SSIM(vectors[0], vectors[1])
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, CompareResponse{
		SSIM:      score,
		Width:     params.Width,
		Height:    params.Height,
		Threshold: params.Threshold,
		Similar:   score > params.Threshold,
	})
}

// ClusterResponse is the outcome of clustering one uploaded batch.
type ClusterResponse struct {
	Params        cluster.Params  `json:"params"`
	Groups        []cluster.Group `json:"groups"`
	Scanned       int             `json:"scanned"`
	Skipped       int             `json:"skipped"`
	GroupedPhotos int             `json:"grouped_photos"`
}

// Cluster clusters the multipart files as a single batch in upload order.
func (h *UploadHandler) Cluster(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	params, err := paramsFromForm(r.FormValue, h.config.ClusterParams())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}
	if len(files) > constants.MaxClusterUploadFiles {
		respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("too many files: %d (max %d)", len(files), constants.MaxClusterUploadFiles))
		return
	}

	opts, err := pipelineOptions(h.config, params, len(files), h.logger)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p, err := pipeline.New(nil, opts)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := p.ClusterBatch(h.readUploadedPhotos(files))
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("clustering failed: %v", err))
		return
	}

	groups := result.Groups
	if groups == nil {
		groups = []cluster.Group{}
	}
	respondJSON(w, http.StatusOK, ClusterResponse{
		Params:        params,
		Groups:        groups,
		Scanned:       result.Scanned,
		Skipped:       result.Skipped,
		GroupedPhotos: cluster.TotalImages(result.Groups),
	})
}
