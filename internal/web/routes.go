package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/samephoto/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	configHandler := handlers.NewConfigHandler(s.config, s.store != nil)
	uploadHandler := handlers.NewUploadHandler(s.config, s.logger)
	scanHandler := handlers.NewScanHandler(s.config, s.jobManager, s.store, s.logger)
	runsHandler := handlers.NewRunsHandler(s.store, s.logger)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)

		// Synchronous similarity on uploaded files
		r.Post("/compare", uploadHandler.Compare)
		r.Post("/cluster", uploadHandler.Cluster)

		// Scans (long-running operations)
		r.Get("/scans", scanHandler.List)
		r.Post("/scans", scanHandler.Start)
		r.Get("/scans/{jobId}", scanHandler.Status)
		r.Get("/scans/{jobId}/events", scanHandler.Events)
		r.Delete("/scans/{jobId}", scanHandler.Cancel)

		// Stored scan history
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)
		r.Delete("/runs/{id}", runsHandler.Delete)
	})
}
