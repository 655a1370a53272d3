// Package handlers provides the HTTP API for the ingest service.
package handlers

import (
	"time"

	"github.com/gorilla/mux"

	"media-ingest/internal/assets"
	"media-ingest/internal/config"
	"media-ingest/internal/database"
	"media-ingest/internal/ingest"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	cfg         *config.Config
	store       *database.Store
	coordinator *ingest.Coordinator
	pipeline    *assets.Pipeline
	started     time.Time
}

// New creates a new Handlers instance.
func New(cfg *config.Config, store *database.Store, coordinator *ingest.Coordinator, pipeline *assets.Pipeline) *Handlers {
	return &Handlers{
		cfg:         cfg,
		store:       store,
		coordinator: coordinator,
		pipeline:    pipeline,
		started:     time.Now(),
	}
}

// RegisterRoutes attaches all API and health routes to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheckSimple).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ingest/plan", h.PlanIngest).Methods("POST")
	api.HandleFunc("/ingest/run", h.RunIngest).Methods("POST")
	api.HandleFunc("/assets/generate", h.GenerateAssets).Methods("POST")
	api.HandleFunc("/media", h.ListMedia).Methods("GET")
	api.HandleFunc("/media/{id}", h.GetMedia).Methods("GET")
	api.HandleFunc("/buckets", h.ListBuckets).Methods("GET")
}
