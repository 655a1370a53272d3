package handlers

import (
	"net/http"
	"runtime"
	"time"
)

const statusHealthy = "healthy"

// HealthResponse contains the health check response
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`

	// Library summary
	TotalItems int `json:"totalItems"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if listing, err := h.store.ListItems(r.Context(), 1, 1); err == nil {
		response.TotalItems = listing.TotalItems
	}

	writeJSON(w, response)
}

// HealthCheckSimple returns a simple health status for load balancers.
func (h *Handlers) HealthCheckSimple(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, "ok")
}

// LivenessCheck always returns OK when the process is running.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, "alive")
}

// ReadinessCheck verifies the metadata store answers before reporting ready.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.CountItemsByBucket(r.Context()); err != nil {
		writeJSONError(w, "store not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, "ready")
}
