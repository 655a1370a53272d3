package handlers

import (
	"errors"
	"net/http"

	"media-ingest/internal/identity"
	"media-ingest/internal/ingest"
)

// IngestRequest carries options for an ingest run.
type IngestRequest struct {
	// Files restricts the run to specific source paths. Empty means scan
	// the incoming directory.
	Files []string `json:"files"`
	Limit int      `json:"limit"`
	// DryRun on the run endpoint behaves exactly like the plan endpoint.
	DryRun bool `json:"dryRun"`
}

// PlanIngest computes placements for pending files without touching the
// store or the filesystem.
func (h *Handlers) PlanIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.coordinator.Run(r.Context(), req.Files, ingest.Options{
		DryRun: true,
		Limit:  req.Limit,
	})
	if err != nil {
		if errors.Is(err, identity.ErrBucketSpaceExhausted) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, report)
}

// RunIngest executes a full ingest run and returns its report.
func (h *Handlers) RunIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.coordinator.Run(r.Context(), req.Files, ingest.Options{
		DryRun: req.DryRun,
		Limit:  req.Limit,
	})
	if err != nil {
		if errors.Is(err, identity.ErrBucketSpaceExhausted) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, report)
}

// BucketInfo describes one placement bucket.
type BucketInfo struct {
	Bucket   string `json:"bucket"`
	Count    int    `json:"count"`
	Capacity int    `json:"capacity"`
}

// ListBuckets reports per-bucket occupancy in placement order.
func (h *Handlers) ListBuckets(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountItemsByBucket(r.Context())
	if err != nil {
		writeJSONError(w, "failed to count buckets", http.StatusInternalServerError)
		return
	}

	buckets := make([]BucketInfo, 0, len(counts))
	for _, key := range ingest.SortedBucketKeys(counts) {
		buckets = append(buckets, BucketInfo{
			Bucket:   key,
			Count:    counts[key],
			Capacity: h.cfg.BucketCapacity,
		})
	}

	writeJSON(w, map[string]interface{}{"buckets": buckets})
}
