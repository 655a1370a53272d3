package handlers

import (
	"net/http"

	"media-ingest/internal/assets"
)

// GenerateAssetsRequest carries options for a derivative-asset run.
type GenerateAssetsRequest struct {
	Workers        int       `json:"workers"`
	Limit          int       `json:"limit"`
	Regenerate     bool      `json:"regenerate"`
	IncludeMissing bool      `json:"includeMissing"`
	ThumbFormat    string    `json:"thumbFormat"`
	CollageFormat  string    `json:"collageFormat"`
	ThumbWidth     int       `json:"thumbWidth"`
	Fractions      []float64 `json:"fractions"`
}

// GenerateAssets runs the thumbnail and contact-sheet pipeline over items
// that are missing derivatives (or all items with regenerate).
func (h *Handlers) GenerateAssets(w http.ResponseWriter, r *http.Request) {
	var req GenerateAssetsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.pipeline.Run(r.Context(), assets.Options{
		Workers:        req.Workers,
		Limit:          req.Limit,
		Regenerate:     req.Regenerate,
		IncludeMissing: req.IncludeMissing,
		ThumbFormat:    req.ThumbFormat,
		CollageFormat:  req.CollageFormat,
		ThumbWidth:     req.ThumbWidth,
		Fractions:      req.Fractions,
	})
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, report)
}
