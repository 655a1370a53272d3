package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-ingest/internal/database"
)

// MediaResponse bundles one media item with its derivative assets.
type MediaResponse struct {
	Item   *database.MediaItem   `json:"item"`
	Assets []database.MediaAsset `json:"assets"`
}

// ListMedia returns a page of media items.
func (h *Handlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 50)

	listing, err := h.store.ListItems(r.Context(), page, pageSize)
	if err != nil {
		writeJSONError(w, "failed to list media", http.StatusInternalServerError)
		return
	}

	writeJSON(w, listing)
}

// GetMedia returns one media item and its assets by id.
func (h *Handlers) GetMedia(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, err := h.store.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "media item not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to load media item", http.StatusInternalServerError)
		return
	}

	mediaAssets, err := h.store.GetAssets(r.Context(), id)
	if err != nil {
		writeJSONError(w, "failed to load assets", http.StatusInternalServerError)
		return
	}

	writeJSON(w, MediaResponse{Item: item, Assets: mediaAssets})
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
