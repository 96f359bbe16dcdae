package assetcache

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler serves GET /assets/{random_id}, the endpoint a
// PlaybackConfig frame with storage_type "local" points players at.
// Responses are marked immutable: a random_id is a token for one
// exact, content-addressed byte sequence, so nothing about the
// response can ever legitimately change.
type Handler struct {
	cache *Cache
	log   *slog.Logger
}

// NewHandler builds a Handler backed by cache.
func NewHandler(cache *Cache, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{cache: cache, log: log}
}

// Mount registers the handler's route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/assets/{randomID}", h.serveAsset)
}

func (h *Handler) serveAsset(w http.ResponseWriter, r *http.Request) {
	randomID := chi.URLParam(r, "randomID")

	contentHash, ok, err := h.cache.Metadata.ResolveRandomID(r.Context(), randomID)
	if err != nil {
		h.log.Error("resolve random id failed", "random_id", randomID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	mime, size, ok, err := h.cache.Metadata.GetAssetMetadata(r.Context(), randomID)
	if err != nil {
		h.log.Error("get asset metadata failed", "random_id", randomID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := h.cache.Files.Get(r.Context(), contentHash)
	if err != nil {
		h.log.Error("read asset blob failed", "content_hash", contentHash, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.FormatUint(size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", `"`+contentHash+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
