package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"metawave/logger"
	"metawave/storage"
)

// StaticHandler serves stored objects under /static/ so that the default
// PUBLIC_BASE_URL resolves without exposing the object store itself.
type StaticHandler struct {
	store storage.ObjectStore
}

func NewStaticHandler(store storage.ObjectStore) *StaticHandler {
	return &StaticHandler{store: store}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/static/")
	bucket, objectPath, ok := strings.Cut(key, "/")
	if !ok || objectPath == "" {
		http.NotFound(w, r)
		return
	}
	switch storage.Bucket(bucket) {
	case storage.BucketTracks, storage.BucketCovers, storage.BucketAvatars:
	default:
		http.NotFound(w, r)
		return
	}

	object, err := h.store.Open(r.Context(), storage.Bucket(bucket), objectPath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", storage.ContentType(objectPath))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	if _, err := io.Copy(w, object); err != nil {
		logger.Error("error serving stored object", logger.String("key", key), logger.ErrorField(err))
	}
}
