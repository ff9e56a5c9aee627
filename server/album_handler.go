package server

import (
	"net/http"

	"metawave/core/export"
	"metawave/model"
)

// orderRequest either moves one item (from, to) or sets the full order.
type orderRequest struct {
	TrackIDs []string `json:"track_ids"`
	From     *int     `json:"from"`
	To       *int     `json:"to"`
}

// ListMyAlbumsHandler lists the caller's albums, newest first.
// GET /api/albums
func (h *APIHandler) ListMyAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	albums, err := h.albums.ListByOwner(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// CreateAlbumHandler creates an album owned by the caller.
// POST /api/albums
func (h *APIHandler) CreateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	var in model.CreateAlbumInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.OwnerID = viewerID(r)
	a, err := h.albums.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GetAlbumHandler returns the album with its tracks in display order.
func (h *APIHandler) GetAlbumHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.lib.AlbumView(r.Context(), pathVar(r, "id"), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateAlbumHandler applies a partial update to one of the caller's albums.
// PUT /api/albums/{id}
func (h *APIHandler) UpdateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if _, err := h.lib.OwnedAlbum(r.Context(), id, viewerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	var in model.UpdateAlbumInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.ID = id
	a, err := h.albums.Update(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAlbumHandler deletes an album and its track links; the tracks stay.
// DELETE /api/albums/{id}
func (h *APIHandler) DeleteAlbumHandler(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if _, err := h.lib.OwnedAlbum(r.Context(), id, viewerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := h.albums.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": deleted})
}

// AddAlbumTracksHandler appends tracks to an album. Partial failures answer 207.
// POST /api/albums/{id}/tracks
func (h *APIHandler) AddAlbumTracksHandler(w http.ResponseWriter, r *http.Request) {
	var req trackIDsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.TrackIDs) == 0 {
		badRequest(w, "track_ids is required")
		return
	}
	added, err := h.lib.AddTracks(r.Context(), pathVar(r, "id"), viewerID(r), req.TrackIDs)
	writeBatch(w, r, added, err)
}

// RemoveAlbumTrackHandler takes one track out of an album.
// DELETE /api/albums/{id}/tracks/{track_id}
func (h *APIHandler) RemoveAlbumTrackHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.lib.RemoveTrack(r.Context(), pathVar(r, "id"), viewerID(r), pathVar(r, "track_id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderAlbumHandler persists a new order atomically.
func (h *APIHandler) ReorderAlbumHandler(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		rows []model.AlbumTrack
		err  error
	)
	switch {
	case req.From != nil && req.To != nil:
		rows, err = h.lib.MoveTrack(r.Context(), pathVar(r, "id"), viewerID(r), *req.From, *req.To)
	case req.TrackIDs != nil:
		rows, err = h.lib.Reorder(r.Context(), pathVar(r, "id"), viewerID(r), req.TrackIDs)
	default:
		badRequest(w, "either from and to, or track_ids, is required")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// UploadAlbumCoverHandler replaces the album cover from a multipart "file".
// POST /api/albums/{id}/cover
func (h *APIHandler) UploadAlbumCoverHandler(w http.ResponseWriter, r *http.Request) {
	f, cleanup, ok := h.formFile(w, r, "file")
	if !ok {
		return
	}
	defer cleanup()
	a, err := h.lib.UploadAlbumCover(r.Context(), pathVar(r, "id"), viewerID(r), *f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ExportAlbumHandler streams the album as a zip in display order.
// GET /api/albums/{id}/export
func (h *APIHandler) ExportAlbumHandler(w http.ResponseWriter, r *http.Request) {
	a, err := h.lib.Album(r.Context(), pathVar(r, "id"), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := export.SanitizeName(a.Title)
	if name == "" {
		name = "album"
	}
	zw := &zipResponse{w: w, filename: name + ".zip"}
	_, err = h.lib.ExportAlbum(r.Context(), zw, a.ID, viewerID(r))
	zw.finish(r, err)
}
