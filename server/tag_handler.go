package server

import (
	"net/http"

	"metawave/core/insights"
	"metawave/core/library"
	"metawave/model"
)

// ListTagsHandler lists the caller's tags by name.
// GET /api/tags
func (h *APIHandler) ListTagsHandler(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.ListByUser(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// CreateTagHandler creates a tag for the caller.
// POST /api/tags
func (h *APIHandler) CreateTagHandler(w http.ResponseWriter, r *http.Request) {
	var in model.CreateTagInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.UserID = viewerID(r)
	t, err := h.tags.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *APIHandler) ownTag(w http.ResponseWriter, r *http.Request) (*model.Tag, bool) {
	t, err := h.tags.GetByID(r.Context(), pathVar(r, "id"))
	if err == nil && t.UserID != viewerID(r) {
		err = library.ErrForbidden
	}
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return t, true
}

// UpdateTagHandler renames or recategorises a tag; linked tracks follow a rename.
// PUT /api/tags/{id}
func (h *APIHandler) UpdateTagHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownTag(w, r)
	if !ok {
		return
	}
	var in model.UpdateTagInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.ID = t.ID
	updated, err := h.tags.Update(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTagHandler deletes a tag and removes it from every track.
// DELETE /api/tags/{id}
func (h *APIHandler) DeleteTagHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownTag(w, r)
	if !ok {
		return
	}
	deleted, err := h.tags.Delete(r.Context(), t.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": deleted})
}

// InsightsHandler aggregates the caller's whole library.
func (h *APIHandler) InsightsHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.tracks.ListByOwner(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insights.Compute(tracks))
}
