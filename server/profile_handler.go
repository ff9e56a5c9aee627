package server

import (
	"errors"
	"fmt"
	"net/http"

	"metawave/core/library"
	"metawave/model"
)

const defaultSearchLimit = 20

// GetMyProfileHandler returns the caller's profile.
// GET /api/profiles/me
func (h *APIHandler) GetMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r.Context())
	if sess.Profile == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess.Profile)
}

// UpdateMyProfileHandler applies a partial update to the caller's profile.
// PUT /api/profiles/me
func (h *APIHandler) UpdateMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	var in model.UpdateProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.ID = viewerID(r)
	p, err := h.profiles.Update(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sessions.Set(p)
	writeJSON(w, http.StatusOK, p)
}

// UploadAvatarHandler replaces the caller's avatar from a multipart "file".
// POST /api/profiles/me/avatar
func (h *APIHandler) UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	f, cleanup, ok := h.formFile(w, r, "file")
	if !ok {
		return
	}
	defer cleanup()
	p, err := h.lib.UploadAvatar(r.Context(), viewerID(r), *f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sessions.Set(p)
	writeJSON(w, http.StatusOK, p)
}

// GetProfileHandler returns the public summary of a profile.
// GET /api/profiles/{id}
func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetByID(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ProfileSummary{ID: p.ID, Name: p.Name, Handle: p.Handle, AvatarURL: p.AvatarURL})
}

// SearchProfilesHandler searches profiles by name or handle (?q=, ?limit=).
// GET /api/profiles/search
func (h *APIHandler) SearchProfilesHandler(w http.ResponseWriter, r *http.Request) {
	results, err := h.profiles.Search(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", defaultSearchLimit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ProfileTracksHandler lists a profile's tracks: all of them for the owner,
// the public ones for everyone else.
func (h *APIHandler) ProfileTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.lib.TracksFor(r.Context(), pathVar(r, "id"), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// ProfileAlbumsHandler lists a profile's albums; visitors see public ones only.
// GET /api/profiles/{id}/albums
func (h *APIHandler) ProfileAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	albums, err := h.lib.AlbumsFor(r.Context(), pathVar(r, "id"), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// formFile reads one multipart file field. The returned cleanup removes
// any temporary files the form spilled to disk.
func (h *APIHandler) formFile(w http.ResponseWriter, r *http.Request, field string) (*library.File, func(), bool) {
	if !h.parseForm(w, r) {
		return nil, nil, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		r.MultipartForm.RemoveAll()
		badRequest(w, field+" is required")
		return nil, nil, false
	}
	f := &library.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}
	return f, func() {
		file.Close()
		r.MultipartForm.RemoveAll()
	}, true
}

// parseForm parses a multipart body no larger than the upload limit plus
// room for the other fields.
func (h *APIHandler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.cfg.MaxUploadMB+2)<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, fmt.Errorf("%w: %v", library.ErrTooLarge, err))
		} else {
			badRequest(w, "invalid multipart form: "+err.Error())
		}
		return false
	}
	return true
}
