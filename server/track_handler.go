package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"metawave/core/export"
	"metawave/core/library"
	"metawave/logger"
	"metawave/model"
)

type trackIDsRequest struct {
	TrackIDs []string `json:"track_ids"`
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

// ListMyTracksHandler lists the caller's tracks, newest first.
// GET /api/tracks
func (h *APIHandler) ListMyTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.tracks.ListByOwner(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// CreateTrackHandler creates a track row for an already stored file.
// POST /api/tracks
func (h *APIHandler) CreateTrackHandler(w http.ResponseWriter, r *http.Request) {
	var in model.CreateTrackInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.OwnerID = viewerID(r)
	t, err := h.tracks.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTrackHandler returns a track the viewer may see.
// GET /api/tracks/{id}
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	t, err := h.lib.Track(r.Context(), pathVar(r, "id"), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTrackHandler applies a partial update to one of the caller's tracks.
// PUT /api/tracks/{id}
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if _, err := h.lib.OwnedTrack(r.Context(), id, viewerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	var in model.UpdateTrackInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.ID = id
	t, err := h.tracks.Update(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTrackHandler deletes a track with its album and tag links.
// DELETE /api/tracks/{id}
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if _, err := h.lib.OwnedTrack(r.Context(), id, viewerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := h.tracks.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": deleted})
}

// GetTrackTagsHandler lists the tags linked to a track.
// GET /api/tracks/{id}/tags
func (h *APIHandler) GetTrackTagsHandler(w http.ResponseWriter, r *http.Request) {
	t, err := h.lib.Track(r.Context(), pathVar(r, "id"), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	tags, err := h.tags.ListForTrack(r.Context(), t.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// SetTrackTagsHandler replaces the whole tag list of a track.
func (h *APIHandler) SetTrackTagsHandler(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if _, err := h.lib.OwnedTrack(r.Context(), id, viewerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	var req tagsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tags, err := h.tracks.UpdateTags(r.Context(), id, req.Tags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = model.StringList{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

// AddTrackTagHandler links one of the caller's tags to a track.
// POST /api/tracks/{id}/tags/{tag_id}
func (h *APIHandler) AddTrackTagHandler(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if _, err := h.lib.OwnedTrack(r.Context(), id, viewerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.tags.AddToTrack(r.Context(), id, pathVar(r, "tag_id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveTrackTagHandler unlinks a tag from a track.
// DELETE /api/tracks/{id}/tags/{tag_id}
func (h *APIHandler) RemoveTrackTagHandler(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if _, err := h.lib.OwnedTrack(r.Context(), id, viewerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.tags.RemoveFromTrack(r.Context(), id, pathVar(r, "tag_id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadTrackHandler sends the audio with a fresh ID3 tag.
func (h *APIHandler) DownloadTrackHandler(w http.ResponseWriter, r *http.Request) {
	dl, err := h.lib.DownloadTrack(r.Context(), pathVar(r, "id"), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	if _, err := w.Write(dl.Data); err != nil {
		logger.Warn("failed to send download", logger.ErrorField(err))
	}
}

// UploadTrackHandler takes a multipart form: file, optional cover, and the
// optional fields title, artist, track_date, is_public, tags, waveform_data.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	audioFile, cleanup, ok := h.formFile(w, r, "file")
	if !ok {
		return
	}
	defer cleanup()

	in := library.UploadInput{
		Audio: *audioFile,
		Title: r.FormValue("title"),
	}
	if artist := strings.TrimSpace(r.FormValue("artist")); artist != "" {
		in.Artist = &artist
	}
	if v := r.FormValue("track_date"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			badRequest(w, "track_date must be YYYY-MM-DD")
			return
		}
		in.TrackDate = &d
	}
	if v := r.FormValue("is_public"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "is_public must be a boolean")
			return
		}
		in.IsPublic = b
	}
	in.Tags = splitList(r.MultipartForm.Value["tags"])
	if v := r.FormValue("waveform_data"); v != "" {
		in.Waveform = []byte(v)
	}

	if cover, header, err := r.FormFile("cover"); err == nil {
		defer cover.Close()
		in.Cover = &library.File{Name: header.Filename, ContentType: header.Header.Get("Content-Type"), Reader: cover}
	} else if !errors.Is(err, http.ErrMissingFile) {
		badRequest(w, "invalid cover: "+err.Error())
		return
	}

	t, err := h.lib.UploadTrack(r.Context(), viewerID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UploadTrackCoverHandler replaces a track cover from a multipart "file".
// POST /api/tracks/{id}/cover
func (h *APIHandler) UploadTrackCoverHandler(w http.ResponseWriter, r *http.Request) {
	f, cleanup, ok := h.formFile(w, r, "file")
	if !ok {
		return
	}
	defer cleanup()
	t, err := h.lib.UploadTrackCover(r.Context(), pathVar(r, "id"), viewerID(r), *f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// BatchCoverHandler applies one uploaded cover to every listed track.
func (h *APIHandler) BatchCoverHandler(w http.ResponseWriter, r *http.Request) {
	f, cleanup, ok := h.formFile(w, r, "file")
	if !ok {
		return
	}
	defer cleanup()
	ids := splitList(r.MultipartForm.Value["track_ids"])
	if len(ids) == 0 {
		badRequest(w, "track_ids is required")
		return
	}
	url, err := h.lib.ApplyCoverToTracks(r.Context(), viewerID(r), ids, *f)
	writeBatch(w, r, map[string]string{"cover_art_url": url}, err)
}

// ExportTracksHandler streams the requested tracks as a zip. Tracks the
// viewer cannot read are left out and counted in the X-Export-Failed trailer.
// POST /api/tracks/export
func (h *APIHandler) ExportTracksHandler(w http.ResponseWriter, r *http.Request) {
	var req trackIDsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	zw := &zipResponse{w: w, filename: "tracks.zip"}
	err := h.lib.ExportTracks(r.Context(), zw, viewerID(r), req.TrackIDs)
	zw.finish(r, err)
}

const exportFailedTrailer = "X-Export-Failed"

// zipResponse sends headers on the first write so that a failure before
// any output can still be reported as JSON.
type zipResponse struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (z *zipResponse) Write(p []byte) (int, error) {
	if !z.started {
		z.started = true
		z.w.Header().Set("Content-Type", "application/zip")
		z.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", z.filename))
		z.w.Header().Set("Trailer", exportFailedTrailer)
		z.w.WriteHeader(http.StatusOK)
	}
	return z.w.Write(p)
}

func (z *zipResponse) finish(r *http.Request, err error) {
	var partial *export.BatchError
	switch {
	case err == nil:
	case errors.As(err, &partial) && z.started:
		z.w.Header().Set(exportFailedTrailer, strconv.Itoa(len(partial.Failures)))
		logger.Warn("archive sent with missing tracks", logger.String("path", r.URL.Path), logger.ErrorField(err))
	case z.started:
		logger.Error("archive aborted", logger.String("path", r.URL.Path), logger.ErrorField(err))
	default:
		writeError(z.w, r, err)
	}
}

// splitList accepts repeated form values and comma-separated lists.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
