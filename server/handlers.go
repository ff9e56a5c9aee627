package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"metawave/config"
	"metawave/core/auth"
	"metawave/core/library"
	"metawave/core/session"
	"metawave/logger"
	"metawave/repository"
	"metawave/schema"
	"metawave/storage"
)

// APIHandler serves every /api endpoint.
type APIHandler struct {
	auth     *auth.Service
	sessions *session.Cache
	lib      *library.Library
	profiles repository.ProfileRepository
	tracks   repository.TrackRepository
	albums   repository.AlbumRepository
	tags     repository.TagRepository
	store    storage.ObjectStore
	cfg      *config.Config
}

func NewAPIHandler(
	authService *auth.Service,
	sessions *session.Cache,
	lib *library.Library,
	profiles repository.ProfileRepository,
	tracks repository.TrackRepository,
	albums repository.AlbumRepository,
	tags repository.TagRepository,
	store storage.ObjectStore,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		auth:     authService,
		sessions: sessions,
		lib:      lib,
		profiles: profiles,
		tracks:   tracks,
		albums:   albums,
		tags:     tags,
		store:    store,
		cfg:      cfg,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

// statusOf maps an error to the HTTP status it is reported with.
func statusOf(err error) int {
	var batch *library.BatchError
	switch {
	case schema.IsValidation(err),
		errors.Is(err, library.ErrBadOrder):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNoSession),
		errors.Is(err, auth.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, library.ErrForbidden),
		errors.Is(err, repository.ErrOwnerMismatch):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, auth.ErrUnknownProvider),
		errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, library.ErrStalePivot),
		errors.Is(err, storage.ErrObjectExists):
		return http.StatusConflict
	case errors.Is(err, library.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &batch):
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err as {"error": "<message>"}. Internal errors are
// logged and their message hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
		msg = "internal server error"
	} else {
		logger.Debug("request rejected",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.ErrorField(err))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBatch reports a best-effort batch: 200 when every item succeeded,
// 207 with the failed ids otherwise.
func writeBatch(w http.ResponseWriter, r *http.Request, result interface{}, err error) {
	var batch *library.BatchError
	if err != nil && !errors.As(err, &batch) {
		writeError(w, r, err)
		return
	}
	body := map[string]interface{}{"result": result}
	status := http.StatusOK
	if batch != nil {
		status = http.StatusMultiStatus
		body["error"] = batch.Error()
		body["failed"] = batch.FailedIDs()
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
