package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"metawave/core/auth"
	"metawave/logger"
)

type contextKey string

const sessionKey contextKey = "session"

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthRequest struct {
	Code string `json:"code"`
}

// SignUpHandler registers an email/password account and returns a session.
// POST /api/auth/signup
func (h *APIHandler) SignUpHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpInput
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.SignUp(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// SignInHandler exchanges email and password for a session token.
// POST /api/auth/signin
func (h *APIHandler) SignInHandler(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		badRequest(w, "email and password are required")
		return
	}
	sess, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		logger.Warn("sign-in failed", logger.String("email", req.Email), logger.ErrorField(err))
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// SignOutHandler revokes the bearer token.
// POST /api/auth/signout
func (h *APIHandler) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionHandler returns the session of the bearer token.
// GET /api/auth/session
func (h *APIHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentSession(r.Context()))
}

// OAuthStartHandler returns the provider's consent URL.
func (h *APIHandler) OAuthStartHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.auth.Provider(pathVar(r, "provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	state := uuid.NewString()
	writeJSON(w, http.StatusOK, map[string]string{"url": p.AuthCodeURL(state), "state": state})
}

// OAuthCallbackHandler completes sign-in with the code the provider issued.
func (h *APIHandler) OAuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	var req oauthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		badRequest(w, "code is required")
		return
	}
	sess, err := h.auth.OAuthSignIn(r.Context(), pathVar(r, "provider"), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthMiddleware requires a valid session token.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, auth.ErrNoSession)
			return
		}
		sess, err := h.auth.GetSession(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sess.Token = token
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	}
}

// OptionalAuth attaches the session when a valid token is sent and serves
// the request anonymously otherwise.
func (h *APIHandler) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if sess, err := h.auth.GetSession(r.Context(), token); err == nil {
				sess.Token = token
				r = r.WithContext(context.WithValue(r.Context(), sessionKey, sess))
			}
		}
		next.ServeHTTP(w, r)
	}
}

func currentSession(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(sessionKey).(*auth.Session)
	return sess
}

// viewerID is the subject of the request, empty when anonymous.
func viewerID(r *http.Request) string {
	if sess := currentSession(r.Context()); sess != nil {
		return sess.Subject
	}
	return ""
}
