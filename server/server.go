package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"metawave/cache"
	"metawave/config"
	"metawave/core/auth"
	"metawave/core/library"
	"metawave/core/session"
	"metawave/db"
	"metawave/logger"
	"metawave/repository"
	"metawave/storage"
)

// NewAPIHandlerFromDB builds every repository and service over one database.
func NewAPIHandlerFromDB(gdb *gorm.DB, store storage.ObjectStore, revoked cache.RevocationStore, cfg *config.Config) (*APIHandler, error) {
	profiles := repository.NewGormProfileRepository(gdb)
	tracks := repository.NewGormTrackRepository(gdb)
	albums := repository.NewGormAlbumRepository(gdb)
	pivot := repository.NewGormAlbumTrackRepository(gdb)
	tags := repository.NewGormTagRepository(gdb)
	creds := repository.NewGormCredentialRepository(gdb)

	tokens, err := auth.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	sessions := session.NewCache(profiles.GetByID)
	authService := auth.NewService(creds, profiles, tokens, revoked, sessions, auth.NewOAuth2Providers(cfg.OAuthProviders)...)
	lib := library.New(tracks, albums, pivot, profiles, store, cfg.MaxUploadMB)

	return NewAPIHandler(authService, sessions, lib, profiles, tracks, albums, tags, store, cfg), nil
}

// NewRouter registers every route.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/signup", h.SignUpHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", h.SignInHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", h.SignOutHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", h.AuthMiddleware(h.SessionHandler)).Methods(http.MethodGet)
	api.HandleFunc("/auth/oauth/{provider}", h.OAuthStartHandler).Methods(http.MethodGet)
	api.HandleFunc("/auth/oauth/{provider}", h.OAuthCallbackHandler).Methods(http.MethodPost)

	api.HandleFunc("/profiles/search", h.SearchProfilesHandler).Methods(http.MethodGet)
	api.HandleFunc("/profiles/me", h.AuthMiddleware(h.GetMyProfileHandler)).Methods(http.MethodGet)
	api.HandleFunc("/profiles/me", h.AuthMiddleware(h.UpdateMyProfileHandler)).Methods(http.MethodPut)
	api.HandleFunc("/profiles/me/avatar", h.AuthMiddleware(h.UploadAvatarHandler)).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{id}", h.GetProfileHandler).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}/tracks", h.OptionalAuth(h.ProfileTracksHandler)).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}/albums", h.OptionalAuth(h.ProfileAlbumsHandler)).Methods(http.MethodGet)

	api.HandleFunc("/tracks", h.AuthMiddleware(h.ListMyTracksHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks", h.AuthMiddleware(h.CreateTrackHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tracks/upload", h.AuthMiddleware(h.UploadTrackHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tracks/batch-cover", h.AuthMiddleware(h.BatchCoverHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tracks/export", h.OptionalAuth(h.ExportTracksHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}", h.OptionalAuth(h.GetTrackHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}", h.AuthMiddleware(h.UpdateTrackHandler)).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{id}", h.AuthMiddleware(h.DeleteTrackHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/tracks/{id}/cover", h.AuthMiddleware(h.UploadTrackCoverHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}/download", h.OptionalAuth(h.DownloadTrackHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}/tags", h.OptionalAuth(h.GetTrackTagsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}/tags", h.AuthMiddleware(h.SetTrackTagsHandler)).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{id}/tags/{tag_id}", h.AuthMiddleware(h.AddTrackTagHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}/tags/{tag_id}", h.AuthMiddleware(h.RemoveTrackTagHandler)).Methods(http.MethodDelete)

	api.HandleFunc("/albums", h.AuthMiddleware(h.ListMyAlbumsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/albums", h.AuthMiddleware(h.CreateAlbumHandler)).Methods(http.MethodPost)
	api.HandleFunc("/albums/{id}", h.OptionalAuth(h.GetAlbumHandler)).Methods(http.MethodGet)
	api.HandleFunc("/albums/{id}", h.AuthMiddleware(h.UpdateAlbumHandler)).Methods(http.MethodPut)
	api.HandleFunc("/albums/{id}", h.AuthMiddleware(h.DeleteAlbumHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/albums/{id}/tracks", h.AuthMiddleware(h.AddAlbumTracksHandler)).Methods(http.MethodPost)
	api.HandleFunc("/albums/{id}/tracks/{track_id}", h.AuthMiddleware(h.RemoveAlbumTrackHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/albums/{id}/order", h.AuthMiddleware(h.ReorderAlbumHandler)).Methods(http.MethodPut)
	api.HandleFunc("/albums/{id}/cover", h.AuthMiddleware(h.UploadAlbumCoverHandler)).Methods(http.MethodPost)
	api.HandleFunc("/albums/{id}/export", h.OptionalAuth(h.ExportAlbumHandler)).Methods(http.MethodGet)

	api.HandleFunc("/tags", h.AuthMiddleware(h.ListTagsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tags", h.AuthMiddleware(h.CreateTagHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tags/{id}", h.AuthMiddleware(h.UpdateTagHandler)).Methods(http.MethodPut)
	api.HandleFunc("/tags/{id}", h.AuthMiddleware(h.DeleteTagHandler)).Methods(http.MethodDelete)

	api.HandleFunc("/insights", h.AuthMiddleware(h.InsightsHandler)).Methods(http.MethodGet)

	router.PathPrefix("/static/").Handler(NewStaticHandler(h.store))
	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// revocationStore uses Redis when enabled, process memory otherwise.
func revocationStore(cfg *config.Config) (cache.RevocationStore, func(), error) {
	if !cfg.RedisEnabled {
		logger.Warn("redis disabled, sign-outs will not survive a restart")
		return cache.NewMemoryRevocationStore(), func() {}, nil
	}
	client, err := db.ConnectRedis(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("redis connected", logger.String("addr", cfg.RedisHost+":"+cfg.RedisPort))
	return cache.NewRedisRevocationStore(client), func() { db.CloseRedis() }, nil
}

// Start connects every backend and serves until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	if cfg.JWTSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		cfg.JWTSecret = hex.EncodeToString(secret)
		logger.Warn("JWT_SECRET not set, using a random secret; sessions end on restart")
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	store, err := storage.New(cfg)
	if err != nil {
		return err
	}

	revoked, closeRevoked, err := revocationStore(cfg)
	if err != nil {
		return err
	}
	defer closeRevoked()

	h, err := NewAPIHandlerFromDB(gdb, store, revoked, cfg)
	if err != nil {
		return err
	}
	defer h.sessions.Clear()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(h),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
