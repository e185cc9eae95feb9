package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/weblog/api/config"
	"github.com/weblog/api/internal/cache"
	"github.com/weblog/api/internal/db"
	"github.com/weblog/api/internal/handlers"
	"github.com/weblog/api/internal/media"
	"github.com/weblog/api/internal/mq"
	"github.com/weblog/api/internal/services"
	"github.com/weblog/api/internal/storage"
	"github.com/weblog/api/internal/store"
)

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	cache      *cache.Cache
	mq         *mq.MQ
	logger     *slog.Logger
}

// New connects to every backing service named by cfg and builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{db: dbConn, logger: logger}
	if err := s.build(ctx, cfg); err != nil {
		_ = s.close()
		return nil, err
	}
	return s, nil
}

func (s *Server) build(ctx context.Context, cfg config.Config) error {
	objects, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("media storage: %w", err)
	}
	mediaStore := media.NewObjectStore(objects, cfg.Media.PublicURL)
	cleaner := media.NewCleaner(mediaStore, s.logger)

	s.mq, err = mq.Open(ctx, cfg)
	if err != nil {
		return err
	}
	if s.mq != nil {
		cleaner.WithRetryQueue(s.mq, cfg.MQ.CleanupTopic)
	}

	s.cache, err = cache.Connect(ctx, cfg.Redis, s.logger)
	if err != nil {
		return err
	}

	userRepo := store.NewUserRepository(s.db)
	postRepo := store.NewPostRepository(s.db)
	tokens := services.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	deps := Deps{
		Auth:           services.NewAuthService(userRepo, tokens, s.cache),
		Posts:          services.NewPostService(postRepo, mediaStore, cleaner, s.cache, cfg.Media.MaxUploadBytes),
		Users:          services.NewUserService(userRepo, mediaStore, cleaner, s.cache, cfg.Media.MaxUploadBytes),
		Logger:         s.logger,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
		HealthChecks: []handlers.HealthCheck{
			{Name: "Database", Ping: s.db.PingContext},
			{Name: "Cache", Ping: s.cache.Ping},
		},
	}
	if cfg.Media.Backend == "" || cfg.Media.Backend == config.MediaBackendLocal {
		deps.UploadsDir = objects.Bucket()
	}
	s.router = NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 5000
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes owned connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	if s.mq != nil {
		errs = append(errs, s.mq.Close())
	}
	errs = append(errs, s.cache.Close())
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
