package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/weblog/api/internal/handlers"
	"github.com/weblog/api/internal/logging"
	"github.com/weblog/api/internal/metrics"
)

const requestTimeout = 60 * time.Second

// Deps are the collaborators the router is built from.
type Deps struct {
	Auth           handlers.AuthService
	Posts          handlers.PostService
	Users          handlers.UserService
	Logger         *slog.Logger
	MaxUploadBytes int64
	AllowedOrigins []string
	// UploadsDir is served under /uploads when set.
	UploadsDir string
	// StaticDir holds the client build; unknown non-API paths fall back to its index.html.
	StaticDir string
	// HealthChecks gate /api/health. /healthz only reports liveness.
	HealthChecks []handlers.HealthCheck
}

// NewRouter builds the HTTP routes.
func NewRouter(d Deps) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(d.Logger),
		metrics.Middleware,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(requestTimeout),
	)

	notFound := http.HandlerFunc(handlers.NotFound)
	if d.StaticDir != "" {
		notFound = spaFallback(d.StaticDir, notFound)
	}
	router.NotFound(notFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	router.Get("/healthz", handlers.Health())
	router.Handle("/metrics", metrics.Handler())
	if d.UploadsDir != "" {
		router.Handle("/uploads/*", http.StripPrefix("/uploads/", uploadsHandler(d.UploadsDir)))
	}

	requireAuth := handlers.RequireAuth(d.Auth)
	router.Route("/api", func(r chi.Router) {
		r.NotFound(handlers.NotFound)
		r.Get("/health", handlers.Health(d.HealthChecks...))
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r,
				handlers.NewAuthHandler(d.Auth, d.Logger),
				handlers.NewUserHandler(d.Users, d.Logger, d.MaxUploadBytes),
				requireAuth,
			)
		})
		r.Route("/posts", func(r chi.Router) {
			handlers.PostRouter(r, handlers.NewPostHandler(d.Posts, d.Logger, d.MaxUploadBytes), requireAuth)
		})
	})
	return router
}
