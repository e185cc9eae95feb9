package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/weblog/api/internal/logging"
	"github.com/weblog/api/internal/services"
)

type contextKey string

const contextUserIDKey contextKey = "user_id"

const genericErrorMessage = "Something went wrong. Please try again."

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

func withUserID(ctx context.Context, id int) context.Context {
	ctx = context.WithValue(ctx, contextUserIDKey, id)
	return logging.WithUserID(ctx, id)
}

func userIDFromContext(ctx context.Context) (int, error) {
	id, ok := ctx.Value(contextUserIDKey).(int)
	if !ok {
		return 0, errors.New("missing user id")
	}
	if id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusUnprocessableEntity
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError is the single translation point from errors to
// responses. Internal details are logged and never sent to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := services.KindOf(err)
	status := statusFor(kind)

	message := genericErrorMessage
	var serr *services.Error
	if errors.As(err, &serr) && kind != services.KindInternal && serr.Message != "" {
		message = serr.Message
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "kind", kind.String(), "error", err)
	}
	writeError(w, status, message)
}

func parseID(r *http.Request, param string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

// NotFound answers unmatched routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Route not found.")
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthCheck pings one backing service.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

const healthCheckTimeout = 2 * time.Second

// Health reports 503 naming the first failing check, 200 otherwise. With no
// checks it is a plain liveness probe.
func Health(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
					Message: check.Name + " unavailable.",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, HealthResponse{Success: true, Message: "Backend is running!"})
	}
}
