package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/weblog/api/internal/media"
	"github.com/weblog/api/internal/services"
	"github.com/weblog/api/types"
)

const formFieldAvatar = "avatar"

// UserService is the profile surface used by the user endpoints.
type UserService interface {
	Get(ctx context.Context, id int) (types.User, error)
	ListAuthors(ctx context.Context) ([]types.User, error)
	ChangeAvatar(ctx context.Context, callerID int, upload *media.Upload) (types.User, media.Cleanup, error)
	Edit(ctx context.Context, callerID int, in services.EditUserInput) (types.User, error)
}

// UserHandler provides HTTP handlers for users.
type UserHandler struct {
	users          UserService
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewUserHandler(users UserService, logger *slog.Logger, maxUploadBytes int64) *UserHandler {
	return &UserHandler{users: users, logger: logger, maxUploadBytes: maxUploadBytes}
}

// UserRouter registers account and profile routes on the given router.
func UserRouter(r chi.Router, auth *AuthHandler, users *UserHandler, requireAuth func(http.Handler) http.Handler) {
	r.Post("/register", auth.Register)
	r.Post("/login", auth.Login)
	r.Get("/", users.ListAuthors)
	r.Get("/{id}", users.GetUser)
	r.With(requireAuth).Post("/change-avatar", users.ChangeAvatar)
	r.With(requireAuth).Patch("/edit-user", users.EditUser)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found.")
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAuthors(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// ChangeAvatar replaces the caller's avatar with the "avatar" file part.
func (h *UserHandler) ChangeAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}

	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		writeMultipartError(w, err)
		return
	}
	upload, err := formUpload(r, formFieldAvatar, h.maxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file upload. Please try again.")
		return
	}

	user, _, err := h.users.ChangeAvatar(r.Context(), userID, upload)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) EditUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}

	var req services.EditUserInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.users.Edit(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
