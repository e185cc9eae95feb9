package handlers

import (
	"context"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/weblog/api/internal/media"
	"github.com/weblog/api/internal/services"
	"github.com/weblog/api/types"
)

const (
	formFieldTitle     = "title"
	formFieldCategory  = "category"
	formFieldDesc      = "description"
	formFieldThumbnail = "thumbnail"
)

// PostService is the surface used by the post endpoints.
type PostService interface {
	Create(ctx context.Context, callerID int, in services.CreatePostInput) (types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	List(ctx context.Context) ([]types.Post, error)
	ListByCategory(ctx context.Context, category string) ([]types.Post, error)
	ListByAuthor(ctx context.Context, userID int) ([]types.Post, error)
	Update(ctx context.Context, callerID, id int, in services.UpdatePostInput) (types.Post, media.Cleanup, error)
	Delete(ctx context.Context, callerID, id int) (string, media.Cleanup, error)
}

// PostHandler provides HTTP handlers for posts.
type PostHandler struct {
	posts          PostService
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewPostHandler(posts PostService, logger *slog.Logger, maxUploadBytes int64) *PostHandler {
	return &PostHandler{posts: posts, logger: logger, maxUploadBytes: maxUploadBytes}
}

// PostRouter registers post routes on the given router.
func PostRouter(r chi.Router, h *PostHandler, requireAuth func(http.Handler) http.Handler) {
	r.Get("/", h.ListPosts)
	r.With(requireAuth).Post("/", h.CreatePost)
	r.Get("/categories/{category}", h.ListByCategory)
	r.Get("/users/{id}", h.ListByAuthor)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetPost)
		r.With(requireAuth).Patch("/", h.UpdatePost)
		r.With(requireAuth).Delete("/", h.DeletePost)
	})
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}

	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		writeMultipartError(w, err)
		return
	}
	thumbnail, err := formUpload(r, formFieldThumbnail, h.maxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file upload. Please try again.")
		return
	}

	post, err := h.posts.Create(r.Context(), userID, services.CreatePostInput{
		Title:       r.FormValue(formFieldTitle),
		Category:    r.FormValue(formFieldCategory),
		Description: r.FormValue(formFieldDesc),
		Thumbnail:   thumbnail,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, "Post not found.")
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) ListByAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found.")
		return
	}

	posts, err := h.posts.ListByAuthor(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// UpdatePost accepts either a multipart form, which may carry a new
// thumbnail, or a JSON body with the text fields only.
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, "Post not found.")
		return
	}

	var in services.UpdatePostInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req struct {
			Title       string `json:"title"`
			Category    string `json:"category"`
			Description string `json:"description"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
		in = services.UpdatePostInput{Title: req.Title, Category: req.Category, Description: req.Description}
	} else {
		if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
			writeMultipartError(w, err)
			return
		}
		thumbnail, err := formUpload(r, formFieldThumbnail, h.maxUploadBytes)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid file upload. Please try again.")
			return
		}
		in = services.UpdatePostInput{
			Title:       r.FormValue(formFieldTitle),
			Category:    r.FormValue(formFieldCategory),
			Description: r.FormValue(formFieldDesc),
			Thumbnail:   thumbnail,
		}
	}

	post, _, err := h.posts.Update(r.Context(), userID, id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, "Post not found.")
		return
	}

	message, _, err := h.posts.Delete(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}
