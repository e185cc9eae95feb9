package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/weblog/api/internal/cache"
	"github.com/weblog/api/internal/media"
	"github.com/weblog/api/internal/store"
	"github.com/weblog/api/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Get(ctx context.Context, id int) (types.Post, error)
	List(ctx context.Context) ([]types.Post, error)
	ListByCategory(ctx context.Context, category string) ([]types.Post, error)
	ListByCreator(ctx context.Context, userID int) ([]types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

type CreatePostInput struct {
	Title       string        `validate:"required"`
	Category    string        `validate:"required"`
	Description string        `validate:"required"`
	Thumbnail   *media.Upload `validate:"required"`
}

// UpdatePostInput replaces the editable fields of a post. A nil Thumbnail
// keeps the current one.
type UpdatePostInput struct {
	Title       string `validate:"required"`
	Category    string `validate:"required"`
	Description string `validate:"required,min=12"`
	Thumbnail   *media.Upload
}

// PostService encapsulates post use-cases.
type PostService struct {
	posts          PostRepository
	media          media.Store
	cleaner        *media.Cleaner
	cache          *cache.Cache
	maxUploadBytes int64
}

func NewPostService(posts PostRepository, mediaStore media.Store, cleaner *media.Cleaner, c *cache.Cache, maxUploadBytes int64) *PostService {
	return &PostService{
		posts:          posts,
		media:          mediaStore,
		cleaner:        cleaner,
		cache:          c,
		maxUploadBytes: maxUploadBytes,
	}
}

func (s *PostService) thumbnailMessages(missing string) uploadMessages {
	return uploadMessages{
		missing:  missing,
		tooLarge: fmt.Sprintf("Thumbnail too big. File should be less than %s.", sizeLimit(s.maxUploadBytes)),
		invalid:  "Thumbnail must be a JPEG, PNG, GIF or WebP image.",
	}
}

// Create stores the thumbnail, then inserts the post and bumps the author's
// post count in one transaction.
func (s *PostService) Create(ctx context.Context, callerID int, in CreatePostInput) (types.Post, error) {
	const missing = "Fill in all fields and choose thumbnail."
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	if err := check(in, missing); err != nil {
		return types.Post{}, err
	}
	thumb, err := checkUpload(in.Thumbnail, s.maxUploadBytes, media.KindThumbnail, s.thumbnailMessages(missing))
	if err != nil {
		return types.Post{}, err
	}

	ref, err := s.media.Store(ctx, thumb)
	if err != nil {
		return types.Post{}, upstreamError("Thumbnail upload failed. Please try again.", err)
	}

	created, err := s.posts.Create(ctx, types.Post{
		Title:       in.Title,
		Category:    types.NormalizeCategory(in.Category),
		Description: in.Description,
		CreatorID:   callerID,
		Thumbnail:   ref,
	})
	if err != nil {
		s.cleaner.Remove(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, notFoundError("User not found.")
		}
		return types.Post{}, internalError("Post couldn't be created.", err)
	}

	s.invalidate(ctx, created.CreatorID, created.Category)
	return created, nil
}

func (s *PostService) Get(ctx context.Context, id int) (types.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, notFoundError("Post not found.")
		}
		return types.Post{}, internalError("Post couldn't be loaded.", err)
	}
	return post, nil
}

// List returns every post, most recently updated first.
func (s *PostService) List(ctx context.Context) ([]types.Post, error) {
	return s.cachedList(ctx, cache.PostsAllKey, s.posts.List)
}

// ListByCategory returns posts whose category matches exactly, newest first.
func (s *PostService) ListByCategory(ctx context.Context, category string) ([]types.Post, error) {
	return s.cachedList(ctx, cache.PostsByCategoryKey(category), func(ctx context.Context) ([]types.Post, error) {
		return s.posts.ListByCategory(ctx, category)
	})
}

// ListByAuthor returns the posts created by userID, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, userID int) ([]types.Post, error) {
	return s.cachedList(ctx, cache.PostsByAuthorKey(userID), func(ctx context.Context) ([]types.Post, error) {
		return s.posts.ListByCreator(ctx, userID)
	})
}

func (s *PostService) cachedList(ctx context.Context, key string, load func(context.Context) ([]types.Post, error)) ([]types.Post, error) {
	var posts []types.Post
	err := s.cache.Aside(ctx, key, &posts, func() error {
		var err error
		posts, err = load(ctx)
		return err
	})
	if err != nil {
		return nil, internalError("Posts couldn't be loaded.", err)
	}
	if posts == nil {
		posts = []types.Post{}
	}
	return posts, nil
}

// Update edits a post owned by callerID. When a new thumbnail is supplied
// the previous one is removed after the row is saved.
func (s *PostService) Update(ctx context.Context, callerID, id int, in UpdatePostInput) (types.Post, media.Cleanup, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	if err := check(in, "Fill in all fields."); err != nil {
		return types.Post{}, media.Cleanup{}, err
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return types.Post{}, media.Cleanup{}, err
	}
	if existing.CreatorID != callerID {
		return types.Post{}, media.Cleanup{}, forbiddenError("You can only edit your own posts.")
	}

	updated := existing
	updated.Title = in.Title
	updated.Category = types.NormalizeCategory(in.Category)
	updated.Description = in.Description

	var newRef string
	if in.Thumbnail != nil {
		thumb, err := checkUpload(in.Thumbnail, s.maxUploadBytes, media.KindThumbnail, s.thumbnailMessages("Please choose a thumbnail."))
		if err != nil {
			return types.Post{}, media.Cleanup{}, err
		}
		newRef, err = s.media.Store(ctx, thumb)
		if err != nil {
			return types.Post{}, media.Cleanup{}, upstreamError("Thumbnail upload failed. Please try again.", err)
		}
		updated.Thumbnail = newRef
	}

	saved, err := s.posts.Update(ctx, updated)
	if err != nil {
		s.cleaner.Remove(ctx, newRef)
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, media.Cleanup{}, notFoundError("Post not found.")
		}
		return types.Post{}, media.Cleanup{}, internalError("Couldn't update post.", err)
	}

	var cleanup media.Cleanup
	if newRef != "" && existing.Thumbnail != newRef {
		cleanup = s.cleaner.Remove(ctx, existing.Thumbnail)
	}

	s.invalidate(ctx, saved.CreatorID, existing.Category, saved.Category)
	return saved, cleanup, nil
}

// Delete removes a post owned by callerID, decrements the author's post
// count and then removes the thumbnail.
func (s *PostService) Delete(ctx context.Context, callerID, id int) (string, media.Cleanup, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return "", media.Cleanup{}, err
	}
	if existing.CreatorID != callerID {
		return "", media.Cleanup{}, forbiddenError("You can only delete your own posts.")
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", media.Cleanup{}, notFoundError("Post not found.")
		}
		return "", media.Cleanup{}, internalError("Post couldn't be deleted.", err)
	}

	cleanup := s.cleaner.Remove(ctx, existing.Thumbnail)
	s.invalidate(ctx, existing.CreatorID, existing.Category)
	return fmt.Sprintf("Post %d deleted successfully.", id), cleanup, nil
}

func (s *PostService) invalidate(ctx context.Context, creatorID int, categories ...string) {
	keys := []string{cache.PostsAllKey, cache.PostsByAuthorKey(creatorID), cache.AuthorsKey}
	for _, category := range categories {
		keys = append(keys, cache.PostsByCategoryKey(category))
	}
	s.cache.Invalidate(ctx, keys...)
}
