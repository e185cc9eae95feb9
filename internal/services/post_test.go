package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weblog/api/internal/store"
	"github.com/weblog/api/types"
)

// postFixture keeps posts and per-user counters in memory, the way the
// store applies them transactionally.
type postFixture struct {
	posts    map[int]types.Post
	counters map[int]int
	nextID   int
	updates  int
}

func newPostFixture() *postFixture {
	return &postFixture{posts: map[int]types.Post{}, counters: map[int]int{}, nextID: 1}
}

func (f *postFixture) repo() *postRepoStub {
	return &postRepoStub{
		get: func(_ context.Context, id int) (types.Post, error) {
			post, ok := f.posts[id]
			if !ok {
				return types.Post{}, store.ErrNotFound
			}
			return post, nil
		},
		listByCategory: func(_ context.Context, category string) ([]types.Post, error) {
			var out []types.Post
			for _, p := range f.posts {
				if p.Category == category {
					out = append(out, p)
				}
			}
			return out, nil
		},
		create: func(_ context.Context, post types.Post) (types.Post, error) {
			post.ID = f.nextID
			f.nextID++
			f.posts[post.ID] = post
			f.counters[post.CreatorID]++
			return post, nil
		},
		update: func(_ context.Context, post types.Post) (types.Post, error) {
			if _, ok := f.posts[post.ID]; !ok {
				return types.Post{}, store.ErrNotFound
			}
			f.updates++
			f.posts[post.ID] = post
			return post, nil
		},
		delete: func(_ context.Context, id int) error {
			post, ok := f.posts[id]
			if !ok {
				return store.ErrNotFound
			}
			delete(f.posts, id)
			f.counters[post.CreatorID] = max(f.counters[post.CreatorID]-1, 0)
			return nil
		},
	}
}

func newPostService(repo PostRepository, m *memoryMedia) *PostService {
	return NewPostService(repo, m, newCleaner(m), nil, testMaxUpload)
}

func (f *postFixture) seed(t *testing.T, m *memoryMedia, creatorID int) types.Post {
	t.Helper()
	post := types.Post{
		ID:          f.nextID,
		Title:       "Hi",
		Category:    "Technology",
		Description: "<p>hello world</p>",
		CreatorID:   creatorID,
		Thumbnail:   "thumbnails/seed.png",
	}
	f.nextID++
	f.posts[post.ID] = post
	f.counters[creatorID]++
	m.put(post.Thumbnail)
	return post
}

func TestPostService_CreateRequiresThumbnail(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	svc := newPostService(f.repo(), m)

	_, err := svc.Create(context.Background(), 1, CreatePostInput{
		Title:       "Hi",
		Category:    "Technology",
		Description: "<p>hello world</p>",
	})
	serr := requireKind(t, err, KindValidation)
	assert.Equal(t, "Fill in all fields and choose thumbnail.", serr.Message)
	assert.Empty(t, f.posts)
	assert.Zero(t, m.count())
}

func TestPostService_CreateRejectsBadThumbnails(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	svc := NewPostService(f.repo(), m, newCleaner(m), nil, 64)

	_, err := svc.Create(context.Background(), 1, CreatePostInput{
		Title: "Hi", Category: "Art", Description: "<p>hello world</p>",
		Thumbnail: pngUpload(t, "big.png", 200, 200),
	})
	serr := requireKind(t, err, KindValidation)
	assert.Contains(t, serr.Message, "Thumbnail too big")

	_, err = newPostService(f.repo(), m).Create(context.Background(), 1, CreatePostInput{
		Title: "Hi", Category: "Art", Description: "<p>hello world</p>",
		Thumbnail: textUpload("notes.png"),
	})
	requireKind(t, err, KindValidation)
	assert.Zero(t, m.count())
}

func TestPostService_CreateIncrementsCounter(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	svc := newPostService(f.repo(), m)

	post, err := svc.Create(context.Background(), 7, CreatePostInput{
		Title:       " Hi ",
		Category:    "technology",
		Description: "<p>hello world</p>",
		Thumbnail:   pngUpload(t, "hi.png", 8, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi", post.Title)
	assert.Equal(t, "Technology", post.Category)
	assert.Equal(t, 7, post.CreatorID)
	assert.True(t, m.has(post.Thumbnail))
	assert.Equal(t, 1, f.counters[7])
}

func TestPostService_CreateUnknownCategoryFallsBack(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	svc := newPostService(f.repo(), m)

	post, err := svc.Create(context.Background(), 7, CreatePostInput{
		Title: "Hi", Category: "Gardening", Description: "<p>hello world</p>",
		Thumbnail: pngUpload(t, "hi.png", 8, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultCategory, post.Category)
}

func TestPostService_CreateRemovesUploadWhenInsertFails(t *testing.T) {
	m := newMemoryMedia()
	repo := &postRepoStub{
		create: func(context.Context, types.Post) (types.Post, error) {
			return types.Post{}, errors.New("insert failed")
		},
	}
	svc := newPostService(repo, m)

	_, err := svc.Create(context.Background(), 7, CreatePostInput{
		Title: "Hi", Category: "Art", Description: "<p>hello world</p>",
		Thumbnail: pngUpload(t, "hi.png", 8, 8),
	})
	requireKind(t, err, KindInternal)
	assert.Zero(t, m.count())
}

func TestPostService_CreateMissingCreatorIsNotFound(t *testing.T) {
	m := newMemoryMedia()
	repo := &postRepoStub{
		create: func(context.Context, types.Post) (types.Post, error) {
			return types.Post{}, store.ErrNotFound
		},
	}
	svc := newPostService(repo, m)

	_, err := svc.Create(context.Background(), 42, CreatePostInput{
		Title: "Hi", Category: "Art", Description: "<p>hello world</p>",
		Thumbnail: pngUpload(t, "hi.png", 8, 8),
	})
	serr := requireKind(t, err, KindNotFound)
	assert.Equal(t, "User not found.", serr.Message)
	assert.Zero(t, m.count())
}

func TestPostService_DescriptionTrimmedOnCreateAndUpdate(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	svc := newPostService(f.repo(), m)

	post, err := svc.Create(context.Background(), 7, CreatePostInput{
		Title: "Hi", Category: "Art", Description: "\n  <p>hello world</p>  \n",
		Thumbnail: pngUpload(t, "hi.png", 8, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>hello world</p>", post.Description)
	assert.Equal(t, "<p>hello world</p>", f.posts[post.ID].Description)

	updated, _, err := svc.Update(context.Background(), 7, post.ID, UpdatePostInput{
		Title: "Hi", Category: "Art", Description: "  <p>hello again</p>\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>hello again</p>", updated.Description)
}

func TestPostService_CreateUploadFailureIsUpstream(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	m.storeErr = errors.New("bucket unavailable")
	svc := newPostService(f.repo(), m)

	_, err := svc.Create(context.Background(), 7, CreatePostInput{
		Title: "Hi", Category: "Art", Description: "<p>hello world</p>",
		Thumbnail: pngUpload(t, "hi.png", 8, 8),
	})
	requireKind(t, err, KindUpstream)
	assert.Empty(t, f.posts)
}

func TestPostService_GetNotFound(t *testing.T) {
	svc := newPostService(newPostFixture().repo(), newMemoryMedia())
	_, err := svc.Get(context.Background(), 99)
	requireKind(t, err, KindNotFound)
}

func TestPostService_ListByCategoryIsExact(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	f.seed(t, m, 1)
	art := f.seed(t, m, 1)
	art.Category = "Art"
	f.posts[art.ID] = art

	svc := newPostService(f.repo(), m)
	posts, err := svc.ListByCategory(context.Background(), "Art")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Art", posts[0].Category)

	posts, err = svc.ListByCategory(context.Background(), "art")
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NotNil(t, posts)
}

func TestPostService_UpdateOnlyByCreator(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	post := f.seed(t, m, 1)
	svc := newPostService(f.repo(), m)

	_, _, err := svc.Update(context.Background(), 2, post.ID, UpdatePostInput{
		Title: "Hacked", Category: "Art", Description: "<p>owned by someone else</p>",
	})
	requireKind(t, err, KindForbidden)
	assert.Equal(t, post, f.posts[post.ID])
	assert.Zero(t, f.updates)
}

func TestPostService_UpdateValidation(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	post := f.seed(t, m, 1)
	svc := newPostService(f.repo(), m)

	_, _, err := svc.Update(context.Background(), 1, post.ID, UpdatePostInput{
		Title: "Hi", Category: "Art", Description: "<p><br></p>",
	})
	requireKind(t, err, KindValidation)

	_, _, err = svc.Update(context.Background(), 1, 99, UpdatePostInput{
		Title: "Hi", Category: "Art", Description: "<p>long enough</p>",
	})
	requireKind(t, err, KindNotFound)
}

func TestPostService_UpdateKeepsThumbnailWhenNoneGiven(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	post := f.seed(t, m, 1)
	svc := newPostService(f.repo(), m)

	updated, cleanup, err := svc.Update(context.Background(), 1, post.ID, UpdatePostInput{
		Title: "New title", Category: "Art", Description: "<p>new description</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, post.Thumbnail, updated.Thumbnail)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "Art", updated.Category)
	assert.False(t, cleanup.Attempted)
	assert.True(t, m.has(post.Thumbnail))
}

func TestPostService_UpdateReplacesThumbnail(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	post := f.seed(t, m, 1)
	svc := newPostService(f.repo(), m)

	updated, cleanup, err := svc.Update(context.Background(), 1, post.ID, UpdatePostInput{
		Title: "Hi", Category: "Art", Description: "<p>new description</p>",
		Thumbnail: pngUpload(t, "new.png", 8, 8),
	})
	require.NoError(t, err)
	assert.NotEqual(t, post.Thumbnail, updated.Thumbnail)
	assert.True(t, m.has(updated.Thumbnail))
	assert.False(t, m.has(post.Thumbnail))
	assert.True(t, cleanup.Attempted)
	assert.False(t, cleanup.Failed())
	assert.Equal(t, post.Thumbnail, cleanup.Reference)
}

func TestPostService_UpdateSurvivesCleanupFailure(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	post := f.seed(t, m, 1)
	m.deleteErr = errors.New("delete refused")
	svc := newPostService(f.repo(), m)

	updated, cleanup, err := svc.Update(context.Background(), 1, post.ID, UpdatePostInput{
		Title: "Hi", Category: "Art", Description: "<p>new description</p>",
		Thumbnail: pngUpload(t, "new.png", 8, 8),
	})
	require.NoError(t, err)
	assert.True(t, cleanup.Failed())
	assert.Equal(t, updated.Thumbnail, f.posts[post.ID].Thumbnail)
}

func TestPostService_DeleteOnlyByCreator(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	post := f.seed(t, m, 1)
	svc := newPostService(f.repo(), m)

	_, _, err := svc.Delete(context.Background(), 2, post.ID)
	requireKind(t, err, KindForbidden)
	assert.Contains(t, f.posts, post.ID)
	assert.Equal(t, 1, f.counters[1])

	_, _, err = svc.Delete(context.Background(), 1, 99)
	requireKind(t, err, KindNotFound)
}

func TestPostService_DeleteDecrementsAndRemovesThumbnail(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	post := f.seed(t, m, 1)
	svc := newPostService(f.repo(), m)

	msg, cleanup, err := svc.Delete(context.Background(), 1, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Post 1 deleted successfully.", msg)
	assert.NotContains(t, f.posts, post.ID)
	assert.Equal(t, 0, f.counters[1])
	assert.True(t, cleanup.Attempted)
	assert.False(t, m.has(post.Thumbnail))
}

func TestPostService_DeleteSurvivesCleanupFailure(t *testing.T) {
	f := newPostFixture()
	m := newMemoryMedia()
	post := f.seed(t, m, 1)
	m.deleteErr = errors.New("delete refused")
	svc := newPostService(f.repo(), m)

	_, cleanup, err := svc.Delete(context.Background(), 1, post.ID)
	require.NoError(t, err)
	assert.True(t, cleanup.Failed())
	assert.NotContains(t, f.posts, post.ID)
}
