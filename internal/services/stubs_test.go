package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weblog/api/internal/media"
	"github.com/weblog/api/internal/store"
	"github.com/weblog/api/types"
	"golang.org/x/crypto/bcrypt"
)

const testMaxUpload = 2000000

type userRepoStub struct {
	getByID       func(ctx context.Context, id int) (types.User, error)
	getByEmail    func(ctx context.Context, email string) (types.User, error)
	list          func(ctx context.Context) ([]types.User, error)
	create        func(ctx context.Context, user types.User) (types.User, error)
	updateProfile func(ctx context.Context, user types.User) (types.User, error)
	updateAvatar  func(ctx context.Context, id int, avatar string) (types.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id int) (types.User, error) {
	if s.getByID == nil {
		return types.User{}, store.ErrNotFound
	}
	return s.getByID(ctx, id)
}

func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (types.User, error) {
	if s.getByEmail == nil {
		return types.User{}, store.ErrNotFound
	}
	return s.getByEmail(ctx, email)
}

func (s *userRepoStub) List(ctx context.Context) ([]types.User, error) {
	if s.list == nil {
		return nil, nil
	}
	return s.list(ctx)
}

func (s *userRepoStub) Create(ctx context.Context, user types.User) (types.User, error) {
	if s.create == nil {
		return types.User{}, errors.New("unexpected create")
	}
	return s.create(ctx, user)
}

func (s *userRepoStub) UpdateProfile(ctx context.Context, user types.User) (types.User, error) {
	if s.updateProfile == nil {
		return types.User{}, errors.New("unexpected update")
	}
	return s.updateProfile(ctx, user)
}

func (s *userRepoStub) UpdateAvatar(ctx context.Context, id int, avatar string) (types.User, error) {
	if s.updateAvatar == nil {
		return types.User{}, errors.New("unexpected avatar update")
	}
	return s.updateAvatar(ctx, id, avatar)
}

type postRepoStub struct {
	get            func(ctx context.Context, id int) (types.Post, error)
	list           func(ctx context.Context) ([]types.Post, error)
	listByCategory func(ctx context.Context, category string) ([]types.Post, error)
	listByCreator  func(ctx context.Context, userID int) ([]types.Post, error)
	create         func(ctx context.Context, post types.Post) (types.Post, error)
	update         func(ctx context.Context, post types.Post) (types.Post, error)
	delete         func(ctx context.Context, id int) error
}

func (s *postRepoStub) Get(ctx context.Context, id int) (types.Post, error) {
	if s.get == nil {
		return types.Post{}, store.ErrNotFound
	}
	return s.get(ctx, id)
}

func (s *postRepoStub) List(ctx context.Context) ([]types.Post, error) {
	if s.list == nil {
		return nil, nil
	}
	return s.list(ctx)
}

func (s *postRepoStub) ListByCategory(ctx context.Context, category string) ([]types.Post, error) {
	if s.listByCategory == nil {
		return nil, nil
	}
	return s.listByCategory(ctx, category)
}

func (s *postRepoStub) ListByCreator(ctx context.Context, userID int) ([]types.Post, error) {
	if s.listByCreator == nil {
		return nil, nil
	}
	return s.listByCreator(ctx, userID)
}

func (s *postRepoStub) Create(ctx context.Context, post types.Post) (types.Post, error) {
	if s.create == nil {
		return types.Post{}, errors.New("unexpected create")
	}
	return s.create(ctx, post)
}

func (s *postRepoStub) Update(ctx context.Context, post types.Post) (types.Post, error) {
	if s.update == nil {
		return types.Post{}, errors.New("unexpected update")
	}
	return s.update(ctx, post)
}

func (s *postRepoStub) Delete(ctx context.Context, id int) error {
	if s.delete == nil {
		return errors.New("unexpected delete")
	}
	return s.delete(ctx, id)
}

// memoryMedia is an in-memory media.Store.
type memoryMedia struct {
	mu        sync.Mutex
	objects   map[string]media.Upload
	seq       int
	storeErr  error
	deleteErr error
}

func newMemoryMedia() *memoryMedia {
	return &memoryMedia{objects: map[string]media.Upload{}}
}

func (m *memoryMedia) Store(_ context.Context, upload media.Upload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return "", m.storeErr
	}
	m.seq++
	ref := fmt.Sprintf("%s/%d-%s", upload.Kind, m.seq, upload.Filename)
	m.objects[ref] = upload
	return ref, nil
}

func (m *memoryMedia) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, ref)
	return nil
}

func (m *memoryMedia) has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[ref]
	return ok
}

func (m *memoryMedia) put(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[ref] = media.Upload{}
}

func (m *memoryMedia) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func newCleaner(store media.Store) *media.Cleaner {
	return media.NewCleaner(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pngUpload(t *testing.T, name string, w, h int) *media.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &media.Upload{Filename: name, ContentType: "image/png", Data: buf.Bytes()}
}

func textUpload(name string) *media.Upload {
	return &media.Upload{Filename: name, ContentType: "image/png", Data: []byte(strings.Repeat("not an image ", 4))}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var serr *Error
	require.True(t, errors.As(err, &serr), "expected *services.Error, got %T: %v", err, err)
	require.Equal(t, kind, serr.Kind, "error: %v", err)
	return serr
}
