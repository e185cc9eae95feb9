package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weblog/api/internal/store"
	"github.com/weblog/api/types"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(repo UserRepository) *AuthService {
	svc := NewAuthService(repo, NewTokenManager("test-secret", time.Hour), nil)
	svc.hashCost = bcrypt.MinCost
	return svc
}

func TestAuthService_RegisterStoresOnlyHash(t *testing.T) {
	var saved types.User
	repo := &userRepoStub{
		create: func(_ context.Context, user types.User) (types.User, error) {
			saved = user
			user.ID = 1
			return user, nil
		},
	}
	svc := newAuthService(repo)

	msg, err := svc.Register(context.Background(), RegisterInput{
		Name:      " Alice ",
		Email:     " A@X.com ",
		Password:  "secret1",
		Password2: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "New user a@x.com registered.", msg)
	assert.Equal(t, "Alice", saved.Name)
	assert.Equal(t, "a@x.com", saved.Email)
	assert.NotEqual(t, "secret1", saved.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("secret1")))
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	repo := &userRepoStub{
		getByEmail: func(_ context.Context, email string) (types.User, error) {
			if email == "a@x.com" {
				return types.User{ID: 1, Email: email}, nil
			}
			return types.User{}, store.ErrNotFound
		},
	}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Al", Email: "A@x.COM", Password: "secret1", Password2: "secret1"})
	requireKind(t, err, KindConflict)
}

func TestAuthService_RegisterUniqueIndexConflict(t *testing.T) {
	repo := &userRepoStub{
		create: func(context.Context, types.User) (types.User, error) {
			return types.User{}, store.ErrConflict
		},
	}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Al", Email: "a@x.com", Password: "secret1", Password2: "secret1"})
	requireKind(t, err, KindConflict)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newAuthService(&userRepoStub{})
	long := strings.Repeat("p", 80)

	tests := []struct {
		name    string
		in      RegisterInput
		message string
	}{
		{"missing name", RegisterInput{Email: "a@x.com", Password: "secret1", Password2: "secret1"}, "Fill in all fields."},
		{"blank email", RegisterInput{Name: "Al", Email: "  ", Password: "secret1", Password2: "secret1"}, "Fill in all fields."},
		{"short password", RegisterInput{Name: "Al", Email: "a@x.com", Password: " abc  ", Password2: " abc  "}, "Password must be at least 6 characters long."},
		{"mismatch", RegisterInput{Name: "Al", Email: "a@x.com", Password: "secret1", Password2: "secret2"}, "Passwords do not match."},
		{"too long", RegisterInput{Name: "Al", Email: "a@x.com", Password: long, Password2: long}, "Password must be at most 72 bytes long."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			serr := requireKind(t, err, KindValidation)
			assert.Equal(t, tt.message, serr.Message)
		})
	}
}

func TestAuthService_LoginReturnsTokenForUser(t *testing.T) {
	hash := mustHash(t, "secret1")
	repo := &userRepoStub{
		getByEmail: func(_ context.Context, email string) (types.User, error) {
			if email != "a@x.com" {
				return types.User{}, store.ErrNotFound
			}
			return types.User{ID: 42, Name: "Alice", Email: email, PasswordHash: hash}, nil
		},
	}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), LoginInput{Email: "A@X.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, 42, res.ID)
	assert.Equal(t, "Alice", res.Name)

	id, err := svc.Authenticate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	hash := mustHash(t, "secret1")
	repo := &userRepoStub{
		getByEmail: func(_ context.Context, email string) (types.User, error) {
			if email != "a@x.com" {
				return types.User{}, store.ErrNotFound
			}
			return types.User{ID: 1, Email: email, PasswordHash: hash}, nil
		},
	}
	svc := newAuthService(repo)

	_, wrongPassword := svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "nope123"})
	_, unknownEmail := svc.Login(context.Background(), LoginInput{Email: "b@x.com", Password: "secret1"})

	a := requireKind(t, wrongPassword, KindUnauthenticated)
	b := requireKind(t, unknownEmail, KindUnauthenticated)
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, "Invalid credentials.", a.Message)
}

func TestAuthService_AuthenticateRejectsGarbage(t *testing.T) {
	svc := newAuthService(&userRepoStub{})
	_, err := svc.Authenticate("not-a-token")
	requireKind(t, err, KindUnauthenticated)
}
