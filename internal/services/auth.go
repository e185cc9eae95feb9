package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/weblog/api/internal/cache"
	"github.com/weblog/api/internal/store"
	"github.com/weblog/api/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	// maxPasswordBytes is the longest input bcrypt accepts.
	maxPasswordBytes = 72
)

type RegisterInput struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token string `json:"token"`
	ID    int    `json:"id"`
	Name  string `json:"name"`
}

// AuthService registers users and exchanges credentials for tokens.
type AuthService struct {
	users    UserRepository
	tokens   *TokenManager
	cache    *cache.Cache
	hashCost int
}

func NewAuthService(users UserRepository, tokens *TokenManager, c *cache.Cache) *AuthService {
	return &AuthService{users: users, tokens: tokens, cache: c, hashCost: bcrypt.DefaultCost}
}

// Register creates an account. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := check(in, "Fill in all fields."); err != nil {
		return "", err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return "", conflictError("This email is already registered.")
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", internalError("User registration failed.", err)
	}

	if len(strings.TrimSpace(in.Password)) < minPasswordLen {
		return "", validationError("Password must be at least 6 characters long.")
	}
	if len(in.Password) > maxPasswordBytes {
		return "", validationError("Password must be at most 72 bytes long.")
	}
	if in.Password != in.Password2 {
		return "", validationError("Passwords do not match.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return "", internalError("User registration failed.", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return "", conflictError("This email is already registered.")
		}
		return "", internalError("User registration failed.", err)
	}

	s.cache.Invalidate(ctx, cache.AuthorsKey)
	return fmt.Sprintf("New user %s registered.", user.Email), nil
}

// Login verifies credentials. Unknown emails and wrong passwords fail the
// same way.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := check(in, "Fill in all fields."); err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, unauthenticatedError("Invalid credentials.")
		}
		return LoginResult{}, internalError("Login failed.", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return LoginResult{}, unauthenticatedError("Invalid credentials.")
	}

	token, err := s.tokens.Issue(user.ID, user.Name)
	if err != nil {
		return LoginResult{}, internalError("Login failed.", err)
	}
	return LoginResult{Token: token, ID: user.ID, Name: user.Name}, nil
}

// Authenticate resolves a bearer token to a user id.
func (s *AuthService) Authenticate(token string) (int, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return 0, &Error{Kind: KindUnauthenticated, Message: "Unauthorized. Invalid token.", Err: err}
	}
	return id, nil
}
