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
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, user types.User) (types.User, error)
	UpdateAvatar(ctx context.Context, id int, avatar string) (types.User, error)
}

// EditUserInput updates name and email. The password fields are optional as
// a group: set one and all three are required.
type EditUserInput struct {
	Name               string `json:"name" validate:"required"`
	Email              string `json:"email" validate:"required"`
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

func (in EditUserInput) changesPassword() bool {
	return in.CurrentPassword != "" || in.NewPassword != "" || in.ConfirmNewPassword != ""
}

// UserService encapsulates profile use-cases.
type UserService struct {
	users          UserRepository
	media          media.Store
	cleaner        *media.Cleaner
	cache          *cache.Cache
	maxUploadBytes int64
	hashCost       int
}

func NewUserService(users UserRepository, mediaStore media.Store, cleaner *media.Cleaner, c *cache.Cache, maxUploadBytes int64) *UserService {
	return &UserService{
		users:          users,
		media:          mediaStore,
		cleaner:        cleaner,
		cache:          c,
		maxUploadBytes: maxUploadBytes,
		hashCost:       bcrypt.DefaultCost,
	}
}

func (s *UserService) Get(ctx context.Context, id int) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFoundError("User not found.")
		}
		return types.User{}, internalError("User couldn't be loaded.", err)
	}
	return user, nil
}

// ListAuthors returns every user ordered by id.
func (s *UserService) ListAuthors(ctx context.Context) ([]types.User, error) {
	var users []types.User
	err := s.cache.Aside(ctx, cache.AuthorsKey, &users, func() error {
		var err error
		users, err = s.users.List(ctx)
		return err
	})
	if err != nil {
		return nil, internalError("Authors couldn't be loaded.", err)
	}
	if users == nil {
		users = []types.User{}
	}
	return users, nil
}

// ChangeAvatar crops the upload to a square JPEG, stores it and replaces the
// caller's avatar. The previous avatar is removed best effort.
func (s *UserService) ChangeAvatar(ctx context.Context, callerID int, upload *media.Upload) (types.User, media.Cleanup, error) {
	up, err := checkUpload(upload, s.maxUploadBytes, media.KindAvatar, uploadMessages{
		missing:  "Please choose an image.",
		tooLarge: fmt.Sprintf("Profile picture too big. Should be less than %s.", sizeLimit(s.maxUploadBytes)),
		invalid:  "Invalid file upload. Please choose an image.",
	})
	if err != nil {
		return types.User{}, media.Cleanup{}, err
	}

	user, err := s.Get(ctx, callerID)
	if err != nil {
		return types.User{}, media.Cleanup{}, err
	}

	square, err := media.CropSquare(up, media.AvatarSize)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			return types.User{}, media.Cleanup{}, &Error{Kind: KindValidation, Message: "Invalid file upload. Please choose an image.", Err: err}
		}
		return types.User{}, media.Cleanup{}, internalError("Avatar change failed.", err)
	}

	ref, err := s.media.Store(ctx, square)
	if err != nil {
		return types.User{}, media.Cleanup{}, upstreamError("Failed to upload avatar. Please try again.", err)
	}

	updated, err := s.users.UpdateAvatar(ctx, callerID, ref)
	if err != nil {
		s.cleaner.Remove(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, media.Cleanup{}, notFoundError("User not found.")
		}
		return types.User{}, media.Cleanup{}, internalError("Avatar change failed.", err)
	}

	var cleanup media.Cleanup
	if user.Avatar != "" && user.Avatar != ref {
		cleanup = s.cleaner.Remove(ctx, user.Avatar)
	}
	s.cache.Invalidate(ctx, cache.AuthorsKey)
	return updated, cleanup, nil
}

// Edit updates the caller's name, email and optionally password.
func (s *UserService) Edit(ctx context.Context, callerID int, in EditUserInput) (types.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := check(in, "Name and email are required."); err != nil {
		return types.User{}, err
	}

	user, err := s.Get(ctx, callerID)
	if err != nil {
		return types.User{}, err
	}

	if in.Email != user.Email {
		other, err := s.users.GetByEmail(ctx, in.Email)
		switch {
		case err == nil && other.ID != callerID:
			return types.User{}, conflictError("Email already exists.")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return types.User{}, internalError("User update failed.", err)
		}
	}

	if in.changesPassword() {
		if in.CurrentPassword == "" || in.NewPassword == "" || in.ConfirmNewPassword == "" {
			return types.User{}, validationError("All password fields are required to change password.")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
			return types.User{}, validationError("Current password is incorrect.")
		}
		if in.NewPassword != in.ConfirmNewPassword {
			return types.User{}, validationError("New passwords do not match.")
		}
		if len(strings.TrimSpace(in.NewPassword)) < minPasswordLen {
			return types.User{}, validationError("New password must be at least 6 characters long.")
		}
		if len(in.NewPassword) > maxPasswordBytes {
			return types.User{}, validationError("New password must be at most 72 bytes long.")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.hashCost)
		if err != nil {
			return types.User{}, internalError("User update failed.", err)
		}
		user.PasswordHash = string(hashed)
	}

	user.Name = in.Name
	user.Email = in.Email
	updated, err := s.users.UpdateProfile(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.User{}, conflictError("Email already exists.")
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, notFoundError("User not found.")
		default:
			return types.User{}, internalError("User update failed.", err)
		}
	}

	s.cache.Invalidate(ctx, cache.AuthorsKey)
	return updated, nil
}
