package types

import "time"

// User represents an author account in WeBlog.
// It contains identity, profile, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address, stored lower-cased and unique.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Avatar references the user's profile picture. It is either an object
	// key (local uploads) or an absolute URL (object storage). Empty when unset.
	Avatar string `json:"avatar" db:"avatar"`

	// Posts is the denormalized number of posts authored by the user.
	// It never goes below zero.
	Posts int `json:"posts" db:"posts"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
