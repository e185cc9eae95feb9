package types

import (
	"strings"
	"time"
)

// Post represents a blog post written by a single user.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Title is the headline of the post.
	Title string `json:"title" db:"title"`

	// Category is one of the supported categories (see Categories).
	Category string `json:"category" db:"category"`

	// Description is the rich-text (HTML) body of the post.
	Description string `json:"description" db:"description"`

	// CreatorID references the user who wrote the post. It is fixed at
	// creation and used to authorize edits and deletion.
	CreatorID int `json:"creator" db:"creator_id"`

	// Thumbnail references the post's cover image, either an object key or URL.
	Thumbnail string `json:"thumbnail" db:"thumbnail"`

	// Views is reserved for view tracking and currently always zero.
	Views int `json:"views" db:"views"`

	// Likes holds the ids of users who liked the post. Not yet exposed by any endpoint.
	Likes []int64 `json:"likes" db:"likes"`

	// Tags are free-form labels attached to the post. Not yet exposed by any endpoint.
	Tags []string `json:"tags" db:"tags"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultCategory is assigned when a post has no category or an unknown one.
const DefaultCategory = "Uncategorized"

// Categories lists every category a post may belong to.
var Categories = []string{
	"Agriculture",
	"Business",
	"Education",
	"Entertainment",
	"Art",
	"Investment",
	"Technology",
	"Travel",
	"Health",
	"Food",
	"Sports",
	"Fashion",
	"Science",
	"Music",
	"Weather",
	DefaultCategory,
}

// NormalizeCategory returns the canonical spelling of category, matching
// case-insensitively. Empty or unknown values map to DefaultCategory.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	for _, c := range Categories {
		if strings.EqualFold(c, category) {
			return c
		}
	}
	return DefaultCategory
}
