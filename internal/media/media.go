// Package media validates, stores and removes user supplied images.
package media

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrEmpty            = errors.New("no image provided")
	ErrTooLarge         = errors.New("image exceeds the upload limit")
	ErrUnsupportedType  = errors.New("file is not a supported image")
	ErrForeignReference = errors.New("reference is not managed by this store")
)

// Kind groups stored objects under a key prefix.
type Kind string

const (
	KindThumbnail Kind = "thumbnails"
	KindAvatar    Kind = "avatars"
)

// Upload is an image received from a client.
type Upload struct {
	Kind        Kind
	Filename    string
	ContentType string
	Data        []byte
}

// Store persists uploads and returns a reference clients can resolve.
type Store interface {
	Store(ctx context.Context, upload Upload) (string, error)
	Delete(ctx context.Context, ref string) error
}

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Validate checks size and sniffs the content type from the bytes. The
// returned upload carries the detected content type, never the client's.
func Validate(upload Upload, maxBytes int64) (Upload, error) {
	if len(upload.Data) == 0 {
		return upload, ErrEmpty
	}
	if maxBytes > 0 && int64(len(upload.Data)) > maxBytes {
		return upload, ErrTooLarge
	}
	detected := http.DetectContentType(upload.Data)
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	if _, ok := extensions[detected]; !ok {
		return upload, ErrUnsupportedType
	}
	upload.ContentType = detected
	return upload, nil
}
