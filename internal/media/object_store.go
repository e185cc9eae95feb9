package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/weblog/api/internal/metrics"
	"github.com/weblog/api/internal/storage"
)

const maxBaseLen = 40

// ObjectStore keeps media in an object storage bucket. References are the
// object key, prefixed with publicURL when one is configured.
type ObjectStore struct {
	storage   *storage.Storage
	publicURL string
}

func NewObjectStore(s *storage.Storage, publicURL string) *ObjectStore {
	return &ObjectStore{storage: s, publicURL: strings.TrimRight(publicURL, "/")}
}

func (o *ObjectStore) Store(ctx context.Context, upload Upload) (string, error) {
	if upload.Kind == "" {
		return "", errors.New("upload kind is required")
	}
	key := ObjectKey(upload)
	err := o.storage.Put(ctx, key, bytes.NewReader(upload.Data), int64(len(upload.Data)), upload.ContentType)
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	metrics.MediaUploads.WithLabelValues(string(upload.Kind)).Inc()
	return o.Reference(key), nil
}

// Delete removes the object behind ref. An object that is already gone is
// not an error.
func (o *ObjectStore) Delete(ctx context.Context, ref string) error {
	key, err := o.Key(ref)
	if err != nil {
		return err
	}
	err = o.storage.Delete(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Reference converts an object key into the value persisted on records.
func (o *ObjectStore) Reference(key string) string {
	if o.publicURL == "" {
		return key
	}
	return o.publicURL + "/" + key
}

// Key converts a persisted reference back into an object key.
func (o *ObjectStore) Key(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrForeignReference
	}
	if o.publicURL != "" {
		if key, ok := strings.CutPrefix(ref, o.publicURL+"/"); ok && key != "" {
			return key, nil
		}
	}
	if strings.Contains(ref, "://") {
		return "", ErrForeignReference
	}
	return strings.TrimLeft(ref, "/"), nil
}

// ObjectKey names an upload as <kind>/<base>-<uuid>.<ext>.
func ObjectKey(upload Upload) string {
	ext, ok := extensions[upload.ContentType]
	if !ok {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s-%s.%s", upload.Kind, sanitizeBase(upload.Filename), uuid.NewString(), ext)
}

func sanitizeBase(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))

	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
		if b.Len() >= maxBaseLen {
			break
		}
	}
	out := strings.Trim(b.String(), "-_")
	if out == "" {
		return "image"
	}
	return out
}
