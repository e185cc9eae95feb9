package services

import (
	"errors"
	"fmt"

	"github.com/weblog/api/internal/media"
)

// uploadMessages holds the client facing text for each upload failure.
type uploadMessages struct {
	missing  string
	tooLarge string
	invalid  string
}

func checkUpload(upload *media.Upload, maxBytes int64, kind media.Kind, msgs uploadMessages) (media.Upload, error) {
	if upload == nil {
		return media.Upload{}, validationError(msgs.missing)
	}
	up, err := media.Validate(*upload, maxBytes)
	switch {
	case err == nil:
		up.Kind = kind
		return up, nil
	case errors.Is(err, media.ErrEmpty):
		return up, &Error{Kind: KindValidation, Message: msgs.missing, Err: err}
	case errors.Is(err, media.ErrTooLarge):
		return up, &Error{Kind: KindValidation, Message: msgs.tooLarge, Err: err}
	default:
		return up, &Error{Kind: KindValidation, Message: msgs.invalid, Err: err}
	}
}

// sizeLimit renders a byte limit the way it is shown to users.
func sizeLimit(maxBytes int64) string {
	switch {
	case maxBytes >= 1000000:
		return fmt.Sprintf("%gMB", float64(maxBytes)/1000000)
	case maxBytes >= 1000:
		return fmt.Sprintf("%gKB", float64(maxBytes)/1000)
	default:
		return fmt.Sprintf("%d bytes", maxBytes)
	}
}
