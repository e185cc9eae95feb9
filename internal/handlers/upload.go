package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/weblog/api/internal/media"
)

const (
	maxMultipartMemory = 8 << 20
	// multipartOverhead leaves room for form fields next to the file.
	multipartOverhead = 1 << 20
)

var errBodyTooLarge = errors.New("request body too large")

// parseMultipart bounds the request body and parses the form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxUploadBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return err
	}
	return nil
}

// formUpload reads the named file part. A missing part yields nil.
func formUpload(r *http.Request, field string, maxUploadBytes int64) (*media.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := readFileLimited(file, maxUploadBytes)
	if err != nil {
		return nil, err
	}
	return &media.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// readFileLimited reads at most limit+1 bytes so oversized files are
// detected without buffering them whole.
func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	return data, nil
}

func writeMultipartError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Upload is too large.")
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid form data.")
}
