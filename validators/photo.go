// Package validators checks inbound uploads before any storage or
// database work happens
package validators

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/viper"
)

var (
	ErrFileTooLarge        = errors.New("file too large")
	ErrFileNameTooLong     = errors.New("file name is too long")
	ErrFileTypeUnsupported = errors.New("unsupported file type")
	ErrNoFile              = errors.New("no file provided")
)

const maxFileNameSize = 255

var allowedMimes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// PhotoValidator checks the upload's declared headers first (cheap, easy
// to spoof) and then sniffs the actual bytes. Returns the suggested HTTP
// status, the opened file rewound to the start and the detected MIME type.
func PhotoValidator(fh *multipart.FileHeader) (int, multipart.File, string, error) {
	if fh == nil {
		return http.StatusBadRequest, nil, "", ErrNoFile
	}

	ct := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		return http.StatusBadRequest, nil, "", ErrFileTypeUnsupported
	}

	if len(fh.Filename) > maxFileNameSize {
		return http.StatusBadRequest, nil, "", ErrFileNameTooLong
	}

	maxFileSize := viper.GetInt64("upload.max_size")
	if fh.Size > maxFileSize {
		return http.StatusRequestEntityTooLarge, nil, "", ErrFileTooLarge
	}

	// And now do the checks on the actual file to avoid
	// malicious clients
	f, err := fh.Open()
	if err != nil {
		return http.StatusInternalServerError, nil, "", err
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return http.StatusInternalServerError, nil, "", err
	}

	allowed := false
	for _, m := range allowedMimes {
		if mime.Is(m) {
			allowed = true
			break
		}
	}
	if !allowed {
		f.Close()
		return http.StatusBadRequest, nil, "", ErrFileTypeUnsupported
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return http.StatusInternalServerError, nil, "", err
	}

	return 0, f, mime.String(), nil
}
