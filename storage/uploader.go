package storage

import (
	"context"
	"errors"
	"io"
	"mime"
)

// ErrUnsupportedContentType rejects uploads whose MIME type is not an
// accepted banner image format.
var ErrUnsupportedContentType = errors.New("unsupported banner content type")

var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// AllowedContentType reports whether a MIME type may be stored as a
// tournament banner. Media-type parameters are ignored.
func AllowedContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := allowedContentTypes[mediaType]
	return ok
}

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader stores tournament banner images in an S3-compatible
// bucket.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}
