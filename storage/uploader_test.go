package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"image/webp", true},
		{"image/gif", true},
		{"IMAGE/PNG", true}, // media types are case-insensitive
		{"image/png; charset=binary", true},
		{"image/svg+xml", false},
		{"application/pdf", false},
		{"text/html", false},
		{"", false},
		{"not a mime type", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AllowedContentType(tt.contentType), tt.contentType)
	}
}
