package storage

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{
			name:     "no such key",
			err:      minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound},
			notFound: true,
		},
		{
			name:     "plain 404",
			err:      minio.ErrorResponse{StatusCode: http.StatusNotFound},
			notFound: true,
		},
		{
			name: "access denied",
			err:  minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden},
		},
		{
			name: "network",
			err:  errors.New("dial tcp: connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("ocr-files", "uploads/a.pdf", tt.err)
			assert.Equal(t, tt.notFound, errors.Is(err, ErrObjectNotFound))
			assert.Contains(t, err.Error(), "ocr-files/uploads/a.pdf")
		})
	}
}
