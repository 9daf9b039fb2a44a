package storage

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"refman/internal/config"
)

func TestNewMinIO_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MinIOConfig
		want string
	}{
		{name: "missing endpoint", cfg: config.MinIOConfig{}, want: "endpoint"},
		{name: "missing credentials", cfg: config.MinIOConfig{Endpoint: "localhost:9000", Bucket: "b"}, want: "credentials"},
		{name: "missing bucket", cfg: config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, want: "bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMinIO(tt.cfg)
			assert.ErrorContains(t, err, tt.want)
			assert.Nil(t, s)
		})
	}
}

func TestMapError(t *testing.T) {
	err := mapError("backups/x.json", minio.ErrorResponse{Code: noSuchKey, Message: "gone"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = mapError("backups/x.json", errors.New("timeout"))
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "timeout")
}
