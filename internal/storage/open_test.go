package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/image-vault/internal/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Storage.Driver = config.DriverFilesystem
	cfg.Storage.Path = t.TempDir()
	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileSystem{}, store)

	cfg.Storage.Driver = config.DriverMinio
	cfg.S3.Endpoint = "localhost:9000"
	cfg.S3.Bucket = "images"
	store, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &Minio{}, store)

	cfg.Storage.Driver = config.DriverS3
	cfg.S3.Region = "us-east-1"
	cfg.S3.AccessKey = "key"
	cfg.S3.SecretKey = "secret"
	store, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &S3{}, store)

	cfg.Storage.Driver = "tape"
	_, err = Open(ctx, cfg)
	assert.ErrorContains(t, err, "tape")
}
