package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Compile-time check that Minio implements ObjectStore.
var _ ObjectStore = (*Minio)(nil)

// minioClient is the subset of *minio.Client the store uses.
type minioClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Minio implements ObjectStore on an S3-compatible server through minio-go.
type Minio struct {
	bucket string
	client minioClient
}

// MinioOptions configures NewMinio.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinio creates a Minio store for one bucket.
func NewMinio(opts MinioOptions) (*Minio, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Minio{bucket: opts.Bucket, client: client}, nil
}

func (m *Minio) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return normalizeVersion(info.VersionID), nil
}

// Get opens the requested revision. minio-go defers the request until the
// first read, so the object is stat'ed here to surface a missing revision
// as an error instead of a failing body.
func (m *Minio) Get(ctx context.Context, key, version string) (*Object, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{VersionID: version})
	if err != nil {
		return nil, m.wrapGetError(key, version, err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, m.wrapGetError(key, version, err)
	}
	return &Object{ContentType: stat.ContentType, Body: obj}, nil
}

func (m *Minio) wrapGetError(key, version string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchKey", "NoSuchVersion":
			return fmt.Errorf("get object %s@%s: %w: %v", key, version, ErrObjectNotFound, err)
		}
	}
	return fmt.Errorf("get object %s@%s: %w", key, version, err)
}

func (m *Minio) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, obj.Err)
		}
		objects = append(objects, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return objects, nil
}

func (m *Minio) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
