package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readObject(t *testing.T, obj *Object) []byte {
	t.Helper()
	defer obj.Body.Close()
	got, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	return got
}

func TestPut(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	data := []byte("hello, image data")

	version, err := fs.Put(context.Background(), "base/img-1.jpg", data, "image/jpeg")
	require.NoError(t, err)
	assert.Len(t, version, 64)

	// Verify the live file exists on disk at the expected path.
	content, err := os.ReadFile(filepath.Join(fs.basePath, "base", "img-1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, data, content)

	content, err = os.ReadFile(filepath.Join(fs.basePath, revisionsDir, "base", "img-1.jpg", version))
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestPutSameContentNewRevision(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	v1, err := fs.Put(ctx, "base/a.png", []byte("same"), "image/png")
	require.NoError(t, err)
	v2, err := fs.Put(ctx, "base/a.png", []byte("same"), "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	for _, v := range []string{v1, v2} {
		obj, err := fs.Get(ctx, "base/a.png", v)
		require.NoError(t, err)
		assert.Equal(t, []byte("same"), readObject(t, obj))
	}
}

func TestGetRevisionAndLive(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	v1, err := fs.Put(ctx, "base/img.jpg", []byte("first"), "image/jpeg")
	require.NoError(t, err)
	v2, err := fs.Put(ctx, "base/img.jpg", []byte("second"), "image/jpeg")
	require.NoError(t, err)

	obj, err := fs.Get(ctx, "base/img.jpg", v1)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), readObject(t, obj))

	obj, err = fs.Get(ctx, "base/img.jpg", v2)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), readObject(t, obj))

	obj, err = fs.Get(ctx, "base/img.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), readObject(t, obj))
}

func TestGetNotFound(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	_, err := fs.Get(ctx, "base/missing.jpg", "")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = fs.Put(ctx, "base/img.jpg", []byte("x"), "image/jpeg")
	require.NoError(t, err)
	_, err = fs.Get(ctx, "base/img.jpg", "deadbeef")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestInvalidKey(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "..", "../escape.jpg", "/abs.jpg"} {
		_, err := fs.Put(ctx, key, []byte("x"), "image/jpeg")
		assert.Error(t, err, "key %q", key)
	}

	_, err := fs.Put(ctx, "base/a.jpg", []byte("x"), "image/jpeg")
	require.NoError(t, err)
	_, err = fs.Get(ctx, "base/a.jpg", "../../a.jpg")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"alice/b.jpg", "alice/a.png", "bob/c.jpg"} {
		_, err := fs.Put(ctx, key, []byte(key), "")
		require.NoError(t, err)
	}

	objects, err := fs.List(ctx, "alice/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "alice/a.png", objects[0].Key)
	assert.Equal(t, "alice/b.jpg", objects[1].Key)
	assert.Equal(t, int64(len("alice/a.png")), objects[0].Size)
	assert.False(t, objects[0].LastModified.IsZero())

	all, err := fs.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3, "revisions must not be listed")
}

func TestListMissingPrefix(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	objects, err := fs.List(context.Background(), "nobody/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestDelete(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	version, err := fs.Put(ctx, "base/img.jpg", []byte("delete me"), "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, fs.Delete(ctx, "base/img.jpg"))

	_, err = fs.Get(ctx, "base/img.jpg", "")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// Revisions survive deletion of the live object.
	obj, err := fs.Get(ctx, "base/img.jpg", version)
	require.NoError(t, err)
	assert.Equal(t, []byte("delete me"), readObject(t, obj))

	objects, err := fs.List(ctx, "base/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestDeleteNotFound(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	// Deleting a non-existent object should not return an error.
	err := fs.Delete(context.Background(), "base/nonexistent.jpg")
	assert.NoError(t, err)
}

func TestCanceledContext(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fs.Put(ctx, "base/a.jpg", []byte("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}
