package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Compile-time check that FileSystem implements ObjectStore.
var _ ObjectStore = (*FileSystem)(nil)

const revisionsDir = ".revisions"

// FileSystem implements ObjectStore using the local filesystem.
// Live objects are stored at <basePath>/<key>; every revision is kept at
// <basePath>/.revisions/<key>/<revision>, where the revision id is a
// time-ordered UUID issued by Put.
type FileSystem struct {
	basePath string
}

// NewFileSystem creates a new FileSystem storage rooted at basePath.
func NewFileSystem(basePath string) *FileSystem {
	return &FileSystem{basePath: basePath}
}

// livePath returns the path of the live object for key.
func (fs *FileSystem) livePath(key string) (string, error) {
	return fs.resolve(key)
}

// revisionPath returns the path of one revision of key.
func (fs *FileSystem) revisionPath(key, version string) (string, error) {
	if version == "" || strings.ContainsAny(version, `/\`) || version == "." || version == ".." {
		return "", fmt.Errorf("invalid revision %q", version)
	}
	return fs.resolve(revisionsDir + "/" + key + "/" + version)
}

func (fs *FileSystem) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(fs.basePath, clean), nil
}

// Put stores data as a new revision of key and makes it the live object.
// Every call issues a fresh revision id, even for identical content.
func (fs *FileSystem) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rev, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating revision id: %w", err)
	}
	version := rev.String()

	revPath, err := fs.revisionPath(key, version)
	if err != nil {
		return "", err
	}
	live, err := fs.livePath(key)
	if err != nil {
		return "", err
	}

	if err := writeAtomic(revPath, data); err != nil {
		return "", fmt.Errorf("writing revision: %w", err)
	}
	if err := writeAtomic(live, data); err != nil {
		return "", fmt.Errorf("writing object: %w", err)
	}
	return version, nil
}

// writeAtomic writes data to path using a temp file in the same directory
// followed by a rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", path, err)
	}

	// Rename succeeded; prevent deferred cleanup from removing the final file.
	tmpPath = ""
	return nil
}

// Get opens a revision of key, or the live object when version is empty.
// Content type is not recorded by this backend and is returned empty.
func (fs *FileSystem) Get(ctx context.Context, key, version string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		path string
		err  error
	)
	if version == "" {
		path, err = fs.livePath(key)
	} else {
		path, err = fs.revisionPath(key, version)
	}
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s@%s: %w", key, version, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	return &Object{Body: f}, nil
}

// List walks the live tree below prefix. Revisions and temp files are skipped.
func (fs *FileSystem) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	root := fs.basePath
	if dir := prefix[:strings.LastIndex(prefix, "/")+1]; dir != "" {
		resolved, err := fs.resolve(dir)
		if err != nil {
			return nil, err
		}
		root = resolved
	}

	var objects []ObjectInfo
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(fs.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Delete removes the live object for key. Revisions are kept.
// It is idempotent: deleting a non-existent object returns no error.
func (fs *FileSystem) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := fs.livePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file %s: %w", path, err)
	}
	return nil
}
