package database

import (
	"context"
	"errors"

	"github.com/leca/image-vault/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a write would break a
	// (name, username) or username uniqueness constraint.
	ErrDuplicateName = errors.New("name already taken")
)

// Database is the metadata store for users, images and image versions.
// Image lookups are scoped to the owning username unless they take only
// an image id, in which case the caller has already resolved ownership.
type Database interface {
	// Users
	CreateUser(ctx context.Context, username string) (*model.UserInfo, error)
	FindUser(ctx context.Context, username string) (*model.UserInfo, error)
	ListUsers(ctx context.Context) ([]*model.UserInfo, error)

	// Images
	InsertImage(ctx context.Context, img *model.ImageInfo) (bool, error)
	FindImage(ctx context.Context, id, username string) (*model.ImageInfo, error)
	FindImageWithLineage(ctx context.Context, id, username string) (*model.Image, error)
	FindAllImages(ctx context.Context, username string) ([]*model.Image, error)
	FindImageIDByName(ctx context.Context, name, username string) (string, error)
	DeleteImage(ctx context.Context, id string) error
	RenameImage(ctx context.Context, id, newName string) (string, error)

	// Versions
	InsertImageVersion(ctx context.Context, v *model.ImageVersion) (string, error)
	ListImageVersions(ctx context.Context, imageID string) ([]*model.ImageVersion, error)
	RevertImageVersion(ctx context.Context, imageID string) (string, error)
	RestoreImageVersion(ctx context.Context, imageID string) (string, error)

	Close() error
}
