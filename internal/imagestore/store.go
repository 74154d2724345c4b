// Package imagestore keeps the metadata store and the object store in
// agreement about which payload is the current version of each image.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leca/image-vault/internal/database"
	"github.com/leca/image-vault/internal/metrics"
	"github.com/leca/image-vault/internal/model"
	"github.com/leca/image-vault/internal/storage"
)

// MaxPageSize is the largest limit GetMetadataAll accepts.
const MaxPageSize = 100

// Store is the versioned image engine. Every operation is scoped to the
// calling user; callers resolve and authenticate the user beforehand.
type Store struct {
	db      database.Database
	objects storage.ObjectStore
	logger  zerolog.Logger
	metrics *metrics.Metrics
	newID   func() (uuid.UUID, error)
}

// New creates a Store. m may be nil.
func New(db database.Database, objects storage.ObjectStore, logger zerolog.Logger, m *metrics.Metrics) *Store {
	return &Store{
		db:      db,
		objects: objects,
		logger:  logger,
		metrics: m,
		newID:   uuid.NewV7,
	}
}

func (s *Store) record(op string, found bool, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		s.metrics.StoreOperation(op, metrics.ResultNotFound)
	case err != nil:
		s.metrics.StoreOperation(op, metrics.ResultError)
	case !found:
		s.metrics.StoreOperation(op, metrics.ResultNotFound)
	default:
		s.metrics.StoreOperation(op, metrics.ResultOK)
	}
}

// resolve returns the image addressed by id for user, or ErrNotFound.
func (s *Store) resolve(ctx context.Context, user *model.UserInfo, id string) (*model.ImageInfo, error) {
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !validID(id) {
		return nil, ErrNotFound
	}
	info, err := s.db.FindImage(ctx, id, user.Username)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr("find image", err)
	}
	return info, nil
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

// Upload stores each image in order. An image whose name the user already
// owns becomes a new version of that image. Object store failures stop the
// batch and are returned with the results accepted so far; metadata
// failures after a successful object write are logged and counted only.
func (s *Store) Upload(ctx context.Context, user *model.UserInfo, images ...model.UploadImage) ([]model.UploadResult, error) {
	if user == nil {
		return nil, ErrUserNotFound
	}
	results := make([]model.UploadResult, 0, len(images))
	for _, img := range images {
		res, err := s.uploadOne(ctx, user, img)
		s.record("upload", true, err)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

func (s *Store) uploadOne(ctx context.Context, user *model.UserInfo, img model.UploadImage) (*model.UploadResult, error) {
	if img.Name == "" {
		return nil, fmt.Errorf("%w: empty image name", ErrInvalidArgument)
	}

	target, err := s.uploadTarget(ctx, user, img.Name)
	if err != nil {
		return nil, err
	}

	version, err := s.put(ctx, target.key, img)
	if err != nil {
		return nil, err
	}
	res := &model.UploadResult{ID: target.id, Name: img.Name, Version: version, Key: target.key, NewImage: target.isNew}
	log := s.logger.With().Str("image_id", target.id).Str("version", version).Str("key", target.key).Logger()

	if target.isNew {
		inserted, err := s.db.InsertImage(ctx, &model.ImageInfo{
			ID:          target.id,
			Name:        img.Name,
			Username:    user.Username,
			Extension:   target.extension,
			ContentType: img.ContentType,
		})
		if err != nil {
			s.metrics.MetadataWriteFailure("insert_image")
			log.Error().Err(err).Msg("image stored but metadata insert failed")
			return res, nil
		}
		if !inserted {
			// A concurrent upload created the image first; attach this
			// payload to it as a new version.
			res, err = s.adoptExisting(ctx, user, img, target, version)
			if err != nil {
				return nil, err
			}
			log = s.logger.With().Str("image_id", res.ID).Str("version", res.Version).Str("key", res.Key).Logger()
		}
	}

	inserted, err := s.db.InsertImageVersion(ctx, &model.ImageVersion{
		ImageID:     res.ID,
		Version:     res.Version,
		ContentType: img.ContentType,
		Width:       img.Dimensions.Width,
		Height:      img.Dimensions.Height,
		Size:        int64(len(img.Data)),
	})
	if err != nil {
		s.metrics.MetadataWriteFailure("insert_version")
		log.Error().Err(err).Msg("image stored but version insert failed")
		return res, nil
	}
	if inserted == "" {
		log.Info().Msg("version already recorded, lineage unchanged")
	}
	return res, nil
}

type uploadTarget struct {
	id        string
	extension string
	key       string
	isNew     bool
}

func (s *Store) uploadTarget(ctx context.Context, user *model.UserInfo, name string) (*uploadTarget, error) {
	id, err := s.db.FindImageIDByName(ctx, name, user.Username)
	if err == nil {
		info, err := s.db.FindImage(ctx, id, user.Username)
		if err != nil {
			return nil, queryErr("find image", err)
		}
		return &uploadTarget{
			id:        id,
			extension: info.Extension,
			key:       ObjectKey(user.ObjectBasePath, id, info.Extension),
		}, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, queryErr("find image id", err)
	}

	uid, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate image id: %w", err)
	}
	ext := ExtensionFromName(name)
	return &uploadTarget{
		id:        uid.String(),
		extension: ext,
		key:       ObjectKey(user.ObjectBasePath, uid.String(), ext),
		isNew:     true,
	}, nil
}

// put writes the payload and returns its lineage token. When the store
// issues no revision id, put mints a synthetic token and keeps a copy of
// the payload under the token's revision key, so every version stays
// readable after the live object is overwritten.
func (s *Store) put(ctx context.Context, key string, img model.UploadImage) (string, error) {
	version, err := s.objects.Put(ctx, key, img.Data, img.ContentType.MIME())
	if err != nil {
		return "", objectErr("put", key, err)
	}
	if version != "" {
		return version, nil
	}

	uid, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate version id: %w", err)
	}
	version = syntheticVersion(uid)
	rev := revisionKey(key, version)
	if _, err := s.objects.Put(ctx, rev, img.Data, img.ContentType.MIME()); err != nil {
		return "", objectErr("put", rev, err)
	}
	return version, nil
}

// dropRevisionCopies removes the revision copies written for synthetic
// tokens. Failures are logged; the copies lie outside every listing.
func (s *Store) dropRevisionCopies(ctx context.Context, key string, versions ...string) {
	for _, v := range versions {
		if !isSyntheticVersion(v) {
			continue
		}
		rev := revisionKey(key, v)
		if err := s.objects.Delete(ctx, rev); err != nil {
			s.logger.Warn().Err(err).Str("key", rev).Msg("could not remove revision copy")
		}
	}
}

// adoptExisting moves a payload that lost a first-upload race under the
// key of the image that won it. The losing object is removed.
func (s *Store) adoptExisting(ctx context.Context, user *model.UserInfo, img model.UploadImage, lost *uploadTarget, lostVersion string) (*model.UploadResult, error) {
	s.logger.Warn().Str("image_id", lost.id).Str("name", img.Name).Msg("lost first-upload race, adding version to existing image")

	winner, err := s.uploadTarget(ctx, user, img.Name)
	if err != nil {
		return nil, err
	}
	version, err := s.put(ctx, winner.key, img)
	if err != nil {
		return nil, err
	}
	if err := s.objects.Delete(ctx, lost.key); err != nil {
		s.logger.Warn().Err(err).Str("key", lost.key).Msg("could not remove object of lost upload")
	}
	s.dropRevisionCopies(ctx, lost.key, lostVersion)
	return &model.UploadResult{ID: winner.id, Name: img.Name, Version: version, Key: winner.key}, nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// GetOne returns the payload of the current version, anchored to the
// version token read from metadata. It returns nil when the image does not
// exist or has no version.
func (s *Store) GetOne(ctx context.Context, user *model.UserInfo, id string) (data *model.ImageData, err error) {
	defer func() { s.record("get", data != nil, err) }()

	info, err := s.resolve(ctx, user, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Version == "" {
		return nil, nil
	}

	key, rev := objectRef(ObjectKey(user.ObjectBasePath, info.ID, info.Extension), info.Version)
	obj, err := s.objects.Get(ctx, key, rev)
	if err != nil {
		return nil, objectErr("get", key, err)
	}
	defer obj.Body.Close()

	payload, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrReadFailure, key, err)
	}

	contentType := obj.ContentType
	if info.ContentType.IsKnown() || contentType == "" {
		contentType = info.ContentType.MIME()
	}
	return &model.ImageData{ContentType: contentType, Data: payload}, nil
}

// GetMetadataOne returns the image with the lineage facts of its current
// version, or nil when it does not exist.
func (s *Store) GetMetadataOne(ctx context.Context, user *model.UserInfo, id string) (img *model.Image, err error) {
	defer func() { s.record("get_metadata", img != nil, err) }()

	if user == nil {
		return nil, ErrUserNotFound
	}
	if !validID(id) {
		return nil, nil
	}
	img, err = s.db.FindImageWithLineage(ctx, id, user.Username)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, queryErr("find image with lineage", err)
	}
	return img, nil
}

// GetMetadataAll returns one page of the user's images ordered by object
// modification time, newest first.
func (s *Store) GetMetadataAll(ctx context.Context, user *model.UserInfo, page, limit int) (list *model.ImageList, err error) {
	defer func() { s.record("list", true, err) }()

	if user == nil {
		return nil, ErrUserNotFound
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d", ErrInvalidArgument, page)
	}
	if limit < 1 || limit > MaxPageSize {
		return nil, fmt.Errorf("%w: limit %d", ErrInvalidArgument, limit)
	}

	prefix := namespacePrefix(user.ObjectBasePath)
	objects, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, objectErr("list", prefix, err)
	}
	images, err := s.db.FindAllImages(ctx, user.Username)
	if err != nil {
		return nil, queryErr("find all images", err)
	}
	return MergeListing(user.ObjectBasePath, objects, images, page, limit), nil
}

// ListVersions returns the lineage of an image, oldest first.
func (s *Store) ListVersions(ctx context.Context, user *model.UserInfo, id string) (versions []*model.ImageVersion, err error) {
	defer func() { s.record("list_versions", true, err) }()

	info, err := s.resolve(ctx, user, id)
	if err != nil {
		return nil, err
	}
	versions, err = s.db.ListImageVersions(ctx, info.ID)
	if err != nil {
		return nil, queryErr("list image versions", err)
	}
	return versions, nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// Delete removes the image and its lineage, then its live object and the
// revision copies of synthetic versions. Native object revisions are left
// to the object store's retention.
func (s *Store) Delete(ctx context.Context, user *model.UserInfo, id string) (err error) {
	defer func() { s.record("delete", true, err) }()

	info, err := s.resolve(ctx, user, id)
	if err != nil {
		return err
	}
	versions, err := s.db.ListImageVersions(ctx, info.ID)
	if err != nil {
		return queryErr("list image versions", err)
	}
	if err := s.db.DeleteImage(ctx, info.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return queryErr("delete image", err)
	}

	key := ObjectKey(user.ObjectBasePath, info.ID, info.Extension)
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("image_id", info.ID).Str("key", key).Msg("metadata deleted but object remains")
		return objectErr("delete", key, err)
	}
	tokens := make([]string, 0, len(versions))
	for _, v := range versions {
		tokens = append(tokens, v.Version)
	}
	s.dropRevisionCopies(ctx, key, tokens...)
	return nil
}

// Rename changes the display name of an image. Object keys do not depend
// on the name. It returns "" when no row changed.
func (s *Store) Rename(ctx context.Context, user *model.UserInfo, id, newName string) (name string, err error) {
	defer func() { s.record("rename", true, err) }()

	if newName == "" {
		return "", fmt.Errorf("%w: empty image name", ErrInvalidArgument)
	}
	info, err := s.resolve(ctx, user, id)
	if err != nil {
		return "", err
	}
	name, err = s.db.RenameImage(ctx, info.ID, newName)
	if errors.Is(err, database.ErrDuplicateName) {
		return "", ErrNameTaken
	}
	if err != nil {
		return "", queryErr("rename image", err)
	}
	return name, nil
}

// Revert moves the current pointer one version back. It returns the new
// current token, or "" when the image is already at its initial version.
func (s *Store) Revert(ctx context.Context, user *model.UserInfo, id string) (string, error) {
	return s.move(ctx, "revert", user, id, s.db.RevertImageVersion)
}

// Restore moves the current pointer one version forward. It returns the
// new current token, or "" when the image is already at its latest version.
func (s *Store) Restore(ctx context.Context, user *model.UserInfo, id string) (string, error) {
	return s.move(ctx, "restore", user, id, s.db.RestoreImageVersion)
}

func (s *Store) move(ctx context.Context, op string, user *model.UserInfo, id string,
	step func(ctx context.Context, imageID string) (string, error)) (version string, err error) {
	defer func() { s.record(op, true, err) }()

	info, err := s.resolve(ctx, user, id)
	if err != nil {
		return "", err
	}
	version, err = step(ctx, info.ID)
	if err != nil {
		return "", queryErr(op+" image version", err)
	}
	if version == "" || version == info.Version {
		return "", nil
	}
	return version, nil
}
