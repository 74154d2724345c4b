package imagestore

import (
	"context"
	"sort"

	"github.com/leca/image-vault/internal/model"
)

// Reconcile compares the user's object namespace with their metadata rows
// and reports objects without a row and rows without an object. It never
// modifies either store.
func (s *Store) Reconcile(ctx context.Context, user *model.UserInfo) (rec *model.Reconciliation, err error) {
	defer func() { s.record("reconcile", true, err) }()

	if user == nil {
		return nil, ErrUserNotFound
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

	present := make(map[string]bool, len(objects))
	for _, obj := range objects {
		present[obj.Key] = true
	}

	rec = &model.Reconciliation{
		Username:      user.Username,
		Objects:       len(objects),
		Images:        len(images),
		OrphanObjects: []string{},
		OrphanImages:  []string{},
	}
	for _, img := range images {
		key := ObjectKey(user.ObjectBasePath, img.ID, img.Extension)
		if present[key] {
			delete(present, key)
			continue
		}
		rec.OrphanImages = append(rec.OrphanImages, img.ID)
	}
	for key := range present {
		rec.OrphanObjects = append(rec.OrphanObjects, key)
	}
	sort.Strings(rec.OrphanObjects)
	sort.Strings(rec.OrphanImages)

	s.metrics.SetOrphans(user.Username, len(rec.OrphanObjects), len(rec.OrphanImages))
	if !rec.Clean() {
		s.logger.Warn().
			Str("username", user.Username).
			Int("orphan_objects", len(rec.OrphanObjects)).
			Int("orphan_images", len(rec.OrphanImages)).
			Msg("stores disagree")
	}
	return rec, nil
}
