package imagestore

import (
	"sort"

	"github.com/leca/image-vault/internal/model"
	"github.com/leca/image-vault/internal/storage"
)

// MergeListing builds one page of a user's images from the object listing
// of their namespace and their metadata rows.
//
// The object listing decides presence and order: objects are sorted by
// last modification, newest first, with the key breaking ties. The page
// window is cut from that order before the join, so Total counts objects
// and a page may hold fewer than limit images when some objects have no
// metadata row.
func MergeListing(basePath string, objects []storage.ObjectInfo, images []*model.Image, page, limit int) *model.ImageList {
	sorted := make([]storage.ObjectInfo, len(objects))
	copy(sorted, objects)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.Key < b.Key
	})

	byKey := make(map[string]*model.Image, len(images))
	for _, img := range images {
		byKey[ObjectKey(basePath, img.ID, img.Extension)] = img
	}

	total := len(sorted)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	list := &model.ImageList{
		Images:  make([]*model.Image, 0, end-start),
		Total:   total,
		HasMore: end < total,
	}
	for _, obj := range sorted[start:end] {
		if img, ok := byKey[obj.Key]; ok {
			list.Images = append(list.Images, img)
		}
	}
	return list
}
