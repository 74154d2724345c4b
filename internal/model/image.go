package model

import "time"

// Image is an image identity joined with the facts of its current version
// and the position of that version in the lineage.
type Image struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Username       string      `json:"-"`
	Extension      string      `json:"-"`
	ContentType    ContentType `json:"content_type"`
	CreatedAt      time.Time   `json:"created_at"`
	LastModified   time.Time   `json:"last_modified"`
	Version        string      `json:"version"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	Size           int64       `json:"size"`
	VersionIndex   int         `json:"version_index"`
	VersionCount   int         `json:"version_count"`
	LatestVersion  bool        `json:"latest_version"`
	InitialVersion bool        `json:"initial_version"`
}

// ImageVersion is one entry of an image's lineage.
type ImageVersion struct {
	ImageID     string      `json:"image_id"`
	Version     string      `json:"version"`
	TS          int64       `json:"ts"`
	Current     bool        `json:"current"`
	ContentType ContentType `json:"content_type"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Size        int64       `json:"size"`
}

// ImageInfo is the minimal tuple needed to address both stores.
type ImageInfo struct {
	ID          string
	Name        string
	Username    string
	Extension   string
	// ContentType is the type of the current version, or of the first
	// upload when the image has no lineage.
	ContentType ContentType
	// Version is the current version token; empty when the image has no lineage.
	Version string
}

// ImageList is one page of a user's images.
type ImageList struct {
	Images  []*Image `json:"images"`
	Total   int      `json:"total"`
	HasMore bool     `json:"has_more"`
}

// Dimensions are pixel dimensions of an uploaded payload.
type Dimensions struct {
	Width  int
	Height int
}

// UploadImage is an image payload that has not been stored yet.
type UploadImage struct {
	Name        string
	ContentType ContentType
	Data        []byte
	Dimensions  Dimensions
}

// UploadResult describes where an accepted upload landed.
type UploadResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Key      string `json:"-"`
	NewImage bool   `json:"new_image"`
}

// ImageData is the payload of one image version.
type ImageData struct {
	ContentType string
	Data        []byte
}

// Reconciliation lists disagreements between the object store namespace
// of a user and the metadata store.
type Reconciliation struct {
	Username      string   `json:"username"`
	Objects       int      `json:"objects"`
	Images        int      `json:"images"`
	OrphanObjects []string `json:"orphan_objects"`
	OrphanImages  []string `json:"orphan_images"`
}

// Clean reports whether both stores agree.
func (r *Reconciliation) Clean() bool {
	return len(r.OrphanObjects) == 0 && len(r.OrphanImages) == 0
}
