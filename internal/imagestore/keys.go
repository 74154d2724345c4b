package imagestore

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultExtension = "jpg"
	syntheticPrefix  = "synthetic:"
	revisionsPrefix  = ".revisions/"
)

// ObjectKey derives the object store key of an image.
func ObjectKey(basePath, imageID, extension string) string {
	return basePath + "/" + imageID + "." + extension
}

// namespacePrefix is the listing prefix of a user's objects.
func namespacePrefix(basePath string) string {
	return basePath + "/"
}

// ExtensionFromName returns the lower-cased extension of a file name, or
// jpg when the name has none.
func ExtensionFromName(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" || strings.ContainsAny(ext, `/\ `) {
		return defaultExtension
	}
	return strings.ToLower(ext)
}

// syntheticVersion renders the version token minted for object stores
// that do not issue revision ids.
func syntheticVersion(id uuid.UUID) string {
	return syntheticPrefix + id.String()
}

func isSyntheticVersion(v string) bool {
	return strings.HasPrefix(v, syntheticPrefix)
}

// revisionKey is where the payload of a synthetic version is kept. It lies
// outside every user namespace, so listings never see it.
func revisionKey(key, version string) string {
	return revisionsPrefix + key + "/" + strings.TrimPrefix(version, syntheticPrefix)
}

// objectRef maps a lineage token to the object key and store revision to
// fetch. Synthetic tokens address their revision copy.
func objectRef(key, version string) (string, string) {
	if isSyntheticVersion(version) {
		return revisionKey(key, version), ""
	}
	return key, version
}

// validID reports whether id can name an image.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
