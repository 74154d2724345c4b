package model

import (
	"fmt"
	"strings"
)

// ContentType is the closed set of image types the store understands.
// The numeric value is what gets persisted, so existing values must not move.
type ContentType int

const (
	ContentTypeUnknown ContentType = iota
	ContentTypeJPEG
	ContentTypePNG
	ContentTypeGIF
	ContentTypeWEBP
	ContentTypeBMP
)

const octetStream = "application/octet-stream"

var contentTypeMIME = map[ContentType]string{
	ContentTypeJPEG: "image/jpeg",
	ContentTypePNG:  "image/png",
	ContentTypeGIF:  "image/gif",
	ContentTypeWEBP: "image/webp",
	ContentTypeBMP:  "image/bmp",
}

// ContentTypeFromExtension maps a file extension, with or without the
// leading dot, to a ContentType.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg", "jpe", "jfif":
		return ContentTypeJPEG
	case "png":
		return ContentTypePNG
	case "gif":
		return ContentTypeGIF
	case "webp":
		return ContentTypeWEBP
	case "bmp", "dib":
		return ContentTypeBMP
	default:
		return ContentTypeUnknown
	}
}

// ContentTypeFromMIME maps a MIME type (parameters are ignored) to a ContentType.
func ContentTypeFromMIME(mime string) ContentType {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return ContentTypeJPEG
	case "image/png", "image/x-png":
		return ContentTypePNG
	case "image/gif":
		return ContentTypeGIF
	case "image/webp":
		return ContentTypeWEBP
	case "image/bmp", "image/x-bmp", "image/x-ms-bmp":
		return ContentTypeBMP
	default:
		return ContentTypeUnknown
	}
}

// ContentTypeFromInt converts a persisted value. Out-of-range values are unknown.
func ContentTypeFromInt(v int) ContentType {
	ct := ContentType(v)
	if _, ok := contentTypeMIME[ct]; !ok {
		return ContentTypeUnknown
	}
	return ct
}

// IsKnown reports whether ct is an actual image type.
func (ct ContentType) IsKnown() bool {
	_, ok := contentTypeMIME[ct]
	return ok
}

// MIME renders the content type. Unknown renders as application/octet-stream.
func (ct ContentType) MIME() string {
	if m, ok := contentTypeMIME[ct]; ok {
		return m
	}
	return octetStream
}

// Extension is the canonical file extension, without the dot.
func (ct ContentType) Extension() string {
	switch ct {
	case ContentTypeJPEG:
		return "jpg"
	case ContentTypePNG:
		return "png"
	case ContentTypeGIF:
		return "gif"
	case ContentTypeWEBP:
		return "webp"
	case ContentTypeBMP:
		return "bmp"
	default:
		return ""
	}
}

func (ct ContentType) String() string {
	switch ct {
	case ContentTypeJPEG:
		return "JPEG"
	case ContentTypePNG:
		return "PNG"
	case ContentTypeGIF:
		return "GIF"
	case ContentTypeWEBP:
		return "WEBP"
	case ContentTypeBMP:
		return "BMP"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the MIME form so JSON output carries "image/png".
func (ct ContentType) MarshalText() ([]byte, error) {
	return []byte(ct.MIME()), nil
}

// UnmarshalText accepts a MIME type or an extension.
func (ct *ContentType) UnmarshalText(text []byte) error {
	s := string(text)
	if v := ContentTypeFromMIME(s); v.IsKnown() {
		*ct = v
		return nil
	}
	if v := ContentTypeFromExtension(s); v.IsKnown() {
		*ct = v
		return nil
	}
	if s == octetStream || s == "" {
		*ct = ContentTypeUnknown
		return nil
	}
	return fmt.Errorf("unrecognized content type %q", s)
}
