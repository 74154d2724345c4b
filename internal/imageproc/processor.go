package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/leca/image-vault/internal/model"
)

// ErrUnsupportedFormat is returned for payloads that are not a known image format.
var ErrUnsupportedFormat = errors.New("unsupported or unrecognized image format")

// DetectFormat inspects the raw bytes and returns the image format, or
// ContentTypeUnknown.
func DetectFormat(data []byte) model.ContentType {
	// JPEG: starts with FF D8 FF
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return model.ContentTypeJPEG
	}
	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return model.ContentTypePNG
	}
	// GIF: starts with GIF87a or GIF89a
	if len(data) >= 6 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F' {
		return model.ContentTypeGIF
	}
	// WebP: starts with RIFF....WEBP
	if len(data) >= 12 && data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return model.ContentTypeWEBP
	}
	// BMP: starts with BM followed by the file header
	if len(data) >= 14 && data[0] == 'B' && data[1] == 'M' {
		return model.ContentTypeBMP
	}
	return model.ContentTypeUnknown
}

// Dimensions decodes the payload and returns its displayed size. JPEG EXIF
// orientation is applied, so a rotated photo reports swapped sides.
func Dimensions(data []byte) (model.Dimensions, error) {
	if DetectFormat(data) == model.ContentTypeUnknown {
		return model.Dimensions{}, ErrUnsupportedFormat
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return model.Dimensions{}, fmt.Errorf("decoding image: %w", err)
	}
	b := img.Bounds()
	return model.Dimensions{Width: b.Dx(), Height: b.Dy()}, nil
}

// Inspect resolves the content type of an upload and measures it. The
// declared type wins when it is known; otherwise the bytes decide.
func Inspect(data []byte, declared model.ContentType) (model.ContentType, model.Dimensions, error) {
	ct := declared
	if !ct.IsKnown() {
		ct = DetectFormat(data)
	}
	if !ct.IsKnown() {
		return model.ContentTypeUnknown, model.Dimensions{}, ErrUnsupportedFormat
	}
	dims, err := Dimensions(data)
	if err != nil {
		return model.ContentTypeUnknown, model.Dimensions{}, err
	}
	return ct, dims, nil
}
