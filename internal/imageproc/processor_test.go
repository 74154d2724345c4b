package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/leca/image-vault/internal/model"
)

// ---------------------------------------------------------------------------
// Helpers to create in-memory test images
// ---------------------------------------------------------------------------

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	return img
}

func createTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func createTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func createTestGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, testImage(w, h), nil))
	return buf.Bytes()
}

func createTestBMP(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want model.ContentType
	}{
		{"jpeg", createTestJPEG(t, 2, 2), model.ContentTypeJPEG},
		{"png", createTestPNG(t, 2, 2), model.ContentTypePNG},
		{"gif", createTestGIF(t, 2, 2), model.ContentTypeGIF},
		{"bmp", createTestBMP(t, 2, 2), model.ContentTypeBMP},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), model.ContentTypeWEBP},
		{"text", []byte("hello world, not an image"), model.ContentTypeUnknown},
		{"svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), model.ContentTypeUnknown},
		{"empty", nil, model.ContentTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.data))
		})
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"jpeg", createTestJPEG(t, 64, 32)},
		{"png", createTestPNG(t, 64, 32)},
		{"gif", createTestGIF(t, 64, 32)},
		{"bmp", createTestBMP(t, 64, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dims, err := Dimensions(tt.data)
			require.NoError(t, err)
			assert.Equal(t, model.Dimensions{Width: 64, Height: 32}, dims)
		})
	}
}

func TestDimensionsUnsupported(t *testing.T) {
	_, err := Dimensions([]byte("plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDimensionsCorrupt(t *testing.T) {
	data := createTestPNG(t, 8, 8)
	_, err := Dimensions(data[:20])
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}

func TestInspect(t *testing.T) {
	data := createTestPNG(t, 10, 20)

	ct, dims, err := Inspect(data, model.ContentTypeUnknown)
	require.NoError(t, err)
	assert.Equal(t, model.ContentTypePNG, ct)
	assert.Equal(t, 10, dims.Width)
	assert.Equal(t, 20, dims.Height)

	// A known declared type is kept.
	ct, _, err = Inspect(data, model.ContentTypeJPEG)
	require.NoError(t, err)
	assert.Equal(t, model.ContentTypeJPEG, ct)

	_, _, err = Inspect([]byte("nope"), model.ContentTypeUnknown)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
