package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	u := New()

	img, err := u.DecodeImage(encodePNG(t, 40, 30))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())

	_, err = u.DecodeImage(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = u.DecodeImage([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestResizeToWidth(t *testing.T) {
	u := New()

	tests := []struct {
		name         string
		w, h         int
		width        int
		wantW, wantH int
	}{
		{"landscape", 2048, 1024, 1024, 1024, 512},
		{"portrait", 300, 1000, 1024, 1024, 3413},
		{"upscale", 100, 50, 1024, 1024, 512},
		{"thin strip", 4000, 1, 1024, 1024, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			out, err := u.ResizeToWidth(src, tt.width)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}

	_, err := u.ResizeToWidth(image.NewRGBA(image.Rect(0, 0, 0, 0)), 1024)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = u.ResizeToWidth(image.NewRGBA(image.Rect(0, 0, 10, 10)), 0)
	assert.Error(t, err)
}

func TestEncodeJPEGDecodes(t *testing.T) {
	u := New()

	src, err := u.DecodeImage(encodePNG(t, 64, 48))
	require.NoError(t, err)

	data, err := u.EncodeJPEG(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	back, err := u.DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds().Size(), back.Bounds().Size())
}

func TestValidateImageFile(t *testing.T) {
	u := NewWithLimit(1024)

	header := func(contentType string, size int64) *multipart.FileHeader {
		h := textproto.MIMEHeader{}
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		return &multipart.FileHeader{Filename: "x", Header: h, Size: size}
	}

	assert.ErrorIs(t, u.ValidateImageFile(nil), ErrNoFile)
	assert.ErrorIs(t, u.ValidateImageFile(header("image/png", 2048)), ErrFileTooLarge)
	assert.ErrorIs(t, u.ValidateImageFile(header("text/plain", 10)), ErrNotImage)
	assert.NoError(t, u.ValidateImageFile(header("image/jpeg", 10)))
	assert.NoError(t, u.ValidateImageFile(header("application/octet-stream", 10)))
	assert.NoError(t, u.ValidateImageFile(header("", 10)))
}

func TestNewULIDFromTimestamp(t *testing.T) {
	u := New()

	a, err := u.NewULIDFromTimestamp(time.Now())
	require.NoError(t, err)
	b, err := u.NewULIDFromTimestamp(time.Now())
	require.NoError(t, err)

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
