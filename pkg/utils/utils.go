package utils

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile       = errors.New("no file uploaded")
	ErrFileTooLarge = errors.New("file size exceeds limit")
	ErrNotImage     = errors.New("uploaded file is not an image")
	ErrEmptyImage   = errors.New("image has no pixels")
)

const DefaultJPEGQuality = 90

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	DecodeImage(data []byte) (image.Image, error)
	ResizeToWidth(img image.Image, width int) (image.Image, error)
	EncodeJPEG(img image.Image) ([]byte, error)
}

type utils struct {
	maxFileSize int64
	jpegQuality int
}

func New() IUtils {
	return NewWithLimit(10 * 1024 * 1024)
}

func NewWithLimit(maxFileSize int64) IUtils {
	return &utils{
		maxFileSize: maxFileSize,
		jpegQuality: DefaultJPEGQuality,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// ValidateImageFile checks size and declared content type. A missing content
// type is accepted; decoding is the real check.
func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if u.maxFileSize > 0 && file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !strings.HasPrefix(contentType, "image/") {
		return ErrNotImage
	}

	return nil
}

func (u *utils) DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	return img, nil
}

// ResizeToWidth scales img to the given width keeping the aspect ratio. The
// height is width*h/w truncated, never less than one pixel.
func (u *utils) ResizeToWidth(img image.Image, width int) (image.Image, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	if width <= 0 {
		return nil, fmt.Errorf("invalid target width %d", width)
	}

	height := int(float64(width) * float64(bounds.Dy()) / float64(bounds.Dx()))
	if height < 1 {
		height = 1
	}

	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

func (u *utils) EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(u.jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
