// Package imgcodec decodes request images and encodes model outputs. JPEG, PNG,
// GIF and WebP are accepted on input; PNG, JPEG and WebP are produced.
package imgcodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Output formats.
const (
	PNG  = "png"
	JPEG = "jpeg"
	WebP = "webp"
)

// DefaultQuality applies to lossy formats when the caller passes 0.
const DefaultQuality = 90

// DefaultMaxPixels bounds decoded images (width × height) when no limit is given.
const DefaultMaxPixels int64 = 40_000_000

var (
	// ErrUnsupportedFormat is returned for unknown or undecodable image formats.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooLarge is returned before decoding when the header declares more pixels than allowed.
	ErrTooLarge = errors.New("image too large")
)

// ParseFormat normalizes a format name; empty means PNG.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType is the MIME type for a normalized format.
func ContentType(format string) string {
	switch format {
	case JPEG:
		return "image/jpeg"
	case WebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Decode reads a whole image, applying EXIF orientation for JPEGs. The second
// return value names the detected format.
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	return DecodeBytes(data)
}

// DecodeBytes is Decode over an in-memory buffer, limited to DefaultMaxPixels.
func DecodeBytes(data []byte) (image.Image, string, error) {
	return DecodeBytesLimit(data, DefaultMaxPixels)
}

// DecodeBytesLimit decodes data unless its header declares more than maxPixels
// pixels. maxPixels <= 0 disables the check.
func DecodeBytesLimit(data []byte, maxPixels int64) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrUnsupportedFormat)
	}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
			return nil, "", err
		}
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err == nil {
			return img, format, nil
		}
	}
	// Extended WebP (alpha, animation) that x/image/webp rejects.
	if w, h, _, err := webp.GetInfo(data); err == nil {
		if err := checkPixels(w, h, maxPixels); err != nil {
			return nil, "", err
		}
		if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
			return img, WebP, nil
		}
	}
	return nil, "", ErrUnsupportedFormat
}

func checkPixels(w, h int, maxPixels int64) error {
	if maxPixels > 0 && int64(w)*int64(h) > maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, w, h, maxPixels)
	}
	return nil
}

// Open loads an image file.
func Open(path string) (image.Image, error) {
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return img, nil
}

// Encode writes img in the given format. quality is 1..100 for JPEG and lossy
// WebP; a negative quality selects lossless WebP.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	if quality == 0 {
		quality = DefaultQuality
	}
	switch f {
	case WebP:
		opts := &webp.Options{Lossless: quality < 0, Quality: float32(max(quality, 0))}
		return webp.Encode(w, img, opts)
	case JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(min(max(quality, 1), 100)))
	default:
		return imaging.Encode(w, img, imaging.PNG)
	}
}

// Save writes img to path, picking the format from the extension.
func Save(img image.Image, path string, quality int) error {
	format, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
