// Package imaging turns uploaded JPEG/PNG bytes into the canonical PNG
// payload sent to vision models, and manages the backing file of each upload.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lehigh-university-libraries/siteobserver/internal/models"
	"golang.org/x/image/draw"
)

// CanonicalMIMEType is the format every normalized image is re-encoded to
const CanonicalMIMEType = "image/png"

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
}

// DefaultMaxPixels caps the decoded size of an upload
const DefaultMaxPixels = 89_478_485

type Normalizer struct {
	dir          string
	maxDimension int
	maxPixels    int64
}

// NewNormalizer returns a normalizer that stores backing files in dir.
// Images larger than maxDimension on either side are downscaled; zero
// disables resizing. Uploads whose declared width*height exceeds maxPixels
// are rejected before decoding; zero means DefaultMaxPixels.
func NewNormalizer(dir string, maxDimension int, maxPixels int64) *Normalizer {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Normalizer{dir: dir, maxDimension: maxDimension, maxPixels: maxPixels}
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = contentType
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// ValidateContentType accepts only JPEG and PNG uploads
func ValidateContentType(contentType string) error {
	if _, ok := allowedContentTypes[mediaType(contentType)]; !ok {
		return fmt.Errorf("%w: only JPG and PNG images are supported, got %q", models.ErrInvalidInput, contentType)
	}
	return nil
}

// Normalize decodes the upload, flattens it onto an opaque RGB canvas and
// re-encodes it as base64 PNG. The output depends only on the input bytes.
func (n *Normalizer) Normalize(data []byte, contentType string) (*models.NormalizedImage, error) {
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}

	// Only the header is read here; nothing is allocated for pixels yet.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", models.ErrInvalidInput, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > n.maxPixels {
		return nil, fmt.Errorf("%w: image is %dx%d (%s pixels), limit is %s",
			models.ErrInvalidInput, cfg.Width, cfg.Height,
			humanize.Comma(pixels), humanize.Comma(n.maxPixels))
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", models.ErrInvalidInput, err)
	}

	bounds := src.Bounds()
	width, height := scaledSize(bounds.Dx(), bounds.Dy(), n.maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	// Flatten transparency onto white so the PNG encoder emits plain RGB.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	slog.Debug("Image normalized",
		"source_format", format,
		"width", width,
		"height", height,
		"size", humanize.Bytes(uint64(len(data))),
		"normalized_size", humanize.Bytes(uint64(buf.Len())))

	return &models.NormalizedImage{
		Base64:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		MIMEType: CanonicalMIMEType,
		Width:    width,
		Height:   height,
	}, nil
}

// scaledSize keeps the aspect ratio while fitting the longest side into max
func scaledSize(w, h, max int) (int, int) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}

// Store writes the raw upload to <dir>/<sessionID><ext>. The extension comes
// from the original filename, falling back to one derived from contentType.
func (n *Normalizer) Store(sessionID, filename, contentType string, data []byte) (string, error) {
	if err := os.MkdirAll(n.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create temp directory: %v", models.ErrResource, err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" || ext == "." {
		ext = allowedContentTypes[mediaType(contentType)]
	}

	path := filepath.Join(n.dir, sessionID+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: failed to save image: %v", models.ErrResource, err)
	}

	slog.Info("Image saved", "path", path, "size", humanize.Bytes(uint64(len(data))))
	return path, nil
}

// Remove deletes a backing file. A file that is already gone is not an error.
func (n *Normalizer) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove %s: %v", models.ErrResource, path, err)
	}
	return nil
}
