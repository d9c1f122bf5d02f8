package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultPreviewMaxDimension is the maximum dimension (width or height) for
// source previews in the web UI.
const DefaultPreviewMaxDimension = 400

// previewQuality is the JPEG quality for preview encoding.
const previewQuality = 80

// Thumbnail downscales raw image bytes to fit within maxDimension and
// re-encodes as JPEG. Images already within bounds are re-encoded without
// resizing. Returns the preview bytes and their MIME type.
func Thumbnail(raw []byte, maxDimension int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	newWidth, newHeight := ThumbnailDimensions(origWidth, origHeight, maxDimension)

	if newWidth != origWidth || newHeight != origHeight {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode preview: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Preview generated")

	return buf.Bytes(), "image/jpeg", nil
}

// ThumbnailDimensions computes the bounded size preserving aspect ratio.
func ThumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newWidth := maxDimension
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return newWidth, newHeight
	}

	newHeight := maxDimension
	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return newWidth, newHeight
}
