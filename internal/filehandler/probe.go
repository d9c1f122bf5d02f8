package filehandler

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

// SourceInfo describes an uploaded source image for display in the UI.
// Dimension and EXIF fields are best effort; zero values mean unavailable.
type SourceInfo struct {
	MIMEType    string    `json:"mimeType"`
	Bytes       int       `json:"bytes"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	CameraMake  string    `json:"cameraMake,omitempty"`
	CameraModel string    `json:"cameraModel,omitempty"`
	TakenAt     time.Time `json:"takenAt,omitempty"`
	HasTakenAt  bool      `json:"-"`
}

// Probe inspects raw image bytes: dimensions from the image header, camera
// and capture date from EXIF where the format carries any. Never fails; what
// cannot be read is left zero.
func Probe(raw []byte, mimeType string) *SourceInfo {
	info := &SourceInfo{
		MIMEType: mimeType,
		Bytes:    len(raw),
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		log.Debug().Err(err).Str("mime", mimeType).Msg("Could not decode image dimensions")
	} else {
		info.Width = cfg.Width
		info.Height = cfg.Height
	}

	exifData, err := imagemeta.Decode(bytes.NewReader(raw))
	if err != nil {
		// PNG and WebP usually carry no EXIF; not worth surfacing.
		log.Debug().Err(err).Str("mime", mimeType).Msg("No EXIF metadata")
		return info
	}

	info.CameraMake = strings.TrimSpace(exifData.Make)
	info.CameraModel = strings.TrimSpace(exifData.Model)

	// Date fallback chain: DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		info.TakenAt = exifData.DateTimeOriginal()
		info.HasTakenAt = true
	case !exifData.CreateDate().IsZero():
		info.TakenAt = exifData.CreateDate()
		info.HasTakenAt = true
	case !exifData.ModifyDate().IsZero():
		info.TakenAt = exifData.ModifyDate()
		info.HasTakenAt = true
	}

	log.Debug().
		Str("mime", mimeType).
		Int("width", info.Width).
		Int("height", info.Height).
		Bool("has_date", info.HasTakenAt).
		Msg("Source image probed")

	return info
}
