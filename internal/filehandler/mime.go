// Package filehandler validates and inspects source images for the edit UI:
// MIME allowlisting, content sniffing, dimension/EXIF probing, and preview
// thumbnails.
package filehandler

import "net/http"

// SupportedImageMIMETypes is the allowlist of source formats the edit surface
// accepts. The filter is advisory at the input boundary; the encoder and the
// model accept whatever they are handed.
var SupportedImageMIMETypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// IsSupportedMIME reports whether the declared type is in the allowlist.
func IsSupportedMIME(mimeType string) bool {
	return SupportedImageMIMETypes[mimeType]
}

// SniffMIME detects the content type from the leading bytes. Returns the
// detected type, which may differ from the declared one.
func SniffMIME(raw []byte) string {
	return http.DetectContentType(raw)
}
