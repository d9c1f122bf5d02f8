package gemini

import "os"

// Gemini model IDs.
const (
	// ModelGemini3ProImage is the image generation/edit model.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"

	// ModelGemini3FlashPreview is used for cheap text-only calls such as
	// startup API key validation.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"
)

// DefaultImageModel is the model used for edits unless overridden via the
// GEMINI_MODEL environment variable or the --model flag.
const DefaultImageModel = ModelGemini3ProImage

// ImageModelName resolves the image model from GEMINI_MODEL, falling back to
// the default.
func ImageModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultImageModel
}
