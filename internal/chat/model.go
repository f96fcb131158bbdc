package chat

import "os"

// Gemini image model IDs
//
// | Model Name                  | API Model ID               | Use Case                        |
// |-----------------------------|----------------------------|---------------------------------|
// | Gemini 2.5 Flash Image      | gemini-2.5-flash-image     | Fast image editing (default)    |
// | Gemini 3 Pro Image          | gemini-3-pro-image-preview | Advanced image generation/edit  |
const (
	// ModelGemini25FlashImage is the stable image editing model.
	ModelGemini25FlashImage = "gemini-2.5-flash-image"

	// ModelGemini3ProImage is for advanced image generation/edit.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"
)

// DefaultModelName is the restoration model used when none is configured.
const DefaultModelName = ModelGemini25FlashImage

// GetModelName returns the restoration model, resolved from:
// 1. GEMINI_IMAGE_MODEL environment variable (if set)
// 2. Default: gemini-2.5-flash-image
func GetModelName() string {
	if env := os.Getenv("GEMINI_IMAGE_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}
