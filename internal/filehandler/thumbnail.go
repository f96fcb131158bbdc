package filehandler

import (
	"bytes"
	"fmt"
	"image"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultPreviewMaxDimension is the maximum width or height of a preview.
const DefaultPreviewMaxDimension = 1024

const previewQuality = 80

// Preview renders a downscaled WebP copy of img for the before/after view.
// Images already within maxDimension keep their size but are still
// re-encoded so every preview has the same container.
func Preview(img SourceImage, maxDimension int) (SourceImage, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultPreviewMaxDimension
	}

	src, err := decode(img.Data)
	if err != nil {
		return SourceImage{}, err
	}

	bounds := src.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := previewDimensions(origWidth, origHeight, maxDimension)

	out := src
	if newWidth != origWidth || newHeight != origHeight {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), src, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, out, &webp.Options{Quality: previewQuality}); err != nil {
		return SourceImage{}, fmt.Errorf("failed to encode preview: %w", err)
	}

	log.Debug().
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Preview generated")

	return SourceImage{Data: buf.Bytes(), MIMEType: "image/webp"}, nil
}

// previewDimensions scales width and height to fit maxDimension, keeping the
// aspect ratio. Neither side drops below one pixel.
func previewDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return maxDimension, max(newHeight, 1)
	}

	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return max(newWidth, 1), maxDimension
}
