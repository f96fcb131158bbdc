package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// Format is a download format offered for a restored image.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// exportQuality matches the 0.9 quality the download menu has always used.
const exportQuality = 90

// ParseFormat resolves a user supplied format name. "jpg" is accepted as JPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// MIMEType returns the media type of the format.
func (f Format) MIMEType() string {
	return "image/" + string(f)
}

// Extension returns the file extension, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Export encodes img in the requested format.
//
// JPEG cannot represent transparency, so the image is first composited onto
// an opaque white backing. Without that step transparent pixels would come
// out black.
func Export(img SourceImage, format Format) ([]byte, error) {
	src, err := decode(img.Data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		err = imaging.Encode(&buf, src, imaging.PNG)
	case FormatJPEG:
		err = imaging.Encode(&buf, flatten(src, color.White), imaging.JPEG, imaging.JPEGQuality(exportQuality))
	case FormatWebP:
		err = webp.Encode(&buf, src, &webp.Options{Quality: exportQuality})
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}

	log.Debug().
		Str("format", string(format)).
		Int("input_bytes", len(img.Data)).
		Int("output_bytes", buf.Len()).
		Msg("Image exported")

	return buf.Bytes(), nil
}

// flatten draws src over an opaque canvas of the given color.
func flatten(src image.Image, backing color.Color) image.Image {
	b := src.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), backing)
	return imaging.Overlay(canvas, src, image.Pt(0, 0), 1.0)
}
