package filehandler

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decode reads any registered image format, honoring EXIF orientation.
func decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// NormalizePNG re-encodes image bytes of any decodable format as PNG.
// Every restored image is delivered in this one canonical container.
func NormalizePNG(data []byte) (SourceImage, error) {
	img, err := decode(data)
	if err != nil {
		return SourceImage{}, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return SourceImage{}, fmt.Errorf("failed to encode png: %w", err)
	}
	return SourceImage{Data: buf.Bytes(), MIMEType: CanonicalMIMEType}, nil
}

// Dimensions returns the pixel size of an encoded image without decoding
// the full raster.
func Dimensions(img SourceImage) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
