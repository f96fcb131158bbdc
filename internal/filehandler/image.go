package filehandler

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageMetadata is the EXIF summary shown next to an uploaded photo.
// Scans of old prints rarely carry EXIF; every field is optional.
type ImageMetadata struct {
	DateTaken time.Time `json:"dateTaken,omitempty"`
	HasDate   bool      `json:"hasDate"`

	CameraMake  string `json:"cameraMake,omitempty"`
	CameraModel string `json:"cameraModel,omitempty"`
}

// ExtractImageMetadata reads EXIF metadata from an encoded image held in memory.
//
// Date resolution follows DateTimeOriginal, then CreateDate, then ModifyDate.
func ExtractImageMetadata(img SourceImage) (*ImageMetadata, error) {
	if img.Empty() {
		return nil, fmt.Errorf("no image data")
	}

	exifData, err := imagemeta.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	metadata := &ImageMetadata{}

	switch {
	case !exifData.DateTimeOriginal().IsZero():
		metadata.DateTaken = exifData.DateTimeOriginal()
		metadata.HasDate = true
	case !exifData.CreateDate().IsZero():
		metadata.DateTaken = exifData.CreateDate()
		metadata.HasDate = true
	case !exifData.ModifyDate().IsZero():
		metadata.DateTaken = exifData.ModifyDate()
		metadata.HasDate = true
	}

	metadata.CameraMake = strings.TrimSpace(exifData.Make)
	metadata.CameraModel = strings.TrimSpace(exifData.Model)

	log.Debug().
		Str("mime_type", img.MIMEType).
		Bool("has_date", metadata.HasDate).
		Str("camera", metadata.Camera()).
		Msg("Image metadata extraction complete")

	return metadata, nil
}

// Camera returns "make model", or "" when neither is known.
func (m *ImageMetadata) Camera() string {
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}
