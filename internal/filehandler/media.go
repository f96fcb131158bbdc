// Package filehandler handles the photo bytes that flow through a restoration:
// acquiring an upload, normalizing model output to the canonical format, and
// exporting the result in a downloadable format.
//
// A SourceImage is never mutated after construction. Acquire copies the
// caller's buffer so later writes to it cannot leak into a session.
package filehandler

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// CanonicalMIMEType is the container format every restored image is delivered in.
const CanonicalMIMEType = "image/png"

// InvalidTypeMessage is shown when an upload is not an image.
const InvalidTypeMessage = "Please upload a valid image file (JPEG, PNG, WEBP)."

// SupportedImageExtensions maps file extensions to the image types the
// restoration model accepts.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// supportedImageTypes is the set of media types sent to the model.
var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// dataURLPrefix matches the "data:image/png;base64," header of an encoded upload.
var dataURLPrefix = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,`)

// SourceImage is an encoded image plus its declared media type.
type SourceImage struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether the image carries no bytes.
func (s SourceImage) Empty() bool {
	return len(s.Data) == 0
}

// Extension returns the file extension for the image's media type, ".png"
// when the type is unknown.
func (s SourceImage) Extension() string {
	for ext, mt := range SupportedImageExtensions {
		if mt == s.MIMEType && ext != ".jpeg" {
			return ext
		}
	}
	return ".png"
}

// ValidationError reports an upload that cannot become a SourceImage.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Acquire turns raw upload bytes and a declared media type into a SourceImage.
// Data URLs are decoded and their embedded type used when none was declared.
// An empty declared type falls back to content sniffing. Anything that is
// not an image type is rejected with a ValidationError.
func Acquire(data []byte, mediaType string) (SourceImage, error) {
	if len(data) == 0 {
		return SourceImage{}, &ValidationError{Message: "The selected file is empty."}
	}

	payload := data
	if embedded, decoded, ok, err := StripDataURL(data); ok {
		if err != nil {
			return SourceImage{}, &ValidationError{Message: "The uploaded image could not be decoded."}
		}
		payload = decoded
		if mediaType == "" {
			mediaType = embedded
		}
	}

	mediaType = NormalizeMIMEType(mediaType)
	if mediaType == "" {
		mediaType = NormalizeMIMEType(http.DetectContentType(payload))
	}

	if !IsImageType(mediaType) {
		log.Debug().Str("mime_type", mediaType).Msg("Rejected non-image upload")
		return SourceImage{}, &ValidationError{Message: InvalidTypeMessage}
	}
	if len(payload) == 0 {
		return SourceImage{}, &ValidationError{Message: "The selected file is empty."}
	}

	owned := make([]byte, len(payload))
	copy(owned, payload)
	return SourceImage{Data: owned, MIMEType: mediaType}, nil
}

// LoadSourceImage reads a photo from disk and acquires it using the media
// type implied by its extension.
func LoadSourceImage(path string) (SourceImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SourceImage{}, fmt.Errorf("file not found: %s", path)
		}
		return SourceImage{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return SourceImage{}, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SourceImage{}, fmt.Errorf("failed to read file: %w", err)
	}

	mediaType, _ := GetMIMEType(filepath.Ext(path))

	log.Info().
		Str("path", path).
		Str("mime_type", mediaType).
		Int64("size_bytes", info.Size()).
		Msg("Photo loaded")

	return Acquire(data, mediaType)
}

// StripDataURL separates a "data:<type>;base64," prefix from its payload.
// ok is false when data is not a data URL; err is set when the payload is
// not valid base64.
func StripDataURL(data []byte) (mediaType string, payload []byte, ok bool, err error) {
	m := dataURLPrefix.FindSubmatchIndex(data)
	if m == nil {
		return "", nil, false, nil
	}
	mediaType = string(data[m[2]:m[3]])
	encoded := data[m[1]:]
	payload = make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(payload, encoded)
	if err != nil {
		return mediaType, nil, true, fmt.Errorf("decode data URL payload: %w", err)
	}
	return mediaType, payload[:n], true, nil
}

// NormalizeMIMEType lowercases a media type and drops any parameters.
func NormalizeMIMEType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	return strings.ToLower(mediaType)
}

// GetMIMEType returns the media type for a file extension.
func GetMIMEType(ext string) (string, error) {
	if mimeType, ok := SupportedImageExtensions[strings.ToLower(ext)]; ok {
		return mimeType, nil
	}
	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImageType reports whether mediaType declares an image of any kind.
func IsImageType(mediaType string) bool {
	return strings.HasPrefix(NormalizeMIMEType(mediaType), "image/")
}

// IsSupportedType reports whether the restoration model accepts mediaType.
func IsSupportedType(mediaType string) bool {
	return supportedImageTypes[NormalizeMIMEType(mediaType)]
}
