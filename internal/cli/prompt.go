package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// ErrNoPhoto is returned when the user declines to choose a photo.
var ErrNoPhoto = errors.New("no photo selected")

// PhotoPatterns lists the extensions offered in the native picker.
var PhotoPatterns = []string{"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp", "*.heic", "*.heif"}

var selectFile = zenity.SelectFile

// SelectPhoto opens a native file dialog for a single photo.
// zenity.ErrCanceled is returned when the user closes the dialog.
func SelectPhoto() (string, error) {
	path, err := selectFile(
		zenity.Title("Select a photo to restore"),
		zenity.FileFilters{{Name: "Photos", Patterns: PhotoPatterns}},
	)
	if err != nil {
		return "", err
	}
	log.Info().Str("path", path).Msg("Photo picked via native dialog")
	return path, nil
}

// PickPhoto opens a native file dialog. When no dialog can be shown it falls
// back to asking for a path on in.
func PickPhoto(in io.Reader, out io.Writer) (string, error) {
	path, err := SelectPhoto()
	if err == nil {
		return path, nil
	}
	if errors.Is(err, zenity.ErrCanceled) {
		return "", ErrNoPhoto
	}

	log.Debug().Err(err).Msg("Native file dialog unavailable, prompting instead")
	return PromptForPath(in, out)
}

// PromptForPath asks for a photo path on the terminal.
func PromptForPath(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Photo to restore: ")

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read path: %w", err)
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrNoPhoto
	}
	return input, nil
}
