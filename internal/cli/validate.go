package cli

import (
	"errors"
	"fmt"

	"github.com/fpang/photo-restore/internal/auth"
	"github.com/fpang/photo-restore/internal/chat"
)

// Explain turns a restoration error into a message with a hint for the
// terminal user.
func Explain(err error) string {
	if errors.Is(err, auth.ErrNoAPIKey) {
		return "No API key configured. Set GEMINI_API_KEY or store it encrypted in ~/.photo-restore/credentials.gpg"
	}

	var restoreErr *chat.Error
	if !errors.As(err, &restoreErr) {
		return err.Error()
	}

	switch restoreErr.Kind {
	case chat.ErrValidation:
		return restoreErr.Message
	case chat.ErrTransport:
		return fmt.Sprintf("%s Please check your internet connection.", restoreErr.Message)
	case chat.ErrRemote:
		return fmt.Sprintf("%s (Gemini API)", restoreErr.Message)
	case chat.ErrEmptyResult:
		return fmt.Sprintf("%s Try again, or try a different photo.", restoreErr.Message)
	default:
		return restoreErr.Error()
	}
}
