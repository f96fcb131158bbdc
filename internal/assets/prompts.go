// Package assets provides embedded static assets for the application.
//
// Prompt text is stored under prompts/ and embedded at compile time.
package assets

import (
	_ "embed"
	"strings"
)

// restorationPrompt is the directive sent with every restoration request.
//
//go:embed prompts/restoration.txt
var restorationPrompt string

// RestorationInstruction returns the fixed restoration directive, trimmed of
// the trailing newline the text file carries.
func RestorationInstruction() string {
	return strings.TrimSpace(restorationPrompt)
}
