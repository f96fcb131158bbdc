package cli

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ncruces/zenity"

	"github.com/fpang/photo-restore/internal/auth"
	"github.com/fpang/photo-restore/internal/chat"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{9 * time.Second, "0:09"},
		{75 * time.Second, "1:15"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.d); got != tt.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestDefaultOutputPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := DefaultOutputPath("out", "png", now); got != "out/restored-image-1700000000123.png" {
		t.Errorf("got %q", got)
	}
	if got := DefaultOutputPath("", "webp", now); got != "restored-image-1700000000123.webp" {
		t.Errorf("got %q", got)
	}
}

func TestPromptForPath(t *testing.T) {
	var out bytes.Buffer
	path, err := PromptForPath(strings.NewReader("  ~/scans/grandma.jpg \n"), &out)
	if err != nil {
		t.Fatal(err)
	}
	if path != "~/scans/grandma.jpg" {
		t.Errorf("path = %q", path)
	}
	if !strings.Contains(out.String(), "Photo to restore") {
		t.Errorf("prompt = %q", out.String())
	}

	if _, err := PromptForPath(strings.NewReader("\n"), &out); !errors.Is(err, ErrNoPhoto) {
		t.Errorf("empty input: err = %v, want ErrNoPhoto", err)
	}
	if _, err := PromptForPath(strings.NewReader(""), &out); !errors.Is(err, ErrNoPhoto) {
		t.Errorf("EOF: err = %v, want ErrNoPhoto", err)
	}
}

func TestExplain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no key", fmt.Errorf("startup: %w", auth.ErrNoAPIKey), "No API key configured"},
		{"validation", &chat.Error{Kind: chat.ErrValidation, Message: "API Key is missing."}, "API Key is missing."},
		{"transport", &chat.Error{Kind: chat.ErrTransport, Message: "Network error."}, "internet connection"},
		{"empty", &chat.Error{Kind: chat.ErrEmptyResult, Message: "No image data returned from the model."}, "Try again"},
		{"plain", errors.New("disk full"), "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Explain(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("Explain() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func stubSelectFile(t *testing.T, path string, err error) {
	t.Helper()
	orig := selectFile
	selectFile = func(options ...zenity.Option) (string, error) { return path, err }
	t.Cleanup(func() { selectFile = orig })
}

func TestPickPhoto(t *testing.T) {
	var out bytes.Buffer

	stubSelectFile(t, "/photos/wedding.jpg", nil)
	if path, err := PickPhoto(strings.NewReader(""), &out); err != nil || path != "/photos/wedding.jpg" {
		t.Errorf("dialog: PickPhoto = %q, %v", path, err)
	}

	stubSelectFile(t, "", zenity.ErrCanceled)
	if _, err := PickPhoto(strings.NewReader("typed.png\n"), &out); !errors.Is(err, ErrNoPhoto) {
		t.Errorf("canceled: err = %v, want ErrNoPhoto", err)
	}

	stubSelectFile(t, "", errors.New("no display"))
	if path, err := PickPhoto(strings.NewReader("typed.png\n"), &out); err != nil || path != "typed.png" {
		t.Errorf("fallback: PickPhoto = %q, %v", path, err)
	}
}

func TestSelectPhotoPassesCancel(t *testing.T) {
	stubSelectFile(t, "", zenity.ErrCanceled)
	if _, err := SelectPhoto(); !errors.Is(err, zenity.ErrCanceled) {
		t.Errorf("err = %v, want zenity.ErrCanceled", err)
	}
}
