package filehandler

import (
	"testing"
)

func TestPreviewDimensions(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		max           int
		wantW, wantH  int
	}{
		{"smaller than max", 800, 600, 1024, 800, 600},
		{"landscape", 4000, 3000, 1024, 1024, 768},
		{"portrait", 3000, 4000, 1024, 768, 1024},
		{"square", 2048, 2048, 1024, 1024, 1024},
		{"extreme strip", 5000, 2, 1024, 1024, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := previewDimensions(tt.width, tt.height, tt.max)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("previewDimensions(%d, %d, %d) = %dx%d, want %dx%d",
					tt.width, tt.height, tt.max, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestPreviewDownscales(t *testing.T) {
	src := SourceImage{Data: testPNG(t, 12, 6), MIMEType: "image/png"}

	prev, err := Preview(src, 4)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if prev.MIMEType != "image/webp" {
		t.Errorf("mime = %q, want image/webp", prev.MIMEType)
	}
	w, h, err := Dimensions(prev)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 4 || h != 2 {
		t.Errorf("preview size = %dx%d, want 4x2", w, h)
	}
}

func TestPreviewRejectsGarbage(t *testing.T) {
	if _, err := Preview(SourceImage{Data: []byte("nope"), MIMEType: "image/png"}, 0); err == nil {
		t.Error("expected decode error")
	}
}
