package filehandler

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
)

// testPNG encodes a w×h opaque gradient as PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 20), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// transparentPNG encodes a fully transparent w×h PNG.
func transparentPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"", FormatPNG, false},
		{"JPG", FormatJPEG, false},
		{"jpeg", FormatJPEG, false},
		{"webp", FormatWebP, false},
		{"gif", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizePNGFromJPEG(t *testing.T) {
	src, _, err := image.Decode(bytes.NewReader(testPNG(t, 8, 6)))
	if err != nil {
		t.Fatal(err)
	}
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, src, nil); err != nil {
		t.Fatal(err)
	}

	out, err := NormalizePNG(jpg.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.MIMEType != CanonicalMIMEType {
		t.Errorf("MIMEType = %q, want %q", out.MIMEType, CanonicalMIMEType)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("normalized output does not decode: %v", err)
	}
	if format != "png" || cfg.Width != 8 || cfg.Height != 6 {
		t.Errorf("got %s %dx%d, want png 8x6", format, cfg.Width, cfg.Height)
	}
}

func TestNormalizePNGRejectsGarbage(t *testing.T) {
	if _, err := NormalizePNG([]byte("definitely not an image")); err == nil {
		t.Error("expected error for undecodable bytes")
	}
}

func TestDimensions(t *testing.T) {
	w, h, err := Dimensions(SourceImage{Data: testPNG(t, 10, 7), MIMEType: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	if w != 10 || h != 7 {
		t.Errorf("Dimensions() = %dx%d, want 10x7", w, h)
	}
}

func TestExportJPEGFillsTransparencyWithWhite(t *testing.T) {
	img := SourceImage{Data: transparentPNG(t, 10, 10), MIMEType: "image/png"}

	out, err := Export(img, FormatJPEG)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("exported JPEG does not decode: %v", err)
	}
	r, g, b, _ := decoded.At(5, 5).RGBA()
	if r>>8 < 250 || g>>8 < 250 || b>>8 < 250 {
		t.Errorf("pixel = (%d,%d,%d), want white backing", r>>8, g>>8, b>>8)
	}
}

func TestExportPNGPreservesSize(t *testing.T) {
	out, err := Export(SourceImage{Data: testPNG(t, 12, 9), MIMEType: "image/png"}, FormatPNG)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 12 || cfg.Height != 9 {
		t.Errorf("got %dx%d, want 12x9", cfg.Width, cfg.Height)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if _, err := Export(SourceImage{Data: testPNG(t, 2, 2)}, Format("tiff")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestBundle(t *testing.T) {
	original := SourceImage{Data: []byte("original-bytes"), MIMEType: "image/jpeg"}
	restored := SourceImage{Data: []byte("restored-bytes"), MIMEType: "image/png"}

	data, err := Bundle(original, restored)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("bundle is not a zip: %v", err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	want := map[string]string{
		"original.jpg": "original-bytes",
		"restored.png": "restored-bytes",
	}
	if len(zr.File) != len(want) {
		t.Fatalf("got %d entries, want %d", len(zr.File), len(want))
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		if want[f.Name] != string(body) {
			t.Errorf("%s = %q, want %q", f.Name, body, want[f.Name])
		}
	}
}
