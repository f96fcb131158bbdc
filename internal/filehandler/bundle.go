package filehandler

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Bundle packs the original and restored photos into a single zip archive.
// Entries are stored with the Zstandard method (APPNOTE 6.3.7).
func Bundle(original, restored SourceImage) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor(zstd.WithEncoderLevel(zstd.SpeedDefault)))

	now := time.Now()
	entries := []struct {
		name string
		img  SourceImage
	}{
		{"original" + original.Extension(), original},
		{"restored" + restored.Extension(), restored},
	}

	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zstd.ZipMethodWinZip,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", e.name, err)
		}
		if _, err := w.Write(e.img.Data); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}
