package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStartupLoggerEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	NewStartupLogger("restore-web").
		CommitHash("abc123").
		Resource("archiveBucket", "photos-bucket").
		Resource("archiveTable", "").
		Feature("archive", true).
		Config("model", "gemini-2.5-flash-image").
		InitDuration(25 * time.Millisecond).
		Event(logger.Info()).
		Msg("Startup complete")

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid log line: %v\n%s", err, buf.String())
	}

	proc, ok := doc["process"].(map[string]interface{})
	if !ok || proc["name"] != "restore-web" || proc["commitHash"] != "abc123" {
		t.Errorf("unexpected process dict: %v", doc["process"])
	}
	res, ok := doc["resources"].(map[string]interface{})
	if !ok || res["archiveBucket"] != "photos-bucket" {
		t.Errorf("unexpected resources dict: %v", doc["resources"])
	}
	if _, found := res["archiveTable"]; found {
		t.Error("empty resource names should be skipped")
	}
	features, ok := doc["features"].(map[string]interface{})
	if !ok || features["archive"] != true {
		t.Errorf("unexpected features dict: %v", doc["features"])
	}
}
