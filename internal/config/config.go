// Package config loads runtime settings from an optional .env file and the
// environment. Command-line flags are applied on top by the commands.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for unset keys.
const (
	DefaultPort        = 8080
	DefaultMaxUploadMB = 20
	DefaultSessionTTL  = 60 * time.Minute
	DefaultLogLevel    = "info"
)

// Config holds all settings for the restoration server and CLI.
type Config struct {
	Port        int
	Model       string
	APIKeyParam string
	MaxUploadMB int
	SessionTTL  time.Duration
	LogLevel    string

	ArchiveBucket string
	ArchiveTable  string

	// EnvFileLoaded is false when no .env file was found.
	EnvFileLoaded bool
}

// Load reads the given .env files (".env" when none are named) into the
// process environment without overriding variables already set, then builds
// a Config. A missing .env file is not an error; a malformed one is.
func Load(envFiles ...string) (*Config, error) {
	cfg := &Config{EnvFileLoaded: true}

	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
		cfg.EnvFileLoaded = false
	}

	var err error
	if cfg.Port, err = intEnv("RESTORE_PORT", DefaultPort); err != nil {
		return nil, err
	}
	if cfg.MaxUploadMB, err = intEnv("RESTORE_MAX_UPLOAD_MB", DefaultMaxUploadMB); err != nil {
		return nil, err
	}
	ttlMinutes, err := intEnv("RESTORE_SESSION_TTL_MINUTES", int(DefaultSessionTTL/time.Minute))
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = time.Duration(ttlMinutes) * time.Minute

	cfg.Model = strings.TrimSpace(os.Getenv("GEMINI_IMAGE_MODEL"))
	cfg.APIKeyParam = strings.TrimSpace(os.Getenv("GEMINI_API_KEY_PARAM"))
	cfg.ArchiveBucket = strings.TrimSpace(os.Getenv("RESTORE_ARCHIVE_BUCKET"))
	cfg.ArchiveTable = strings.TrimSpace(os.Getenv("RESTORE_ARCHIVE_TABLE"))
	cfg.LogLevel = strings.TrimSpace(os.Getenv("RESTORE_LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. Commands call it again after applying flags.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("RESTORE_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("RESTORE_MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("RESTORE_SESSION_TTL_MINUTES must be positive, got %v", c.SessionTTL)
	}
	if (c.ArchiveBucket == "") != (c.ArchiveTable == "") {
		return errors.New("RESTORE_ARCHIVE_BUCKET and RESTORE_ARCHIVE_TABLE must be set together")
	}
	return nil
}

// ArchiveEnabled reports whether successful restorations are persisted.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != "" && c.ArchiveTable != ""
}

// NeedsAWS reports whether any configured feature uses AWS.
func (c *Config) NeedsAWS() bool {
	return c.ArchiveEnabled() || c.APIKeyParam != ""
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}
