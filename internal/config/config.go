package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/doxynav/internal/layout"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Layout
	Preset               string
	PresetFile           string
	DefaultViewportWidth int

	// Static site served under /docs
	SiteDir string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentPages int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Adjusted page cache
	CacheMaxBytes int64

	// CORS
	CORSOrigins []string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOXYNAV_API_KEY"),

		Preset:               envOr("PRESET", layout.PresetRelocate),
		PresetFile:           os.Getenv("PRESET_FILE"),
		DefaultViewportWidth: envInt("DEFAULT_VIEWPORT_WIDTH", 1024),

		SiteDir: os.Getenv("SITE_DIR"),

		WorkerCount:        envInt("WORKER_COUNT", 4),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentPages: envInt("MAX_CONCURRENT_PAGES", 8),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		CacheMaxBytes: envInt64("CACHE_MAX_BYTES", 64<<20),

		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),
	}

	if cfg.DefaultViewportWidth < 0 {
		cfg.DefaultViewportWidth = 1024
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentPages <= 0 {
		cfg.MaxConcurrentPages = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.CacheMaxBytes <= 0 {
		cfg.CacheMaxBytes = 64 << 20
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOXYNAV_API_KEY is required")
	}
	if _, err := layout.PresetByName(c.Preset); err != nil {
		return fmt.Errorf("PRESET: %w", err)
	}
	if c.SiteDir != "" {
		fi, err := os.Stat(c.SiteDir)
		if err != nil {
			return fmt.Errorf("SITE_DIR: %w", err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("SITE_DIR %s is not a directory", c.SiteDir)
		}
	}
	return nil
}

// LayoutPreset resolves the configured preset, overlaid with PresetFile when set.
func (c Config) LayoutPreset() (layout.Preset, error) {
	return ResolvePreset(c.Preset, c.PresetFile)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
