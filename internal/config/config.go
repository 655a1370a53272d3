// Package config loads the process configuration from the environment,
// optionally seeded from a .env file. The resulting Config is built once in
// main and passed into each component constructor; nothing reads ambient
// settings after startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"media-ingest/internal/logging"

	"github.com/joho/godotenv"
)

// UpscalePolicy controls whether frames narrower than the target width are
// stretched during derivative generation.
type UpscalePolicy string

const (
	// UpscaleNever keeps the source width when it is below the target.
	UpscaleNever UpscalePolicy = "never"
	// UpscaleIfSmaller stretches sources narrower than the target width.
	UpscaleIfSmaller UpscalePolicy = "if_smaller_than"
	// UpscaleAlways always scales to the target width.
	UpscaleAlways UpscalePolicy = "always"
)

// ParseUpscalePolicy normalizes a policy string, falling back to never.
func ParseUpscalePolicy(s string) UpscalePolicy {
	switch UpscalePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case UpscaleIfSmaller:
		return UpscaleIfSmaller
	case UpscaleAlways:
		return UpscaleAlways
	default:
		return UpscaleNever
	}
}

// Config holds all application configuration.
type Config struct {
	// Directory layout
	DataRoot     string
	IncomingRoot string
	MediaRoot    string
	DatabaseDir  string
	DatabasePath string

	// HTTP
	Port        string
	MetricsPort string

	// Extension classification
	VideoExts   map[string]bool
	ImageExts   map[string]bool
	SidecarExts map[string]bool

	// Placement
	BucketCapacity int
	BucketSeed     int
	IngestLimit    int
	DedupeByHash   bool

	// Subprocess binaries and bounds
	FFprobeBin   string
	FFmpegBin    string
	ProbeTimeout time.Duration

	// Derivative assets
	ThumbFormat     string
	CollageFormat   string
	ThumbWidth      int
	CollageTileWide int
	Upscale         UpscalePolicy
	MaxAssetWorkers int

	// Concurrency
	QueueMax int

	// Incoming watcher
	WatchIncoming bool
	WatchDebounce time.Duration

	MetricsEnabled bool
}

// Load reads configuration from the environment (and a .env file when
// present), validates it, and prepares the directory layout.
func Load() (*Config, error) {
	// A missing .env is fine; explicit env always wins over the file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Debug("no .env file loaded: %v", err)
	}

	cfg := &Config{
		DataRoot:        getEnv("DATA_ROOT", "/data"),
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		VideoExts:       extSet(getEnv("VIDEO_EXTS", "mp4,mov,mkv,webm,flv")),
		ImageExts:       extSet(getEnv("IMAGE_EXTS", "jpg,jpeg,png,gif,webp")),
		SidecarExts:     extSet(getEnv("SIDECAR_EXTS", "srt,vtt")),
		BucketCapacity:  getEnvInt("BUCKET_CAPACITY", 2000),
		BucketSeed:      getEnvInt("BUCKET_SEED", 64),
		IngestLimit:     getEnvInt("INGEST_LIMIT", 100),
		DedupeByHash:    getEnvBool("DEDUPE_BY_HASH", true),
		FFprobeBin:      getEnv("FFPROBE_BIN", "ffprobe"),
		FFmpegBin:       getEnv("FFMPEG_BIN", "ffmpeg"),
		ProbeTimeout:    getEnvDuration("PROBE_TIMEOUT", 30*time.Second),
		ThumbFormat:     sanitizeFormat(getEnv("THUMB_FORMAT", "jpg"), "jpg"),
		CollageFormat:   sanitizeFormat(getEnv("COLLAGE_FORMAT", "png"), "png"),
		ThumbWidth:      getEnvInt("THUMB_WIDTH", 960),
		CollageTileWide: getEnvInt("COLLAGE_TILE_WIDTH", 400),
		Upscale:         ParseUpscalePolicy(getEnv("UPSCALE_POLICY", "if_smaller_than")),
		MaxAssetWorkers: getEnvInt("MAX_ASSET_WORKERS", 8),
		QueueMax:        getEnvInt("QUEUE_MAX", 64),
		WatchIncoming:   getEnvBool("WATCH_INCOMING", false),
		WatchDebounce:   getEnvDuration("WATCH_DEBOUNCE", 2*time.Second),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
	}

	cfg.IncomingRoot = getEnv("INCOMING_ROOT", filepath.Join(cfg.DataRoot, "incoming"))
	cfg.MediaRoot = getEnv("MEDIA_ROOT", filepath.Join(cfg.DataRoot, "media"))
	cfg.DatabaseDir = getEnv("DATABASE_DIR", filepath.Join(cfg.DataRoot, "db"))
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "media.db")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  INCOMING_ROOT:      %s", cfg.IncomingRoot)
	logging.Info("  MEDIA_ROOT:         %s", cfg.MediaRoot)
	logging.Info("  DATABASE_DIR:       %s", cfg.DatabaseDir)
	logging.Info("  PORT:               %s", cfg.Port)
	logging.Info("  METRICS_PORT:       %s (enabled: %v)", cfg.MetricsPort, cfg.MetricsEnabled)
	logging.Info("  BUCKET_CAPACITY:    %d", cfg.BucketCapacity)
	logging.Info("  BUCKET_SEED:        %d", cfg.BucketSeed)
	logging.Info("  INGEST_LIMIT:       %d", cfg.IngestLimit)
	logging.Info("  DEDUPE_BY_HASH:     %v", cfg.DedupeByHash)
	logging.Info("  PROBE_TIMEOUT:      %s", cfg.ProbeTimeout)
	logging.Info("  THUMB:              %s @ %dpx (upscale: %s)", cfg.ThumbFormat, cfg.ThumbWidth, cfg.Upscale)
	logging.Info("  COLLAGE:            %s @ %dpx tiles", cfg.CollageFormat, cfg.CollageTileWide)
	logging.Info("  MAX_ASSET_WORKERS:  %d", cfg.MaxAssetWorkers)
	logging.Info("  WATCH_INCOMING:     %v", cfg.WatchIncoming)
	logging.Info("  LOG_LEVEL:          %s", logging.GetLevel())

	for _, dir := range []string{cfg.IncomingRoot, cfg.MediaRoot, cfg.DatabaseDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.VideoExts) == 0 {
		return fmt.Errorf("VIDEO_EXTS must name at least one extension")
	}
	if c.BucketCapacity < 1 {
		return fmt.Errorf("BUCKET_CAPACITY must be >= 1, got %d", c.BucketCapacity)
	}
	if c.BucketSeed < 1 || c.BucketSeed > 46656 {
		return fmt.Errorf("BUCKET_SEED must be in 1..46656, got %d", c.BucketSeed)
	}
	if c.MaxAssetWorkers < 1 {
		return fmt.Errorf("MAX_ASSET_WORKERS must be >= 1, got %d", c.MaxAssetWorkers)
	}
	if c.ThumbWidth < 64 || c.ThumbWidth > 4096 {
		return fmt.Errorf("THUMB_WIDTH must be in 64..4096, got %d", c.ThumbWidth)
	}
	if c.CollageTileWide < 64 || c.CollageTileWide > 4096 {
		return fmt.Errorf("COLLAGE_TILE_WIDTH must be in 64..4096, got %d", c.CollageTileWide)
	}
	return nil
}

// Kind returns the media kind for a lowercased extension.
func (c *Config) Kind(ext string) string {
	switch {
	case c.VideoExts[ext]:
		return "video"
	case c.ImageExts[ext]:
		return "image"
	case c.SidecarExts[ext]:
		return "sidecar"
	default:
		return "unknown"
	}
}

// Supported reports whether a lowercased extension is in any configured set.
func (c *Config) Supported(ext string) bool {
	return c.VideoExts[ext] || c.ImageExts[ext] || c.SidecarExts[ext]
}

// extSet parses a comma-separated extension list into a lookup set,
// lowercasing and trimming dots so ".MP4" and "mp4" match.
func extSet(csv string) map[string]bool {
	set := make(map[string]bool)
	for _, e := range strings.Split(csv, ",") {
		e = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), ".")
		if e != "" {
			set[e] = true
		}
	}
	return set
}

// sanitizeFormat allows only encodable image formats, normalizing jpeg to jpg.
func sanitizeFormat(fmtStr, fallback string) string {
	f := strings.ToLower(strings.TrimSpace(fmtStr))
	if f == "jpeg" {
		f = "jpg"
	}
	switch f {
	case "png", "jpg", "webp":
		return f
	}
	return fallback
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logging.Warn("invalid %s=%q, using default %d", key, v, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logging.Warn("invalid %s=%q, using default %s", key, v, defaultValue)
	}
	return defaultValue
}
