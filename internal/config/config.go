// Package config loads daemon settings from the environment and device
// profiles from TOML files.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr  string     // SCANLINE_HTTP_ADDR (default ":8080")
	GRPCAddr  string     // SCANLINE_GRPC_ADDR (default ":9090")
	NATSURL   string     // SCANLINE_NATS_URL (optional, empty = no events)
	AuthToken string     // SCANLINE_AUTH_TOKEN (optional, empty = auth disabled)
	LogLevel  slog.Level // SCANLINE_LOG_LEVEL (default "info")

	ProfilePath string // SCANLINE_PROFILE (optional, empty = built-in profile)
	FramesDir   string // SCANLINE_FRAMES_DIR (overrides the profile's frames_dir)
	Autostart   bool   // SCANLINE_AUTOSTART (start a session when the daemon starts)

	StatsInterval time.Duration // SCANLINE_STATS_INTERVAL (default 1m; 0 = disabled)

	// Export settings
	ExportInterval   time.Duration // SCANLINE_EXPORT_INTERVAL (default 5m; 0 = disabled)
	ExportS3Bucket   string        // SCANLINE_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // SCANLINE_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // SCANLINE_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // SCANLINE_EXPORT_S3_KEY (default "scanline/stats.jsonl")
	ExportFile       string        // SCANLINE_EXPORT_FILE (enables local file export when set)
}

func Load() (*Config, error) {
	c := &Config{
		HTTPAddr:         envOrDefault("SCANLINE_HTTP_ADDR", ":8080"),
		GRPCAddr:         envOrDefault("SCANLINE_GRPC_ADDR", ":9090"),
		NATSURL:          os.Getenv("SCANLINE_NATS_URL"),
		AuthToken:        os.Getenv("SCANLINE_AUTH_TOKEN"),
		ProfilePath:      os.Getenv("SCANLINE_PROFILE"),
		FramesDir:        os.Getenv("SCANLINE_FRAMES_DIR"),
		ExportS3Bucket:   os.Getenv("SCANLINE_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("SCANLINE_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("SCANLINE_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("SCANLINE_EXPORT_S3_KEY", "scanline/stats.jsonl"),
		ExportFile:       os.Getenv("SCANLINE_EXPORT_FILE"),
	}

	level, err := ParseLevel(envOrDefault("SCANLINE_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SCANLINE_LOG_LEVEL: %w", err)
	}
	c.LogLevel = level

	if v := os.Getenv("SCANLINE_AUTOSTART"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("SCANLINE_AUTOSTART: %w", err)
		}
		c.Autostart = b
	}

	if c.StatsInterval, err = durationEnv("SCANLINE_STATS_INTERVAL", "1m"); err != nil {
		return nil, err
	}
	if c.ExportInterval, err = durationEnv("SCANLINE_EXPORT_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	return c, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %v", key, d)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
