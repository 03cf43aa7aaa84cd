// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when no credential for the vision endpoint is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// Default values applied when the corresponding variable is unset.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 1000
	DefaultImagePath   = "files/hand_written_workout.jpg"
	DefaultWorkoutName = "My workout"
)

// Config holds all application configuration.
type Config struct {
	ImagePath   string
	WorkoutName string
	LogLevel    slog.Level
	Vision      VisionConfig
	Transcript  TranscriptConfig
}

// VisionConfig controls the chat-completion endpoint.
type VisionConfig struct {
	APIKey    string
	BaseURL   string // "" = client default
	OrgID     string
	Model     string
	MaxTokens int
	Timeout   time.Duration // 0 = no timeout
}

// TranscriptConfig controls NDJSON logging of scan exchanges.
type TranscriptConfig struct {
	Enabled   bool
	Path      string
	QueueSize int
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv reads configuration from environment variables without validating it.
// Callers that layer overrides on top must call Validate themselves.
func FromEnv() *Config {
	return &Config{
		ImagePath:   getEnv("IMAGE_PATH", DefaultImagePath),
		WorkoutName: getEnv("WORKOUT_NAME", DefaultWorkoutName),
		LogLevel:    getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Vision: VisionConfig{
			APIKey:    strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
			BaseURL:   getEnv("OPENAI_BASE_URL", ""),
			OrgID:     getEnv("OPENAI_ORG_ID", ""),
			Model:     getEnv("VISION_MODEL", DefaultModel),
			MaxTokens: getEnvInt("VISION_MAX_TOKENS", DefaultMaxTokens),
			Timeout:   getEnvDuration("VISION_TIMEOUT", 0),
		},
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", false),
			Path:      getEnv("TRANSCRIPT_PATH", "./data/logs/scans.ndjson"),
			QueueSize: getEnvInt("TRANSCRIPT_QUEUE_SIZE", 64),
		},
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Vision.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Vision.Model == "" {
		return fmt.Errorf("VISION_MODEL cannot be empty")
	}
	if c.Vision.MaxTokens <= 0 {
		return fmt.Errorf("VISION_MAX_TOKENS must be > 0")
	}
	if c.Vision.Timeout < 0 {
		return fmt.Errorf("VISION_TIMEOUT cannot be negative")
	}
	if c.ImagePath == "" {
		return fmt.Errorf("IMAGE_PATH cannot be empty")
	}
	if c.Transcript.Enabled {
		if c.Transcript.Path == "" {
			return fmt.Errorf("TRANSCRIPT_PATH cannot be empty")
		}
		if c.Transcript.QueueSize <= 0 {
			return fmt.Errorf("TRANSCRIPT_QUEUE_SIZE must be > 0")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("30s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
