// Package config manages application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ytscribe/internal/retry"
)

// Default patterns. The video pattern is deliberately loose: it captures the
// token after v=, youtu.be/ or a path prefix, and the extractor then checks
// the 11-character ID shape so a wrong length is reported as such.
const (
	DefaultSanitizePattern = `[^\p{L}\p{N}_\-\s]`
	DefaultVideoIDPattern  = `(?:[?&]v=|youtu\.be/|/(?:embed|shorts|live|v)/)([^&?#/\s]+)`
	DefaultChannelPattern  = `/(?:channel/(?P<id>[^/?#\s]+)|c/(?P<custom>[^/?#\s]+)|user/(?P<user>[^/?#\s]+)|@(?P<handle>[^/?#\s]+))`
	DefaultDurationPattern = `^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`
)

// Output formats.
const (
	FormatTXT  = "txt"
	FormatJSON = "json"
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
)

// Duration is a time.Duration that reads and writes as a string such as "30s".
type Duration time.Duration

// UnmarshalJSON accepts "1m30s" style strings or a bare number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// PatternConfig holds the regular expressions as configured.
type PatternConfig struct {
	SanitizeFilename string `json:"sanitize_filename"`
	VideoID          string `json:"youtube_video_id"`
	Channel          string `json:"youtube_channel"`
	ISODuration      string `json:"iso_duration"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	Name    string `json:"name"`
}

// File returns the full log file path.
func (l LoggingConfig) File() string {
	return filepath.Join(l.Path, l.Name)
}

// HTTPConfig configures the caption transport.
type HTTPConfig struct {
	Timeout           Duration `json:"timeout"`
	UserAgent         string   `json:"user_agent"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	// BreakerThreshold consecutive failures against one host pause requests
	// to it for BreakerCooldown. Zero disables the breaker.
	BreakerThreshold int      `json:"breaker_threshold"`
	BreakerCooldown  Duration `json:"breaker_cooldown"`
}

// Config holds all application configuration.
type Config struct {
	// OutputDir is where transcripts, channel listings and reports go.
	OutputDir string `json:"output_dir"`
	// FilenameMaxLength bounds the sanitized title part of a file name, in runes.
	FilenameMaxLength int `json:"filename_max_length"`
	// OutputFormat is one of txt, json, srt, vtt.
	OutputFormat string `json:"output_format"`
	// Languages is the caption language preference order.
	Languages []string `json:"languages"`
	// Overwrite replaces existing files instead of skipping them.
	Overwrite bool `json:"overwrite"`

	Patterns PatternConfig `json:"patterns"`
	Logging  LoggingConfig `json:"logging"`
	HTTP     HTTPConfig    `json:"http"`

	// Retry settings, shared by the caption transport and the Data API client.
	MaxRetries        int      `json:"max_retries"`
	InitialBackoff    Duration `json:"initial_backoff"`
	MaxBackoff        Duration `json:"max_backoff"`
	BackoffMultiplier float64  `json:"backoff_multiplier"`

	// CacheSize is the number of entries kept by each Data API response cache.
	CacheSize int `json:"cache_size"`

	// APIKey is the YouTube Data API key. Usually supplied through .env.
	APIKey string `json:"api_key"`

	// source is the config file that was read, if any.
	source string
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:         "transcripts",
		FilenameMaxLength: 36,
		OutputFormat:      FormatTXT,
		Languages:         []string{"en"},
		Patterns: PatternConfig{
			SanitizeFilename: DefaultSanitizePattern,
			VideoID:          DefaultVideoIDPattern,
			Channel:          DefaultChannelPattern,
			ISODuration:      DefaultDurationPattern,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Path:    ".",
			Name:    "ytscribe.log",
		},
		HTTP: HTTPConfig{
			Timeout:           Duration(30 * time.Second),
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) ytscribe/1.0",
			RequestsPerSecond: 2,
			BreakerThreshold:  8,
			BreakerCooldown:   Duration(2 * time.Minute),
		},
		MaxRetries:        3,
		InitialBackoff:    Duration(1 * time.Second),
		MaxBackoff:        Duration(30 * time.Second),
		BackoffMultiplier: 2.0,
		CacheSize:         512,
	}
}

// Load builds the configuration: defaults, then the first config file found
// (path if non-empty, else ytscribe.json in the working directory, else
// ~/.config/ytscribe/ytscribe.json), then .env and the process environment.
// The result is validated; a bad pattern is reported here.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(path); err != nil {
		// The search path is optional, an explicit path is not.
		if path != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Source returns the config file that was loaded, or "" when defaults were used.
func (c *Config) Source() string {
	return c.source
}

func (c *Config) loadFromFile(path string) error {
	paths := []string{path}
	if path == "" {
		paths = []string{"ytscribe.json"}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".config", "ytscribe", "ytscribe.json"))
		}
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == "" {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		c.source = p
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables. Malformed numeric
// or duration values are errors rather than silently ignored.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("YTSCRIBE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("YTSCRIBE_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("YTSCRIBE_OUTPUT_FORMAT"); v != "" {
		c.OutputFormat = strings.ToLower(v)
	}
	if v := os.Getenv("YTSCRIBE_LANGUAGES"); v != "" {
		c.Languages = SplitList(v)
	}
	if v := os.Getenv("YTSCRIBE_OVERWRITE"); v != "" {
		c.Overwrite = v == "true" || v == "1"
	}
	if v := os.Getenv("YTSCRIBE_LOG_ENABLED"); v != "" {
		c.Logging.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("YTSCRIBE_LOG_PATH"); v != "" {
		c.Logging.Path = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"YTSCRIBE_FILENAME_MAX_LENGTH", &c.FilenameMaxLength},
		{"YTSCRIBE_MAX_RETRIES", &c.MaxRetries},
		{"YTSCRIBE_CACHE_SIZE", &c.CacheSize},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"YTSCRIBE_HTTP_TIMEOUT", &c.HTTP.Timeout},
		{"YTSCRIBE_INITIAL_BACKOFF", &c.InitialBackoff},
		{"YTSCRIBE_MAX_BACKOFF", &c.MaxBackoff},
	}
	for _, e := range durations {
		if v := os.Getenv(e.key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = Duration(d)
		}
	}

	if v := os.Getenv("YTSCRIBE_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("YTSCRIBE_REQUESTS_PER_SECOND: %w", err)
		}
		c.HTTP.RequestsPerSecond = f
	}
	return nil
}

// Validate checks configuration validity, including that every pattern compiles.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.FilenameMaxLength <= 0 {
		return fmt.Errorf("filename_max_length must be positive")
	}
	switch c.OutputFormat {
	case FormatTXT, FormatJSON, FormatSRT, FormatVTT:
	default:
		return fmt.Errorf("output_format %q: must be one of txt, json, srt, vtt", c.OutputFormat)
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("languages must list at least one language code")
	}
	if c.Logging.Enabled && c.Logging.Name == "" {
		return fmt.Errorf("logging.name must not be empty when logging is enabled")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be non-negative")
	}
	if c.HTTP.BreakerThreshold < 0 {
		return fmt.Errorf("http.breaker_threshold must be non-negative")
	}
	if c.HTTP.BreakerThreshold > 0 && c.HTTP.BreakerCooldown <= 0 {
		return fmt.Errorf("http.breaker_cooldown must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive")
	}
	if _, err := c.Compile(); err != nil {
		return err
	}
	return nil
}

// Retry returns the retry policy handed to every transport.
func (c *Config) Retry() retry.Config {
	return retry.Config{
		MaxRetries:     c.MaxRetries,
		InitialBackoff: time.Duration(c.InitialBackoff),
		MaxBackoff:     time.Duration(c.MaxBackoff),
		Multiplier:     c.BackoffMultiplier,
		JitterFraction: 0.2,
	}
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
