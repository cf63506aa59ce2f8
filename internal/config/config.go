package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/subosito/gotenv"
)

// Supported analysis providers
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// APIKeyEnv overrides the api_key stored in the config file.
const APIKeyEnv = "STEREOTWEET_API_KEY"

const appName = "stereotweet"

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Analysis AnalysisConfig `toml:"analysis"`
	Overlay  OverlayConfig  `toml:"overlay"`
	Cache    CacheConfig    `toml:"cache"`
	Render   RenderConfig   `toml:"render"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

type AnalysisConfig struct {
	LLMProvider       string `toml:"llm_provider"`
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

type OverlayConfig struct {
	StartURL              string `toml:"start_url"`
	Headless              bool   `toml:"headless"`
	ImageWaitTimeoutMS    int    `toml:"image_wait_timeout_ms"`
	ImagePollIntervalMS   int    `toml:"image_poll_interval_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	RescanIntervalSeconds int    `toml:"rescan_interval_seconds"`
}

type CacheConfig struct {
	TTLHours   int    `toml:"ttl_hours"`
	Path       string `toml:"path"`
	MemoSize   int    `toml:"memo_size"`
	PruneDaily bool   `toml:"prune_daily"`
}

type RenderConfig struct {
	PlanePath    string  `toml:"plane_path"`
	MarkerRadius float64 `toml:"marker_radius"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  bool   `toml:"file"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Analysis: AnalysisConfig{
			LLMProvider:       ProviderGemini,
			Model:             "gemini-2.5-pro",
			TimeoutSeconds:    120,
			RequestsPerMinute: 30,
		},
		Overlay: OverlayConfig{
			StartURL:              "https://x.com/home",
			Headless:              false,
			ImageWaitTimeoutMS:    5000,
			ImagePollIntervalMS:   200,
			RequestTimeoutSeconds: 90,
			RescanIntervalSeconds: 30,
		},
		Cache: CacheConfig{
			TTLHours:   24,
			MemoSize:   256,
			PruneDaily: true,
		},
		Render: RenderConfig{
			MarkerRadius: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  true,
		},
	}
}

// ImageWaitTimeout is the bound on waiting for a post's media to load.
func (c OverlayConfig) ImageWaitTimeout() time.Duration {
	return time.Duration(c.ImageWaitTimeoutMS) * time.Millisecond
}

// ImagePollInterval is the periodic check interval of the media wait.
func (c OverlayConfig) ImagePollInterval() time.Duration {
	return time.Duration(c.ImagePollIntervalMS) * time.Millisecond
}

// RequestTimeout is how long the overlay waits for an analysis reply.
func (c OverlayConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// TTL is the age after which a cached result is treated as absent.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory.
// On macOS this is ~/Library/Caches/stereotweet/
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// CachePath returns the result cache database path, honouring cache.path.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "results.db"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path on top of the defaults, so keys missing
// from an older file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the config, falling back to defaults when the file is
// missing. The second return value reports whether the file existed.
func LoadOrDefault() (*Config, bool, error) {
	cfg, err := Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), false, nil
		}
		return Default(), true, err
	}
	return cfg, true, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// LoadEnv loads KEY=VALUE pairs from the .env file in the config directory.
// A missing file is not an error.
func LoadEnv() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = gotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// KeyFile reads the provider credential fresh on every call, so a key saved
// while the overlay is running is picked up by the next analysis.
type KeyFile struct {
	Path string
}

// APIKey returns the configured key; the environment wins over the file.
// An empty string with a nil error means no key is configured.
func (k KeyFile) APIKey() (string, error) {
	if v := strings.TrimSpace(os.Getenv(APIKeyEnv)); v != "" {
		return v, nil
	}
	path := k.Path
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return "", err
		}
	}
	cfg, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(cfg.Analysis.APIKey), nil
}
