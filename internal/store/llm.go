package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/stereotweet/internal/config"
)

// LLMExchange represents a prompt/response pair kept for debugging
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"` // e.g. "gemini"
	Model     string    `json:"model"`
	TweetID   string    `json:"tweet_id,omitempty"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// LLMCacheDir returns the path to the LLM exchange directory.
// On macOS this is ~/Library/Caches/stereotweet/llm/
func LLMCacheDir() (string, error) {
	cacheDir, err := config.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "llm"), nil
}

// SaveLLMExchange writes the exchange to a timestamped JSON file in dir and
// returns its path. An empty dir means LLMCacheDir.
func SaveLLMExchange(dir string, exchange LLMExchange) (string, error) {
	if dir == "" {
		var err error
		if dir, err = LLMCacheDir(); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}

	// Dashes instead of colons for filesystem compatibility; the nanosecond
	// suffix keeps concurrent analyses from overwriting each other.
	name := exchange.Timestamp.Format("2006-01-02T15-04-05.000000000")
	if exchange.TweetID != "" {
		name += "_" + exchange.TweetID
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(exchange, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}

	return path, nil
}
