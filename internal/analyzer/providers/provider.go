// Package providers adapts the supported LLM APIs to a single
// prompt-in, text-out call with classified errors.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ibeckermayer/stereotweet/internal/config"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

// Provider completes one prompt. Errors are *types.AnalysisError values
// classified as rejected, unavailable or malformed.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options are shared by every provider.
type Options struct {
	// BaseURL overrides the API endpoint, e.g. for a proxy or a test server.
	BaseURL string
	Timeout time.Duration
}

// New constructs the provider named in cfg with the given key.
func New(name, apiKey, model string, opts Options) (Provider, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second // LLM calls can be slow
	}
	switch name {
	case config.ProviderGemini, "":
		return NewGeminiProvider(apiKey, model, opts), nil
	case config.ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model, opts), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(apiKey, model, opts), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", name)
	}
}

// StatusError is a non-success HTTP response from a provider.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.Code, e.Message)
}

var rejectedPatterns = []string{
	"api key",
	"api_key",
	"apikey",
	"unauthorized",
	"unauthenticated",
	"permission",
	"invalid x-api-key",
	"authentication",
}

// Classify maps a transport-level failure onto the analysis error taxonomy.
// A known HTTP status decides; otherwise the message is matched against
// credential-related patterns.
func Classify(status int, err error) *types.AnalysisError {
	var ae *types.AnalysisError
	if errors.As(err, &ae) {
		return ae
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.KindProviderRejected, err)
	}
	if status == 0 && err != nil {
		msg := strings.ToLower(err.Error())
		for _, p := range rejectedPatterns {
			if strings.Contains(msg, p) {
				return types.NewError(types.KindProviderRejected, err)
			}
		}
	}
	return types.NewError(types.KindProviderUnavailable, err)
}

// truncate keeps error bodies readable in logs and cards.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
