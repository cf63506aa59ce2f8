// Package analyzer is the analysis context: it turns tweet_info_cohesive
// messages into analysis_result replies.
package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/ibeckermayer/stereotweet/internal/analyzer/providers"
	"github.com/ibeckermayer/stereotweet/internal/store"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

type tweetIDKey struct{}

// WithTweetID tags ctx with the post being judged, for logs and exchange dumps.
func WithTweetID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tweetIDKey{}, id)
}

func tweetID(ctx context.Context) string {
	id, _ := ctx.Value(tweetIDKey{}).(string)
	return id
}

// Client judges one post summary with one provider.
type Client struct {
	provider providers.Provider
	// exchangeDir receives prompt/response dumps; "" disables them.
	exchangeDir string
	saveDumps   bool
}

// NewClient wraps provider. When dumps is true every exchange is written
// to dir (the LLM cache directory when dir is empty).
func NewClient(provider providers.Provider, dumps bool, dir string) *Client {
	return &Client{provider: provider, saveDumps: dumps, exchangeDir: dir}
}

// Judge asks the provider to place text on the compass.
func (c *Client) Judge(ctx context.Context, text string) (types.Judgment, error) {
	prompt := BuildPrompt(text)

	response, err := c.provider.Complete(ctx, prompt)
	c.saveExchange(ctx, prompt, response, err)
	if err != nil {
		return types.Judgment{}, providers.Classify(0, err)
	}

	return ParseJudgment(response)
}

func (c *Client) saveExchange(ctx context.Context, prompt, response string, callErr error) {
	if !c.saveDumps {
		return
	}
	ex := store.LLMExchange{
		Timestamp: time.Now(),
		Provider:  c.provider.Name(),
		Model:     c.provider.Model(),
		TweetID:   tweetID(ctx),
		Prompt:    prompt,
		Response:  response,
	}
	if callErr != nil {
		ex.Error = callErr.Error()
	}
	if path, err := store.SaveLLMExchange(c.exchangeDir, ex); err != nil {
		slog.Warn("[analyzer] failed to save LLM exchange", slog.Any("error", err))
	} else {
		slog.Debug("[analyzer] saved LLM exchange", slog.String("path", path))
	}
}
