package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ibeckermayer/stereotweet/internal/config"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

// AnthropicProvider implements Provider using Anthropic's Claude API
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey, model string, opts Options) *AnthropicProvider {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(opts.Timeout),
		// A failed attempt is reported to the user, who re-activates.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	return &AnthropicProvider{client: &client, model: model}
}

func (c *AnthropicProvider) Name() string  { return config.ProviderAnthropic }
func (c *AnthropicProvider) Model() string { return c.model }

// Complete sends prompt to Claude and returns the JSON object it produced
func (c *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	// Use prefilling to ensure Claude continues with valid JSON (starting after the "{")
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("{")),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", Classify(apiErr.StatusCode, fmt.Errorf("failed to call Claude API: %w", err))
		}
		return "", Classify(0, fmt.Errorf("failed to call Claude API: %w", err))
	}

	// Extract text from response
	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return "", types.NewError(types.KindMalformedJudgment, errors.New("Claude returned empty response"))
	}

	// Prepend "{" since we used prefilling - the response continues from after the "{"
	return "{" + responseText, nil
}
