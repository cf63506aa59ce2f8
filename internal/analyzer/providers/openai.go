package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ibeckermayer/stereotweet/internal/config"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

// OpenAIProvider implements Provider with the chat completions API in JSON mode
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey, model string, opts Options) *OpenAIProvider {
	if model == "" {
		model = openai.GPT4o
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAIProvider) Name() string  { return config.ProviderOpenAI }
func (o *OpenAIProvider) Model() string { return o.model }

// Complete runs one chat completion constrained to a JSON object
func (o *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		switch {
		case errors.As(err, &apiErr):
			return "", Classify(apiErr.HTTPStatusCode, fmt.Errorf("failed to call OpenAI API: %w", err))
		case errors.As(err, &reqErr):
			return "", Classify(reqErr.HTTPStatusCode, fmt.Errorf("failed to call OpenAI API: %w", err))
		default:
			return "", Classify(0, fmt.Errorf("failed to call OpenAI API: %w", err))
		}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", types.NewError(types.KindMalformedJudgment, errors.New("OpenAI returned empty response"))
	}
	return resp.Choices[0].Message.Content, nil
}
