package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ibeckermayer/stereotweet/internal/config"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider calls the Gemini generateContent endpoint
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey, model string, opts Options) *GeminiProvider {
	base := opts.BaseURL
	if base == "" {
		base = geminiAPIURL
	}
	if model == "" {
		model = "gemini-2.5-pro"
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

func (g *GeminiProvider) Name() string  { return config.ProviderGemini }
func (g *GeminiProvider) Model() string { return g.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete asks Gemini for a JSON-only answer to prompt
func (g *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{ResponseMimeType: "application/json"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// The URL carries the key; keep it out of the message.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", Classify(0, fmt.Errorf("failed to call Gemini API: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Classify(0, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := truncate(string(body), 500)
		var eb geminiErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Status + ": " + eb.Error.Message
		}
		return "", Classify(resp.StatusCode, &StatusError{Provider: "Gemini", Code: resp.StatusCode, Message: msg})
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", types.NewError(types.KindMalformedJudgment, fmt.Errorf("failed to parse Gemini response: %w", err))
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", types.NewError(types.KindMalformedJudgment, errors.New("Gemini returned no candidates"))
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}
