package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mualim/api/internal/generation"
	"google.golang.org/genai"
)

// Gemini completes prompts with the Gemini API in JSON mode.
type Gemini struct {
	client    *genai.Client
	maxTokens int32
}

func NewGemini(ctx context.Context, apiKey, baseURL string, maxTokens int32) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, maxTokens: maxTokens}, nil
}

func (g *Gemini) Complete(ctx context.Context, model string, p generation.Prompt) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = g.maxTokens
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(p.User), cfg)
	if err != nil {
		if code, ok := geminiStatus(err); ok {
			return "", &StatusError{Provider: "gemini", Code: code, Err: err}
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", generation.ErrEmptyResponse
	}
	return text, nil
}

func geminiStatus(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
