package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/mualim/api/internal/generation"
	"go.uber.org/zap"
)

// Provider names accepted in "provider:model" ids.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config carries provider credentials. A provider without a key is not registered.
type Config struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	AnthropicBaseURL string
	GeminiKey        string
	GeminiBaseURL    string
	MaxTokens        int
}

// Router dispatches a model id to the backend that serves it.
type Router struct {
	backends map[string]generation.Backend
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{backends: make(map[string]generation.Backend), logger: logger}
}

// NewRouterFromConfig registers every provider that has credentials.
func NewRouterFromConfig(ctx context.Context, cfg Config, logger *zap.Logger) (*Router, error) {
	r := NewRouter(logger)
	if cfg.OpenAIKey != "" {
		r.Register(ProviderOpenAI, NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, int64(cfg.MaxTokens)))
	}
	if cfg.AnthropicKey != "" {
		r.Register(ProviderAnthropic, NewAnthropic(cfg.AnthropicKey, cfg.AnthropicBaseURL, int64(cfg.MaxTokens)))
	}
	if cfg.GeminiKey != "" {
		g, err := NewGemini(ctx, cfg.GeminiKey, cfg.GeminiBaseURL, int32(cfg.MaxTokens))
		if err != nil {
			return nil, err
		}
		r.Register(ProviderGemini, g)
	}
	if len(r.backends) == 0 {
		r.logger.Warn("no model provider credentials configured; generation will fail")
	}
	return r, nil
}

// Register binds a provider name to a backend, replacing any previous one.
func (r *Router) Register(provider string, b generation.Backend) {
	r.backends[provider] = b
}

// Providers lists registered provider names.
func (r *Router) Providers() []string {
	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	return out
}

func (r *Router) Complete(ctx context.Context, model string, p generation.Prompt) (string, error) {
	provider, id := Resolve(model)
	b, ok := r.backends[provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, model)
	}
	return b.Complete(ctx, id, p)
}

// Resolve splits a model id into provider and provider-local model name.
// An explicit "provider:" prefix wins; otherwise the name's family decides.
func Resolve(model string) (provider, id string) {
	model = strings.TrimSpace(model)
	if i := strings.IndexByte(model, ':'); i > 0 {
		switch p := strings.ToLower(model[:i]); p {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
			return p, model[i+1:]
		}
	}
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return ProviderAnthropic, model
	case strings.HasPrefix(lower, "gemini"), strings.HasPrefix(lower, "gemma"):
		return ProviderGemini, model
	default:
		return ProviderOpenAI, model
	}
}
