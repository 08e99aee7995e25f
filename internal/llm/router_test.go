package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/mualim/api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		model    string
		provider string
		id       string
	}{
		{"gpt-4o-mini", ProviderOpenAI, "gpt-4o-mini"},
		{"o3-mini", ProviderOpenAI, "o3-mini"},
		{"claude-haiku-4-5", ProviderAnthropic, "claude-haiku-4-5"},
		{"gemini-2.5-flash", ProviderGemini, "gemini-2.5-flash"},
		{"anthropic:my-finetune", ProviderAnthropic, "my-finetune"},
		{"OpenAI:llama-3.1-8b", ProviderOpenAI, "llama-3.1-8b"},
		{"meta-llama/llama-3:8b", ProviderOpenAI, "meta-llama/llama-3:8b"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, id := Resolve(tt.model)
			assert.Equal(t, tt.provider, p)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestRouter_Dispatch(t *testing.T) {
	var got []string
	stub := func(name string) generation.Backend {
		return generation.BackendFunc(func(ctx context.Context, model string, p generation.Prompt) (string, error) {
			got = append(got, name+"/"+model)
			return "{}", nil
		})
	}
	r := NewRouter(nil)
	r.Register(ProviderOpenAI, stub("oa"))
	r.Register(ProviderAnthropic, stub("an"))

	_, err := r.Complete(context.Background(), "claude-sonnet", generation.Prompt{})
	require.NoError(t, err)
	_, err = r.Complete(context.Background(), "openai:gpt-4.1", generation.Prompt{})
	require.NoError(t, err)
	assert.Equal(t, []string{"an/claude-sonnet", "oa/gpt-4.1"}, got)
	assert.ElementsMatch(t, []string{ProviderOpenAI, ProviderAnthropic}, r.Providers())

	_, err = r.Complete(context.Background(), "gemini-2.5-pro", generation.Prompt{})
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestStatusError_IsStatusCoder(t *testing.T) {
	var err error = &StatusError{Provider: "openai", Code: 429, Err: errors.New("rate limited")}
	var sc generation.StatusCoder
	require.True(t, errors.As(err, &sc))
	assert.Equal(t, 429, sc.StatusCode())
}
