package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mualim/api/internal/config"
	"github.com/mualim/api/internal/generation"
	"github.com/mualim/api/internal/llm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errIncomplete is returned after the diagnostic payload has been printed.
var errIncomplete = errors.New("generation incomplete")

type generateOptions struct {
	req    generation.Request
	models []string
	avoid  []string
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate <kind>",
		Short: "Generate one result and print it as JSON",
		Example: `  lessonctl generate strategy --subject "العلوم" --stage middle --bloom apply
  lessonctl generate weekly_plan --subject math --models gpt-4o-mini,claude-haiku-4-5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(opts.models) > 0 {
				cfg.Generation.Models = opts.models
			}
			backend, err := llm.NewRouterFromConfig(cmd.Context(), llm.Config{
				OpenAIKey:        cfg.OpenAIKey,
				OpenAIBaseURL:    cfg.OpenAIBaseURL,
				AnthropicKey:     cfg.AnthropicKey,
				AnthropicBaseURL: cfg.AnthropicBaseURL,
				GeminiKey:        cfg.GeminiKey,
				GeminiBaseURL:    cfg.GeminiBaseURL,
				MaxTokens:        cfg.Generation.MaxTokens,
			}, logger)
			if err != nil {
				return err
			}
			p := generation.NewPipeline(cfg.Generation.Ladder(), backend, cfg.Generation.NoveltyRetries, nil, logger)

			req := opts.req
			req.Kind = generation.Kind(args[0])
			req.Avoid = opts.avoid
			return runGenerate(cmd, p, req)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.req.Subject, "subject", "", "subject taught (required)")
	f.StringVar(&opts.req.Topic, "topic", "", "lesson topic")
	f.StringVar(&opts.req.Stage, "stage", "", "kindergarten, primary, middle, secondary or university")
	f.StringVar(&opts.req.BloomLevel, "bloom", "", "target cognitive level")
	f.StringVar(&opts.req.Notes, "notes", "", "free-form teacher notes")
	f.StringVar(&opts.req.Language, "language", "", "output language code")
	f.IntVar(&opts.req.ItemCount, "items", 0, "number of items for list-shaped kinds")
	f.IntVar(&opts.req.DurationMinutes, "duration", 0, "lesson length in minutes")
	f.StringSliceVar(&opts.models, "models", nil, "override the model ladder")
	f.StringSliceVar(&opts.avoid, "avoid", nil, "fingerprints that must not be returned")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

type generator interface {
	Generate(ctx context.Context, req generation.Request, recent []string) (*generation.Outcome, error)
}

func runGenerate(cmd *cobra.Command, g generator, req generation.Request) error {
	out, err := g.Generate(cmd.Context(), req, nil)
	var df *generation.DiagnosticFailure
	switch {
	case err == nil:
		logger.Info("generated",
			zap.String("model", out.Model),
			zap.String("fingerprint", out.Fingerprint),
			zap.Int("attempts", len(out.Attempts)),
		)
		return writeJSON(cmd.OutOrStdout(), out)
	case errors.As(err, &df):
		if werr := writeJSON(cmd.OutOrStdout(), map[string]any{
			"debug":    "incomplete",
			"rawText":  df.LastRaw,
			"parsed":   df.Parsed,
			"attempts": df.Attempts,
		}); werr != nil {
			return werr
		}
		return fmt.Errorf("%w: %v", errIncomplete, err)
	default:
		return err
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
