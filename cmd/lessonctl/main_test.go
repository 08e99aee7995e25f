package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mualim/api/internal/generation"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	logger = zap.NewNop()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFingerprintCmd(t *testing.T) {
	out, err := execute(t,
		`{"strategy_name":"  Think PAIR share ","goals":["G1","g2"],"steps":["a"],"duration_minutes":40}`,
		"fingerprint", "strategy")
	require.NoError(t, err)
	assert.Equal(t, "1481550820\n", out)
}

func TestFingerprintCmd_Errors(t *testing.T) {
	_, err := execute(t, `{}`, "fingerprint", "sonnet")
	assert.ErrorContains(t, err, "unknown kind")

	_, err = execute(t, `[1,2]`, "fingerprint", "strategy")
	assert.ErrorContains(t, err, "decode result")
}

func TestKindsCmd(t *testing.T) {
	out, err := execute(t, "", "kinds")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy")
	assert.Contains(t, out, "weekly_plan")
}

func TestGenerateCmd_RequiresSubject(t *testing.T) {
	_, err := execute(t, "", "generate", "strategy")
	assert.ErrorContains(t, err, "subject")
}

type fakeGenerator struct {
	out *generation.Outcome
	err error
}

func (g fakeGenerator) Generate(ctx context.Context, req generation.Request, recent []string) (*generation.Outcome, error) {
	return g.out, g.err
}

func TestRunGenerate(t *testing.T) {
	logger = zap.NewNop()
	tests := []struct {
		name    string
		gen     fakeGenerator
		want    string
		wantErr error
	}{
		{
			name: "success",
			gen:  fakeGenerator{out: &generation.Outcome{Model: "m", Fingerprint: "42", Result: generation.Result{"strategy_name": "X"}}},
			want: `"fingerprint": "42"`,
		},
		{
			name:    "soft failure prints diagnostics",
			gen:     fakeGenerator{err: &generation.DiagnosticFailure{LastRaw: "oops"}},
			want:    `"rawText": "oops"`,
			wantErr: errIncomplete,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.SetContext(context.Background())
			var out bytes.Buffer
			cmd.SetOut(&out)

			err := runGenerate(cmd, tt.gen, generation.Request{Kind: generation.KindStrategy, Subject: "math"})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
