package generation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"```json{\"a\":1}```", `{"a":1}`},
		{"\ufeff  {\"a\":1}  ", `{"a":1}`},
		{"plain text", "plain text"},
		{"  ```JSON\n[1,2]\n```  ", "[1,2]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFences(tt.in), tt.in)
	}
}

func TestExtract_ParserChain(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		stage string
		title string
	}{
		{"direct", `{"strategy_name":"A"}`, "direct", "A"},
		{"fenced", "```json\n{\"strategy_name\":\"B\"}\n```", "direct", "B"},
		{"prose around object", `Here it is: {"strategy_name":"C","x":"}"} hope it helps`, "balanced_span", "C"},
		{"nested braces", `ok {"strategy_name":"D","inner":{"k":"v"}} and {"other":1}`, "balanced_span", "D"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := Extractor{}.Extract(context.Background(), tt.raw, Prompt{}, "m")
			require.NoError(t, err)
			assert.Equal(t, tt.stage, ext.Stage)
			assert.Equal(t, tt.title, ext.Candidate["strategy_name"])
			assert.Zero(t, ext.Repairs)
		})
	}
}

func TestExtract_UsesNumbers(t *testing.T) {
	ext, err := Extractor{}.Extract(context.Background(), `{"duration_minutes":40}`, Prompt{}, "m")
	require.NoError(t, err)
	assert.Equal(t, json.Number("40"), ext.Candidate["duration_minutes"])
}

func TestExtract_NoBudgetFails(t *testing.T) {
	_, err := Extractor{}.Extract(context.Background(), "I cannot help with that", Prompt{}, "m")
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindUnparseable, ee.Kind)
	assert.Equal(t, "I cannot help with that", ee.Raw)
	assert.Nil(t, ee.Repair)
}

func TestExtract_WrongShapeKeepsParsedValue(t *testing.T) {
	_, err := Extractor{}.Extract(context.Background(), `["a","b"]`, Prompt{}, "m")
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, []any{"a", "b"}, ee.Parsed)
}

func TestExtract_RepairsOnce(t *testing.T) {
	b := script(reply{text: `{"strategy_name":"Fixed"}`})
	x := Extractor{Invoker: Invoker{Backend: b}, RepairRounds: 1, Timeout: time.Second}

	ext, err := x.Extract(context.Background(), "Sure! Let me think about it.", Prompt{User: "u"}, "model-a")
	require.NoError(t, err)
	assert.Equal(t, 1, ext.Repairs)
	assert.Equal(t, "Fixed", ext.Candidate["strategy_name"])
	require.Equal(t, 1, b.callCount())
	assert.Equal(t, []string{"model-a"}, b.models())
	assert.Contains(t, b.calls[0].prompt.User, "Sure! Let me think about it.")
}

func TestExtract_NoRepairOfRepair(t *testing.T) {
	b := script(reply{text: "still prose"})
	x := Extractor{Invoker: Invoker{Backend: b}, RepairRounds: 1, Timeout: time.Second}

	_, err := x.Extract(context.Background(), "prose", Prompt{}, "m")
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "still prose", ee.Raw)
	assert.Equal(t, 1, ee.Repairs)
	assert.Equal(t, 1, b.callCount())
}

func TestExtract_RepairInvokeFails(t *testing.T) {
	b := script(reply{err: statusErr(500)})
	x := Extractor{Invoker: Invoker{Backend: b}, RepairRounds: 1, Timeout: time.Second}

	_, err := x.Extract(context.Background(), "prose", Prompt{}, "m")
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	require.Error(t, ee.Repair)
	assert.Equal(t, 1, ee.Repairs)
	var ae *AttemptError
	assert.True(t, errors.As(ee.Repair, &ae))
	assert.Equal(t, "prose", ee.Raw)
}
