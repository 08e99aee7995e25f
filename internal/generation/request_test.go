package generation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_TrimsAndCaps(t *testing.T) {
	req := Request{
		Kind:       KindStrategy,
		Subject:    "  الرياضيات \t\n",
		Stage:      " Middle ",
		BloomLevel: "APPLY",
		Notes:      strings.Repeat("n", 5000),
		Topic:      "fractions\x00\x07 and   decimals",
	}

	got := req.Sanitize()

	assert.Equal(t, "الرياضيات", got.Subject)
	assert.Equal(t, "middle", got.Stage)
	assert.Equal(t, "apply", got.BloomLevel)
	assert.Equal(t, "fractions and decimals", got.Topic)
	assert.Len(t, []rune(got.Notes), maxNotes)
	assert.Equal(t, defaultLanguage, got.Language)
	assert.Equal(t, defaultItemCount, got.ItemCount)
	assert.Equal(t, defaultDuration, got.DurationMinutes)
	assert.NotNil(t, got.Avoid)

	// the original value is untouched
	assert.Equal(t, "  الرياضيات \t\n", req.Subject)
}

func TestSanitize_ClampsNumbersAndBloom(t *testing.T) {
	got := Request{ItemCount: 99, DurationMinutes: 1, BloomLevel: "memorize"}.Sanitize()
	assert.Equal(t, maxItemCount, got.ItemCount)
	assert.Equal(t, minDuration, got.DurationMinutes)
	assert.Equal(t, "understand", got.BloomLevel)
}

func TestSanitize_BoundsAvoidList(t *testing.T) {
	avoid := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		avoid = append(avoid, "fp")
	}
	avoid = append(avoid, "  ")
	got := Request{Avoid: avoid}.Sanitize()
	assert.Len(t, got.Avoid, maxAvoid-1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"unknown kind", Request{Kind: "poem", Subject: "math"}, "kind"},
		{"missing subject", Request{Kind: KindStrategy}, "subject"},
		{"bad stage", Request{Kind: KindStrategy, Subject: "math", Stage: "grad"}, "stage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Sanitize().Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
			var ire *InvalidRequestError
			require.ErrorAs(t, err, &ire)
			assert.Equal(t, tt.field, ire.Field)
		})
	}

	assert.NoError(t, Request{Kind: KindWeeklyPlan, Subject: "science", Stage: "primary"}.Sanitize().Validate())
}
