package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose_IsDeterministic(t *testing.T) {
	s, ok := LookupSchema(KindStrategy)
	require.True(t, ok)
	req := Request{Kind: KindStrategy, Subject: "Science", Topic: "Plants", Stage: "primary"}.Sanitize()

	var c Composer
	a := c.Compose(s, req)
	b := c.Compose(s, req)
	assert.Equal(t, a, b)
}

func TestCompose_CarriesSchemaAndRequest(t *testing.T) {
	s, _ := LookupSchema(KindWeeklyPlan)
	req := Request{Kind: KindWeeklyPlan, Subject: "History", Notes: "focus on maps", Variant: 7}.Sanitize()

	p := Composer{}.Compose(s, req)

	for _, f := range s.Fields {
		assert.Contains(t, p.System, `"`+f.Key+`"`)
	}
	assert.Contains(t, p.System, `"homework"`)
	assert.Contains(t, p.User, "SUBJECT: History")
	assert.Contains(t, p.User, "TARGET_LANGUAGE: ar")
	assert.Contains(t, p.User, "focus on maps")
	assert.Contains(t, p.User, "VARIANT: 7")
	assert.NotContains(t, p.User, "TOPIC:")
	assert.Equal(t, int64(7), p.Variant)
}

func TestCompose_VariantChangesPrompt(t *testing.T) {
	s, _ := LookupSchema(KindEnrichmentCard)
	req := Request{Kind: KindEnrichmentCard, Subject: "Art"}.Sanitize()

	a := Composer{}.Compose(s, req.WithVariant(1))
	b := Composer{}.Compose(s, req.WithVariant(2))
	assert.NotEqual(t, a.User, b.User)
	assert.Equal(t, a.System, b.System)
}

func TestRepair_EmbedsInvalidOutput(t *testing.T) {
	p := Prompt{System: "sys", User: "user", Variant: 3}
	r := Composer{}.Repair(p, "here you go: not json")

	assert.Equal(t, "sys", r.System)
	assert.Equal(t, int64(3), r.Variant)
	assert.True(t, strings.HasPrefix(r.User, "user"))
	assert.Contains(t, r.User, "here you go: not json")
	assert.Contains(t, r.User, repairDirective)
}

func TestRepair_CapsEcho(t *testing.T) {
	r := Composer{}.Repair(Prompt{}, strings.Repeat("x", maxRepairEcho*2))
	assert.Less(t, len(r.User), maxRepairEcho+len(repairDirective)+64)
}
