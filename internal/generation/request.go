package generation

import (
	"strings"
	"unicode"
)

// Field caps applied before any text reaches a prompt.
const (
	maxShortField = 120
	maxNotes      = 1000
	maxLanguage   = 16

	minItemCount     = 1
	maxItemCount     = 12
	defaultItemCount = 5

	minDuration     = 5
	maxDuration     = 240
	defaultDuration = 45

	defaultLanguage = "ar"
	maxAvoid        = 100
)

// Stages accepted for the stage/age band field.
var validStages = map[string]bool{
	"kindergarten": true,
	"primary":      true,
	"middle":       true,
	"secondary":    true,
	"university":   true,
}

// BloomLevels is the accepted set for the cognitive-level tag.
var BloomLevels = []string{"remember", "understand", "apply", "analyze", "evaluate", "create"}

// Request is one teacher's structured generation request. Treat it as a value:
// Sanitize returns a new copy and nothing mutates a Request after that.
type Request struct {
	Kind            Kind     `json:"kind"`
	Subject         string   `json:"subject" binding:"required"`
	Topic           string   `json:"topic"`
	Stage           string   `json:"stage"`
	BloomLevel      string   `json:"bloom_level"`
	Notes           string   `json:"notes"`
	ItemCount       int      `json:"item_count"`
	DurationMinutes int      `json:"duration_minutes"`
	Language        string   `json:"language"`
	Variant         int64    `json:"variant"`
	Avoid           []string `json:"avoid,omitempty"`
}

// Sanitize returns a trimmed, length-capped copy with numeric fields clamped.
func (r Request) Sanitize() Request {
	out := r
	out.Subject = clean(r.Subject, maxShortField)
	out.Topic = clean(r.Topic, maxShortField)
	out.Stage = strings.ToLower(clean(r.Stage, maxShortField))
	out.BloomLevel = strings.ToLower(clean(r.BloomLevel, maxShortField))
	out.Notes = clean(r.Notes, maxNotes)
	out.Language = strings.ToLower(clean(r.Language, maxLanguage))
	if out.Language == "" {
		out.Language = defaultLanguage
	}
	out.ItemCount = clamp(r.ItemCount, minItemCount, maxItemCount, defaultItemCount)
	out.DurationMinutes = clamp(r.DurationMinutes, minDuration, maxDuration, defaultDuration)
	if !isBloomLevel(out.BloomLevel) {
		out.BloomLevel = "understand"
	}

	avoid := r.Avoid
	if len(avoid) > maxAvoid {
		avoid = avoid[len(avoid)-maxAvoid:]
	}
	out.Avoid = make([]string, 0, len(avoid))
	for _, fp := range avoid {
		if fp = clean(fp, 16); fp != "" {
			out.Avoid = append(out.Avoid, fp)
		}
	}
	return out
}

// Validate checks a sanitized request.
func (r Request) Validate() error {
	if _, ok := LookupSchema(r.Kind); !ok {
		return &InvalidRequestError{Field: "kind", Reason: "is not a known content kind"}
	}
	if r.Subject == "" {
		return &InvalidRequestError{Field: "subject", Reason: "is required"}
	}
	if r.Stage != "" && !validStages[r.Stage] {
		return &InvalidRequestError{Field: "stage", Reason: "is not a known stage"}
	}
	return nil
}

// WithVariant returns a copy carrying a new nonce.
func (r Request) WithVariant(v int64) Request {
	r.Variant = v
	return r
}

func isBloomLevel(s string) bool {
	for _, l := range BloomLevels {
		if l == s {
			return true
		}
	}
	return false
}

// clean drops control characters, collapses runs of whitespace and caps rune length.
func clean(s string, limit int) string {
	var b strings.Builder
	n := 0
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if space && b.Len() > 0 {
			if n >= limit {
				break
			}
			b.WriteRune(' ')
			n++
		}
		space = false
		if n >= limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}

func clamp(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
