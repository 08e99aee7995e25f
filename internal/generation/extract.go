package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Candidate is a parsed but not yet normalized model answer.
type Candidate map[string]any

// parseState tags the outcome of one parser stage.
type parseState int

const (
	parseFailed parseState = iota
	parsedOther            // valid JSON, wrong top-level shape
	parsedObject
)

type parseOutcome struct {
	state     parseState
	candidate Candidate
	other     any
}

// parseStage is one step of the parser chain.
type parseStage struct {
	name string
	run  func(text string) parseOutcome
}

var parserChain = []parseStage{
	{name: "direct", run: parseDirect},
	{name: "balanced_span", run: parseBalancedSpan},
}

// Extractor turns raw model text into a Candidate, re-prompting the same model
// once with a correction directive when the text cannot be parsed.
type Extractor struct {
	Invoker  Invoker
	Composer Composer
	// RepairRounds bounds repair re-invocations per ladder attempt.
	RepairRounds int
	Timeout      time.Duration
}

// Extraction reports how a candidate was obtained.
type Extraction struct {
	Candidate Candidate
	Stage     string
	Repairs   int
	// Raw is the text the candidate came from.
	Raw string
}

// Extract runs the parser chain over raw and repairs once if needed.
func (x Extractor) Extract(ctx context.Context, raw string, p Prompt, model string) (*Extraction, error) {
	return x.extract(ctx, raw, p, model, x.RepairRounds, 0)
}

func (x Extractor) extract(ctx context.Context, raw string, p Prompt, model string, budget, used int) (*Extraction, error) {
	cleaned := stripFences(raw)
	var other any
	for _, stage := range parserChain {
		out := stage.run(cleaned)
		switch out.state {
		case parsedObject:
			return &Extraction{Candidate: out.candidate, Stage: stage.name, Repairs: used, Raw: raw}, nil
		case parsedOther:
			if other == nil {
				other = out.other
			}
		}
	}

	if budget <= 0 {
		return nil, &ExtractError{Kind: KindUnparseable, Raw: raw, Parsed: other, Repairs: used}
	}

	repaired, err := x.Invoker.Invoke(ctx, model, x.Composer.Repair(p, raw), x.Timeout)
	if err != nil {
		return nil, &ExtractError{Kind: KindUnparseable, Raw: raw, Parsed: other, Repairs: used + 1, Repair: err}
	}
	// Repair output is parsed once more with no budget left: no repair of a repair.
	ext, err := x.extract(ctx, repaired, p, model, 0, used+1)
	if err != nil {
		var ee *ExtractError
		if errors.As(err, &ee) && ee.Parsed == nil {
			ee.Parsed = other
		}
		return nil, err
	}
	return ext, nil
}

// stripFences removes leading/trailing markdown code fences and surrounding space.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "\ufeff")
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop the info string, e.g. ```json
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
			s = s[i+1:]
		} else {
			s = strings.TrimLeft(s, "jsonJSON")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseDirect(text string) parseOutcome {
	return decode([]byte(text))
}

// parseBalancedSpan parses the first balanced top-level {...} span, falling back
// to the first '{' through the last '}'.
func parseBalancedSpan(text string) parseOutcome {
	if span, ok := balancedObject(text); ok {
		if out := decode([]byte(span)); out.state == parsedObject {
			return out
		}
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		return decode([]byte(text[start : end+1]))
	}
	return parseOutcome{state: parseFailed}
}

func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func decode(b []byte) parseOutcome {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return parseOutcome{state: parseFailed}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return parseOutcome{state: parseFailed}
	}
	// Trailing garbage after the value means this stage did not see clean JSON.
	if dec.More() {
		return parseOutcome{state: parseFailed}
	}
	if obj, ok := v.(map[string]any); ok {
		return parseOutcome{state: parsedObject, candidate: Candidate(obj)}
	}
	return parseOutcome{state: parsedOther, other: v}
}
