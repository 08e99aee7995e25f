package generation

import (
	"encoding/json"
	"math"
	"strings"
)

// Result is the canonical, contract-shaped output. Every schema key is present,
// list fields are never nil and text fields are always strings.
type Result map[string]any

// Normalize maps a candidate of uncertain completeness onto s. It never fails.
//
// Defaults: text "", lists [] and, for enum and integer fields, the value the
// field's Echo returns for req.
func Normalize(s Schema, c Candidate, req Request) Result {
	return Result(normalizeFields(s.Fields, map[string]any(c), req))
}

func normalizeFields(fields []Field, in map[string]any, req Request) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		var v any
		if in != nil {
			v = in[f.Key]
		}
		out[f.Key] = normalizeValue(f, v, req)
	}
	return out
}

func normalizeValue(f Field, v any, req Request) any {
	switch f.Type {
	case FieldText:
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return ""

	case FieldStringList:
		items, ok := v.([]any)
		if !ok {
			return []string{}
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			switch t := item.(type) {
			case string:
				if t = strings.TrimSpace(t); t != "" {
					out = append(out, t)
				}
			case json.Number:
				out = append(out, t.String())
			}
		}
		return out

	case FieldObjectList:
		items, ok := v.([]any)
		if !ok {
			return []map[string]any{}
		}
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, normalizeFields(f.Items, obj, req))
			}
		}
		return out

	case FieldEnum:
		if s, ok := v.(string); ok {
			s = strings.ToLower(strings.TrimSpace(s))
			for _, allowed := range f.Values {
				if s == allowed {
					return allowed
				}
			}
		}
		return echo(f, req, "")

	case FieldInteger:
		if n, ok := toInt(v); ok && n >= f.Min && (f.Max == 0 || n <= f.Max) {
			return n
		}
		return echo(f, req, 0)
	}
	return v
}

func echo(f Field, req Request, zero any) any {
	if f.Echo == nil {
		return zero
	}
	return f.Echo(req)
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if fl, err := t.Float64(); err == nil && fl == math.Trunc(fl) {
			return int(fl), true
		}
	case float64:
		if t == math.Trunc(t) {
			return int(t), true
		}
	case int:
		return t, true
	}
	return 0, false
}
