package generation

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// Fingerprint hashes the salient fields of r: the title plus the first item of
// every list field, in schema order. It is stable across whitespace and letter
// case differences and is not meant to be collision resistant.
func Fingerprint(s Schema, r Result) string {
	parts := []string{salientText(r[s.TitleKey])}
	for _, f := range s.Fields {
		switch f.Type {
		case FieldStringList:
			parts = append(parts, firstString(r[f.Key]))
		case FieldObjectList:
			parts = append(parts, firstObjectText(f, r[f.Key]))
		}
	}
	return strconv.FormatInt(int64(rollingHash(strings.Join(parts, "|"))), 10)
}

// rollingHash is h = h*31 + c over UTF-16 code units in 32-bit signed
// arithmetic, so a browser computing the same string gets the same value.
func rollingHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	return h
}

// IsDuplicate reports whether fp is among recent.
func IsDuplicate(fp string, recent []string) bool {
	for _, r := range recent {
		if r == fp {
			return true
		}
	}
	return false
}

func salientText(v any) string {
	s, _ := v.(string)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func firstString(v any) string {
	switch items := v.(type) {
	case []string:
		if len(items) > 0 {
			return salientText(items[0])
		}
	case []any:
		if len(items) > 0 {
			return salientText(items[0])
		}
	}
	return ""
}

func firstObjectText(f Field, v any) string {
	var first map[string]any
	switch items := v.(type) {
	case []map[string]any:
		if len(items) > 0 {
			first = items[0]
		}
	case []any:
		if len(items) > 0 {
			first, _ = items[0].(map[string]any)
		}
	}
	if first == nil {
		return ""
	}
	for _, item := range f.Items {
		if item.Type == FieldText {
			return salientText(first[item.Key])
		}
	}
	return ""
}
