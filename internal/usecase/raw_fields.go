package usecase

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/smartshop/backend/internal/domain"
)

// Upstream records name the same value differently depending on chain and API
// version. Every semantic value is read through an ordered list of accessors and
// the first present-and-valid one wins.

var leadingNumberRegex = regexp.MustCompile(`-?\d+(\.\d+)?`)

// accessor reads one candidate location of a value inside a record.
type accessor func(map[string]any) (any, bool)

// at returns an accessor following a key path through nested objects.
func at(path ...string) accessor {
	return func(m map[string]any) (any, bool) {
		return field(m, path...)
	}
}

// field walks nested objects by key. Missing keys and JSON nulls are absent.
func field(m map[string]any, path ...string) (any, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		v, ok := obj[key]
		if !ok || v == nil {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case domain.RawProduct:
		return m, m != nil
	}
	return nil, false
}

// objectAt returns the nested object at path, if the value there is an object.
func objectAt(m map[string]any, path ...string) (map[string]any, bool) {
	v, ok := field(m, path...)
	if !ok {
		return nil, false
	}
	return asObject(v)
}

// firstNumber returns the first candidate that coerces to a finite number.
func firstNumber(m map[string]any, candidates ...accessor) (float64, bool) {
	for _, get := range candidates {
		if v, ok := get(m); ok {
			if n, ok := safeNumber(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// firstNumeric is like firstNumber but only accepts values that are already numbers.
func firstNumeric(m map[string]any, candidates ...accessor) (float64, bool) {
	for _, get := range candidates {
		if v, ok := get(m); ok {
			if n, ok := numericValue(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// firstText returns the first candidate that is a non-blank string, trimmed.
func firstText(m map[string]any, candidates ...accessor) (string, bool) {
	for _, get := range candidates {
		if v, ok := get(m); ok {
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}

// firstString is like firstText but also accepts finite numbers, formatted.
func firstString(m map[string]any, candidates ...accessor) (string, bool) {
	for _, get := range candidates {
		if v, ok := get(m); ok {
			if s, ok := safeString(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

// firstFlag returns the first candidate that reads as a boolean flag.
func firstFlag(m map[string]any, candidates ...accessor) (bool, bool) {
	for _, get := range candidates {
		if v, ok := get(m); ok {
			if b, ok := parseBooleanFlag(v); ok {
				return b, true
			}
		}
	}
	return false, false
}

// numericValue accepts only JSON numbers.
func numericValue(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// safeNumber coerces numbers, numeric text ("1,5 kg" -> 1.5) and booleans.
func safeNumber(v any) (float64, bool) {
	if n, ok := numericValue(v); ok {
		return n, true
	}
	switch x := v.(type) {
	case string:
		return extractNumber(x)
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// extractNumber returns the first numeric token of a string.
func extractNumber(s string) (float64, bool) {
	match := leadingNumberRegex.FindString(strings.Replace(s, ",", ".", 1))
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// safeString returns trimmed non-blank text or a formatted finite number.
func safeString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	if n, ok := numericValue(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

// parseBooleanFlag reads true/false, 1/0, yes/no, y/n.
func parseBooleanFlag(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case nil:
		return false, false
	}
	s, ok := safeString(v)
	if !ok {
		return false, false
	}
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

// finitePtr drops NaN and infinities.
func finitePtr(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
