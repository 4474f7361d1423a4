package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// coerceNumber parses a value leniently: numeric types pass through,
// strings have thousands separators stripped first. Non-finite results are
// rejected rather than propagated.
func coerceNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if cleaned == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
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

func coerceFloat(v any) *float64 {
	f, ok := coerceNumber(v)
	if !ok {
		return nil
	}
	return &f
}

func coerceInt(v any) *int64 {
	f, ok := coerceNumber(v)
	if !ok {
		return nil
	}
	n := int64(f)
	return &n
}

func coerceEpoch(v any) int64 {
	f, ok := coerceNumber(v)
	if !ok {
		return 0
	}
	return int64(f)
}

func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if strs, ok := v.([]string); ok {
			return strs
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceFloatSlice(v any) []float64 {
	items, ok := v.([]any)
	if !ok {
		if fs, ok := v.([]float64); ok {
			return fs
		}
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if f, ok := coerceNumber(item); ok {
			out = append(out, f)
		}
	}
	return out
}
