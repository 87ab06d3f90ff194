package embedding

import (
	"encoding/json"
	"math"

	"support-rag/internal/models"
)

// accessor pulls one candidate vector out of a raw embedding payload.
type accessor func(raw any) any

// candidates are tried in order; the first that flattens to a usable vector wins.
var candidates = []accessor{
	func(raw any) any { return raw },
	field("embedding"),
	field("values"),
	firstData("embedding"),
	firstData("values"),
}

// Normalize turns a loosely shaped embedding payload into a flat vector.
// It returns an empty vector when no candidate holds a non-empty sequence
// of finite numbers.
func Normalize(raw any) models.Vector {
	for _, get := range candidates {
		if v, ok := flatten(get(raw)); ok {
			return v
		}
	}
	return models.Vector{}
}

// NormalizeJSON decodes a stored JSON payload and normalizes it.
func NormalizeJSON(data []byte) models.Vector {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Vector{}
	}
	return Normalize(raw)
}

func field(key string) accessor {
	return func(raw any) any {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil
		}
		return m[key]
	}
}

func firstData(key string) accessor {
	return func(raw any) any {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil
		}
		data, ok := m["data"].([]any)
		if !ok || len(data) == 0 {
			return nil
		}
		return field(key)(data[0])
	}
}

func flatten(candidate any) (models.Vector, bool) {
	switch candidate.(type) {
	case []any, []float64, []float32, [][]float64, [][]float32:
	default:
		return nil, false
	}

	out := models.Vector{}
	if !appendFlat(&out, candidate) || len(out) == 0 {
		return nil, false
	}
	return out, true
}

func appendFlat(dst *models.Vector, v any) bool {
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			if !appendFlat(dst, e) {
				return false
			}
		}
	case []float64:
		for _, f := range x {
			if !appendNumber(dst, f) {
				return false
			}
		}
	case []float32:
		for _, f := range x {
			if !appendNumber(dst, float64(f)) {
				return false
			}
		}
	case [][]float64:
		for _, row := range x {
			if !appendFlat(dst, row) {
				return false
			}
		}
	case [][]float32:
		for _, row := range x {
			if !appendFlat(dst, row) {
				return false
			}
		}
	case float64:
		return appendNumber(dst, x)
	case float32:
		return appendNumber(dst, float64(x))
	case int:
		return appendNumber(dst, float64(x))
	case int64:
		return appendNumber(dst, float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return false
		}
		return appendNumber(dst, f)
	default:
		return false
	}
	return true
}

func appendNumber(dst *models.Vector, f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	*dst = append(*dst, f)
	return true
}
