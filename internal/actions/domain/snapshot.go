package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeSpec decodes a stored JSON spec snapshot. Integral numbers decode as
// int and all other numbers as float64, so a snapshot read back from storage
// compares equal to the CanonicalSpec it was written from.
func DecodeSpec(data []byte) (map[string]any, error) {
	spec := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return spec, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&spec); err != nil {
		return nil, err
	}
	return normalizeNumbers(spec).(map[string]any), nil
}

// CanonicalSpec returns raw in the shape DecodeSpec produces: JSON-compatible
// maps and slices with numbers as int or float64.
func CanonicalSpec(raw map[string]any) (map[string]any, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode spec: %w", err)
	}
	return DecodeSpec(b)
}

func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = normalizeNumbers(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeNumbers(item)
		}
		return v
	case json.Number:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
		}
		f, _ := v.Float64()
		return f
	default:
		return v
	}
}
