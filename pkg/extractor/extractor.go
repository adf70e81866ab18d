// Package extractor provides tools for extracting values from loosely-typed
// profile records
package extractor

import (
	"fmt"
	"strconv"
	"strings"
)

// Extractor handles extracting and coercing values from nested data
// structures. Profile rows arrive as map[string]any with no shape guarantees;
// every read goes through here so the rest of the engine only ever sees
// typed values.
type Extractor struct{}

// New creates a new Extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract extracts a value from data using a dot-notation path.
// Supported syntax:
// - Simple path: "name", "location.city", "preferences.age_range.min"
// - Array access: "photos[0]", "interests[2]"
// A missing segment yields (nil, nil); only a type mismatch is an error.
func (e *Extractor) Extract(data any, path string) (any, error) {
	if path == "" {
		return data, nil
	}

	current := data
	for _, part := range parsePath(path) {
		var err error
		current, err = extractPart(current, part)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}
	}

	return current, nil
}

// ExtractString extracts a value and converts it to a string.
// Returns nil when the path resolves to nothing.
func (e *Extractor) ExtractString(data any, path string) (*string, error) {
	value, err := e.Extract(data, path)
	if err != nil || value == nil {
		return nil, err
	}

	s := toString(value)
	return &s, nil
}

// ExtractFloat extracts a numeric value. JSON decoding produces float64 for
// every number, but stores also hand back ints and numeric strings.
func (e *Extractor) ExtractFloat(data any, path string) (*float64, error) {
	value, err := e.Extract(data, path)
	if err != nil || value == nil {
		return nil, err
	}

	switch v := value.(type) {
	case float64:
		return &v, nil
	case float32:
		f := float64(v)
		return &f, nil
	case int:
		f := float64(v)
		return &f, nil
	case int64:
		f := float64(v)
		return &f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, nil
		}
		return &f, nil
	default:
		return nil, nil
	}
}

// ExtractBool extracts a boolean value, accepting the string and numeric
// spellings legacy rows use ("true", "1", 1).
func (e *Extractor) ExtractBool(data any, path string) (*bool, error) {
	value, err := e.Extract(data, path)
	if err != nil || value == nil {
		return nil, err
	}

	switch v := value.(type) {
	case bool:
		return &v, nil
	case string:
		b := v == "true" || v == "1"
		return &b, nil
	case float64:
		b := v != 0
		return &b, nil
	case int:
		b := v != 0
		return &b, nil
	default:
		return nil, nil
	}
}

// pathPart represents a parsed path segment
type pathPart struct {
	key        string
	isArray    bool
	arrayIndex int
}

// parsePath parses a dot-notation expression into parts
func parsePath(path string) []pathPart {
	var parts []pathPart

	for _, seg := range strings.Split(path, ".") {
		part := pathPart{key: seg}

		if idx := strings.Index(seg, "["); idx != -1 && strings.HasSuffix(seg, "]") {
			part.key = seg[:idx]
			if i, err := strconv.Atoi(seg[idx+1 : len(seg)-1]); err == nil {
				part.isArray = true
				part.arrayIndex = i
			}
		}

		parts = append(parts, part)
	}

	return parts
}

// extractPart extracts a value for a single path part
func extractPart(data any, part pathPart) (any, error) {
	var value any = data

	if part.key != "" {
		switch v := data.(type) {
		case map[string]any:
			val, ok := v[part.key]
			if !ok {
				return nil, nil
			}
			value = val
		case map[string]string:
			val, ok := v[part.key]
			if !ok {
				return nil, nil
			}
			value = val
		default:
			return nil, fmt.Errorf("cannot extract key %q from type %T", part.key, data)
		}
	}

	if part.isArray {
		arr, ok := toArray(value)
		if !ok {
			return nil, fmt.Errorf("expected array for index access, got %T", value)
		}
		if part.arrayIndex < 0 || part.arrayIndex >= len(arr) {
			return nil, nil
		}
		return arr[part.arrayIndex], nil
	}

	return value, nil
}

// toArray converts a value to an array
func toArray(v any) ([]any, bool) {
	switch arr := v.(type) {
	case []any:
		return arr, true
	case []string:
		result := make([]any, len(arr))
		for i, s := range arr {
			result[i] = s
		}
		return result, true
	default:
		return nil, false
	}
}

// toString converts a scalar value to a string
func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
