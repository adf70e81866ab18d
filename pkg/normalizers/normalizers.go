// Package normalizers provides string normalization functions for profile
// fields and interest tags
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("ntag", NormalizeTag)
	Register("ncity", NormalizeCity)
	Register("ngender", NormalizeTag)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// CollapseWhitespace replaces runs of whitespace with a single space
func CollapseWhitespace(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeTag canonicalizes an interest or gender tag: lowercase, trimmed,
// inner whitespace collapsed. Two tags that differ only in case or spacing
// compare equal after this.
func NormalizeTag(s string) string {
	return CollapseWhitespace(strings.ToLower(s))
}

// NormalizeCity canonicalizes a city name for same-city comparison:
// lowercase, trimmed, punctuation removed, whitespace collapsed.
func NormalizeCity(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return CollapseWhitespace(strings.ToLower(b.String()))
}

// NormalizeTags canonicalizes a tag list, collapsing duplicates and dropping
// empties. Order of first appearance is preserved.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized := NormalizeTag(tag)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
