// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// Normalize trims surrounding whitespace and lowercases s. Two inputs with the
// same normalized form are treated as the same lookup key.
//
// Example:
//
//	Normalize("  Alice ")
//	// Returns: "alice"
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DedupeBy removes elements whose key was already seen. Order is preserved
// and elements with an empty key are kept.
//
// Example:
//
//	DedupeBy([]string{"a", "b", "a"}, func(s string) string { return s })
//	// Returns: []string{"a", "b"}
func DedupeBy[T any](values []T, key func(T) string) []T {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]T, 0, len(values))

	for _, v := range values {
		k := key(v)
		if k == "" {
			result = append(result, v)
			continue
		}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			result = append(result, v)
		}
	}

	return result
}

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	return DedupeBy(trimmed, func(s string) string { return s })
}
