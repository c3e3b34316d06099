package utils

import (
	"slices"
	"strings"
)

// NormalizeScopes trims, de-duplicates and sorts scopes. The result is never nil.
func NormalizeScopes(scopes []string) []string {
	normalized := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		normalized = append(normalized, s)
	}
	slices.Sort(normalized)
	return slices.Compact(normalized)
}

// ContainsAll reports whether every scope in want is present in have.
func ContainsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
