// Package utils provides utility functions for the application.
package utils

import "unicode/utf8"

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// Truncate caps a string at max bytes, appending an ellipsis marker when
// cut. The cut never lands inside a multi-byte rune: the result is always
// valid UTF-8 when the input is.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	if max > 3 {
		cut = max - 3
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if max <= 3 {
		return s[:cut]
	}
	return s[:cut] + "..."
}
