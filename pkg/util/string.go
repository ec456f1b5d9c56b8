package util

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most max runes, trimming trailing whitespace
// left behind by the cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:max]), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	})
}

// ErrorMessage reduces err to a message suitable for a response body.
func ErrorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// RecoveredMessage converts a value caught by recover() into a message.
func RecoveredMessage(v any) string {
	switch e := v.(type) {
	case error:
		return e.Error()
	case string:
		return e
	default:
		return "unexpected failure"
	}
}

// Unique returns items with duplicates removed, keeping the first occurrence.
func Unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
