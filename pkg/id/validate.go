package id

import "strings"

// Valid reports whether s is exactly 32 hex characters. Either case is accepted.
func Valid(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Normalize lowercases and trims an identifier so it compares equal to stored ids.
func Normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
