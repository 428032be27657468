// Package utils provides utility functions for the application.
package utils

import (
	"strings"
)

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// NormalizePhoneNumber strips spaces, dashes and parentheses and ensures a
// leading plus so every store lookup and vendor call sees the same E.164 form
func NormalizePhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		switch r {
		case ' ', '-', '(', ')':
			continue
		default:
			b.WriteRune(r)
		}
	}
	p := b.String()
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "00") {
		p = "+" + p[2:]
	}
	if !strings.HasPrefix(p, "+") {
		p = "+" + p
	}
	return p
}

// IsValidPhoneNumber reports whether a normalized number looks like E.164:
// a plus followed by 8 to 15 digits
func IsValidPhoneNumber(phone string) bool {
	if len(phone) < 9 || len(phone) > 16 || phone[0] != '+' {
		return false
	}
	for _, r := range phone[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeCountry lowercases and trims a country name for map lookups
func NormalizeCountry(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
