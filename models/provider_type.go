// Package models contains the persistence entities for the messaging core
package models

// ProviderType identifies one of the integrated messaging vendors
type ProviderType string

const (
	ProviderMeta    ProviderType = "meta"
	ProviderTwilio  ProviderType = "twilio"
	ProviderGupshup ProviderType = "gupshup"
)

// AllProviderTypes lists every vendor the platform can be configured with
var AllProviderTypes = []ProviderType{ProviderMeta, ProviderTwilio, ProviderGupshup}

// IsValidProviderType reports whether s names a known vendor
func IsValidProviderType(s string) bool {
	switch ProviderType(s) {
	case ProviderMeta, ProviderTwilio, ProviderGupshup:
		return true
	}
	return false
}
