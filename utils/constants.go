package utils

import (
	"time"
)

// Dispatch and vendor call constants
const (
	// DefaultVendorTimeout bounds every outbound vendor HTTP call so a hung
	// vendor cannot starve the dispatch pool
	DefaultVendorTimeout = 15 * time.Second

	// DefaultHealthCheckTimeout bounds a single provider health probe
	DefaultHealthCheckTimeout = 10 * time.Second

	// DefaultMonthlyQuota applies when a country mapping carries no quota
	DefaultMonthlyQuota = 1000

	// QuotaCounterTTL keeps Redis monthly counters alive slightly past the
	// month boundary so late webhook updates still find them
	QuotaCounterTTL = 35 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// CountryOther tags tenants whose country is unknown or unsupported
const CountryOther = "other"

// SupportedCountries is the set of countries with a dedicated provider
// mapping; anything else routes through the default provider
var SupportedCountries = map[string]bool{
	"india":     true,
	"uae":       true,
	"singapore": true,
	"indonesia": true,
	"brazil":    true,
	"mexico":    true,
}

// MessageUnitCostPaise gives the per-message cost in paise by country,
// used for usage cost accounting on successful sends
// UnitCostPaise returns the per-message cost for a country, defaulting to
// the "other" rate when the country has no dedicated entry
func UnitCostPaise(country string) int64 {
	if cost, ok := MessageUnitCostPaise[country]; ok {
		return cost
	}
	return MessageUnitCostPaise[CountryOther]
}

var MessageUnitCostPaise = map[string]int64{
	"india":     75,
	"uae":       240,
	"singapore": 260,
	"indonesia": 180,
	"brazil":    310,
	"mexico":    290,
	CountryOther: 200,
}
