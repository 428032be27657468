package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageStatusRankIsMonotonic(t *testing.T) {
	ordered := []MessageStatus{
		MessageStatusPending,
		MessageStatusSent,
		MessageStatusDelivered,
		MessageStatusRead,
		MessageStatusFailed,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank(),
			"%s must outrank %s", ordered[i], ordered[i-1])
	}

	// Unknown states rank below everything so they never advance a message
	assert.Equal(t, -1, MessageStatus("bogus").Rank())
}

func TestIsValidMessageType(t *testing.T) {
	for _, s := range []string{"template", "text", "media", "interactive"} {
		assert.True(t, IsValidMessageType(s), s)
	}
	assert.False(t, IsValidMessageType("carrier-pigeon"))
	assert.False(t, IsValidMessageType(""))
}

func TestQuotaExhausted(t *testing.T) {
	assert.False(t, (&UsageRecord{QuotaUsed: 5, QuotaLimit: 10}).QuotaExhausted())
	assert.True(t, (&UsageRecord{QuotaUsed: 10, QuotaLimit: 10}).QuotaExhausted())
	assert.True(t, (&UsageRecord{QuotaUsed: 11, QuotaLimit: 10}).QuotaExhausted())
	// Zero limit means unlimited
	assert.False(t, (&UsageRecord{QuotaUsed: 999, QuotaLimit: 0}).QuotaExhausted())
}

func TestIsValidProviderType(t *testing.T) {
	for _, p := range AllProviderTypes {
		assert.True(t, IsValidProviderType(string(p)), string(p))
	}
	assert.False(t, IsValidProviderType("smtp"))
}
