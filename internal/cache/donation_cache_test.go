package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mealbridge/rescue-service/internal/repository"
)

func TestTTLCappedByDonationExpiry(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	base := 5 * time.Minute

	longLived := &repository.Donation{ExpiryAt: now.Add(12 * time.Hour)}
	assert.Equal(t, base, ttlFor(longLived, now, base))

	almostGone := &repository.Donation{ExpiryAt: now.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, ttlFor(almostGone, now, base))

	expired := &repository.Donation{ExpiryAt: now.Add(-time.Minute)}
	assert.Equal(t, time.Duration(0), ttlFor(expired, now, base))
}

func TestDonationKeyShape(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "donation:abc-123", donationKey("abc-123"))
}
