package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mealbridge/rescue-service/internal/repository"
)

func TestHoursUntilExpiry(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d := &repository.Donation{ExpiryAt: now.Add(5*time.Hour + 59*time.Minute)}

	assert.Equal(t, 5, HoursUntilExpiry(d, now))
	assert.Equal(t, 0, HoursUntilExpiry(d, now.Add(6*time.Hour)))
	assert.Equal(t, 0, HoursUntilExpiry(d, now.Add(48*time.Hour)), "never negative")

	// Monotonically non-increasing as time passes.
	prev := HoursUntilExpiry(d, now)
	for step := time.Hour; step <= 8*time.Hour; step += time.Hour {
		cur := HoursUntilExpiry(d, now.Add(step))
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestUrgencyBands(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		left time.Duration
		want Urgency
	}{
		{30 * time.Minute, UrgencyUrgent},
		{2 * time.Hour, UrgencyUrgent},
		{3 * time.Hour, UrgencyHigh},
		{6 * time.Hour, UrgencyHigh},
		{10 * time.Hour, UrgencyMedium},
		{12 * time.Hour, UrgencyMedium},
		{13 * time.Hour, UrgencyLow},
		{72 * time.Hour, UrgencyLow},
	}
	for _, tt := range tests {
		d := &repository.Donation{ExpiryAt: now.Add(tt.left)}
		assert.Equal(t, tt.want, UrgencyOf(d, now), "%s left", tt.left)
	}
}

func TestOverdueAndDelay(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	live := &repository.VolunteerTask{
		Status:            repository.TaskEnRoutePickup,
		ScheduledPickupAt: now.Add(-45 * time.Minute),
	}
	assert.True(t, IsOverdue(live, now))
	assert.Equal(t, 45, DelayMinutes(live, now))

	onTime := &repository.VolunteerTask{
		Status:            repository.TaskAccepted,
		ScheduledPickupAt: now.Add(time.Hour),
	}
	assert.False(t, IsOverdue(onTime, now))
	assert.Equal(t, 0, DelayMinutes(onTime, now))

	done := &repository.VolunteerTask{
		Status:            repository.TaskCompleted,
		ScheduledPickupAt: now.Add(-3 * time.Hour),
	}
	assert.False(t, IsOverdue(done, now), "terminal tasks are never overdue")
}

func TestBusinessIDShape(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	id := NewBusinessID(PrefixDonation, now)
	assert.Regexp(t, `^DON-20260310-[0-9A-F]{6}$`, id)

	other := NewBusinessID(PrefixDonation, now)
	assert.NotEqual(t, id, other)
}
