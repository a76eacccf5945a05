package workflow

import (
	"time"

	"github.com/mealbridge/rescue-service/internal/repository"
)

type Urgency string

const (
	UrgencyUrgent Urgency = "urgent"
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// HoursUntilExpiry is the whole number of hours left before the donation
// expires, floored, never negative. Monotonically non-increasing as the
// clock advances.
func HoursUntilExpiry(d *repository.Donation, now time.Time) int {
	left := d.ExpiryAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Hour)
}

func UrgencyOf(d *repository.Donation, now time.Time) Urgency {
	left := d.ExpiryAt.Sub(now)
	switch {
	case left <= 2*time.Hour:
		return UrgencyUrgent
	case left <= 6*time.Hour:
		return UrgencyHigh
	case left <= 12*time.Hour:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func AgeInHours(createdAt, now time.Time) int {
	age := now.Sub(createdAt)
	if age <= 0 {
		return 0
	}
	return int(age / time.Hour)
}

// IsOverdue reports whether a live task is past its scheduled pickup time.
// Terminal tasks are never overdue.
func IsOverdue(t *repository.VolunteerTask, now time.Time) bool {
	return !TaskTerminal(t.Status) && now.After(t.ScheduledPickupAt)
}

func DelayMinutes(t *repository.VolunteerTask, now time.Time) int {
	if !IsOverdue(t, now) {
		return 0
	}
	return int(now.Sub(t.ScheduledPickupAt) / time.Minute)
}

// DonationView decorates the stored row with time-derived fields for reads.
type DonationView struct {
	*repository.Donation
	HoursUntilExpiry int     `json:"hours_until_expiry"`
	Urgency          Urgency `json:"urgency"`
	AgeInHours       int     `json:"age_in_hours"`
}

func NewDonationView(d *repository.Donation, now time.Time) *DonationView {
	return &DonationView{
		Donation:         d,
		HoursUntilExpiry: HoursUntilExpiry(d, now),
		Urgency:          UrgencyOf(d, now),
		AgeInHours:       AgeInHours(d.CreatedAt, now),
	}
}

type TaskView struct {
	*repository.VolunteerTask
	Overdue      bool `json:"overdue"`
	DelayMinutes int  `json:"delay_minutes"`
}

func NewTaskView(t *repository.VolunteerTask, now time.Time) *TaskView {
	return &TaskView{
		VolunteerTask: t,
		Overdue:       IsOverdue(t, now),
		DelayMinutes:  DelayMinutes(t, now),
	}
}
