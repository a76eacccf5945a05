package workflow

import (
	"context"
	"time"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/repository"
)

// Internal propagation moves parents monotonically forward along the happy
// path. A parent that already advanced past the target is left alone; a
// terminal parent is never touched.

var donationRank = map[repository.DonationStatus]int{
	repository.DonationAvailable:       0,
	repository.DonationClaimed:         1,
	repository.DonationPickupScheduled: 2,
	repository.DonationPickedUp:        3,
	repository.DonationDelivered:       4,
}

var claimRank = map[repository.ClaimStatus]int{
	repository.ClaimPending:           0,
	repository.ClaimApproved:          1,
	repository.ClaimVolunteerAssigned: 2,
	repository.ClaimPickupScheduled:   3,
	repository.ClaimInProgress:        4,
	repository.ClaimCompleted:         5,
}

// advanceDonationTx moves the donation forward along the happy path. When the
// row newly reaches delivered it returns the donor so the caller can credit
// the completed donation after the commit.
func (e *Engine) advanceDonationTx(ctx context.Context, tx db.Tx, id string, to repository.DonationStatus, now time.Time) (string, error) {
	d, err := e.donations.GetByIDTx(ctx, tx, id)
	if err != nil {
		return "", err
	}
	if DonationTerminal(d.Status) {
		return "", nil
	}
	cur, okCur := donationRank[d.Status]
	target, okTarget := donationRank[to]
	if !okCur || !okTarget || cur >= target {
		return "", nil
	}
	ok, err := e.donations.UpdateStatusTx(ctx, tx, id, d.Status, to, now)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperrors.Newf(apperrors.KindConflict,
			"donation %s was modified concurrently", id)
	}
	if err := e.emitTx(ctx, tx, EntityDonation, id, string(d.Status), string(to), now); err != nil {
		return "", err
	}
	if to == repository.DonationDelivered {
		return d.DonorID, nil
	}
	return "", nil
}

func (e *Engine) advanceClaimTx(ctx context.Context, tx db.Tx, id string, to repository.ClaimStatus, now time.Time) error {
	c, err := e.claims.GetByIDTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if ClaimTerminal(c.Status) {
		return nil
	}
	cur, okCur := claimRank[c.Status]
	target, okTarget := claimRank[to]
	if !okCur || !okTarget || cur >= target {
		return nil
	}
	ok, err := e.claims.UpdateStatusTx(ctx, tx, id, c.Status, to, now)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Newf(apperrors.KindConflict,
			"claim %s was modified concurrently", id)
	}
	return e.emitTx(ctx, tx, EntityClaim, id, string(c.Status), string(to), now)
}

// lockEventByTask locks the latest pickup event bound to the task, nil when
// none exists yet.
func (e *Engine) lockEventByTask(ctx context.Context, tx db.Tx, taskID string) (*repository.PickupEvent, error) {
	ev, err := e.events.GetByTaskID(ctx, taskID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return e.events.GetByIDTx(ctx, tx, ev.ID)
}

// advanceEventTx moves a pickup event forward to mirror the task. Stamps
// actual_start_at on leaving scheduled and actual_end_at on completion, first
// write wins.
func (e *Engine) advanceEventTx(ctx context.Context, tx db.Tx, ev *repository.PickupEvent, to repository.PickupEventStatus, now time.Time) error {
	if ev == nil || EventTerminal(ev.Status) {
		return nil
	}
	cur, okCur := eventRank[ev.Status]
	target, okTarget := eventRank[to]
	if !okCur || !okTarget || cur >= target {
		return nil
	}
	from := ev.Status
	ev.Status = to
	if ev.ActualStartAt == nil && to != repository.EventScheduled {
		ts := now
		ev.ActualStartAt = &ts
	}
	if ev.ActualEndAt == nil && eventReached(to, repository.EventDelivered) {
		ts := now
		ev.ActualEndAt = &ts
	}
	ev.UpdatedAt = now

	ok, err := e.events.UpdateTransitionTx(ctx, tx, ev, from)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Newf(apperrors.KindConflict,
			"pickup event %s was modified concurrently", ev.ID)
	}
	return e.emitTx(ctx, tx, EntityPickupEvent, ev.ID, string(from), string(to), now)
}

// terminateEventTx mirrors a task failure or cancellation onto the live event.
func (e *Engine) terminateEventTx(ctx context.Context, tx db.Tx, ev *repository.PickupEvent, to repository.PickupEventStatus, now time.Time) error {
	if ev == nil || EventTerminal(ev.Status) {
		return nil
	}
	from := ev.Status
	ev.Status = to
	if ev.ActualEndAt == nil {
		ts := now
		ev.ActualEndAt = &ts
	}
	ev.UpdatedAt = now

	ok, err := e.events.UpdateTransitionTx(ctx, tx, ev, from)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Newf(apperrors.KindConflict,
			"pickup event %s was modified concurrently", ev.ID)
	}
	return e.emitTx(ctx, tx, EntityPickupEvent, ev.ID, string(from), string(to), now)
}
