package workflow

import (
	"context"
	"time"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type UpdatePickupEventInput struct {
	Status        repository.PickupEventStatus `json:"status"`
	FoodCondition *string                      `json:"food_condition,omitempty"`
	Signatures    []repository.Signature       `json:"signatures,omitempty"`
}

// UpdatePickupEventStatus is the granular on-site protocol. The event is the
// source of truth for the handover: once it reaches delivered or completed
// the task, claim and donation close out with it.
func (e *Engine) UpdatePickupEventStatus(ctx context.Context, eventID string, in UpdatePickupEventInput) (*repository.PickupEvent, error) {
	now := e.now()
	var out *repository.PickupEvent
	var completedVolunteer string
	var deliveredDonor string

	err := db.WithTx(ctx, e.db, func(tx db.Tx) error {
		ev, err := e.events.GetByIDTx(ctx, tx, eventID)
		if err != nil {
			return err
		}
		t, err := e.tasks.GetByIDTx(ctx, tx, ev.TaskID)
		if err != nil {
			return err
		}
		if ev.Status == in.Status {
			out = ev // repeated report
			return nil
		}
		if !CanEventTransition(t.Type, ev.Status, in.Status) {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"pickup event %s cannot move %s -> %s", eventID, ev.Status, in.Status)
		}

		from := ev.Status
		ev.Status = in.Status
		if in.FoodCondition != nil {
			ev.FoodCondition = in.FoodCondition
		}
		ev.Signatures = append(ev.Signatures, in.Signatures...)
		if ev.ActualStartAt == nil && in.Status != repository.EventScheduled {
			ts := now
			ev.ActualStartAt = &ts
		}
		if ev.ActualEndAt == nil &&
			(eventReached(in.Status, repository.EventDelivered) || EventTerminal(in.Status)) {
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
				"pickup event %s was modified concurrently", eventID)
		}
		if err := e.emitTx(ctx, tx, EntityPickupEvent, eventID, string(from), string(in.Status), now); err != nil {
			return err
		}
		donor, err := e.applyEventEffectsTx(ctx, tx, ev, t, now)
		if err != nil {
			return err
		}
		deliveredDonor = donor
		if t.Status == repository.TaskCompleted && t.CompletedAt != nil && t.CompletedAt.Equal(now) {
			completedVolunteer = t.VolunteerID
		}
		out = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completedVolunteer != "" {
		e.bumpCompleted(ctx, completedVolunteer)
	}
	if deliveredDonor != "" {
		e.bumpCompleted(ctx, deliveredDonor)
	}
	return out, nil
}

// applyEventEffectsTx syncs the owning task and parents with the event's
// milestone. The task row is already locked by the caller. Returns the donor
// to credit when the donation newly reached delivered.
func (e *Engine) applyEventEffectsTx(ctx context.Context, tx db.Tx, ev *repository.PickupEvent, t *repository.VolunteerTask, now time.Time) (string, error) {
	switch ev.Status {
	case repository.EventVolunteerEnRoute:
		if err := e.advanceTaskTx(ctx, tx, t, repository.TaskEnRoutePickup, now); err != nil {
			return "", err
		}
		return "", e.advanceClaimTx(ctx, tx, ev.ClaimID, repository.ClaimInProgress, now)

	case repository.EventVolunteerArrived, repository.EventFoodAssessment, repository.EventPickupInProgress:
		return "", e.advanceTaskTx(ctx, tx, t, repository.TaskAtPickup, now)

	case repository.EventPickupCompleted:
		if err := e.advanceTaskTx(ctx, tx, t, repository.TaskPickupCompleted, now); err != nil {
			return "", err
		}
		if err := e.advanceClaimTx(ctx, tx, ev.ClaimID, repository.ClaimInProgress, now); err != nil {
			return "", err
		}
		return e.advanceDonationTx(ctx, tx, ev.DonationID, repository.DonationPickedUp, now)

	case repository.EventDeliveryStarted:
		return "", e.advanceTaskTx(ctx, tx, t, repository.TaskEnRouteDelivery, now)

	case repository.EventDelivered, repository.EventCompleted:
		if err := e.advanceTaskTx(ctx, tx, t, repository.TaskCompleted, now); err != nil {
			return "", err
		}
		if err := e.advanceClaimTx(ctx, tx, ev.ClaimID, repository.ClaimCompleted, now); err != nil {
			return "", err
		}
		return e.advanceDonationTx(ctx, tx, ev.DonationID, repository.DonationDelivered, now)

	case repository.EventFailed:
		return "", e.failTaskTx(ctx, tx, t, repository.TaskFailed, now)
	case repository.EventCancelled:
		return "", e.failTaskTx(ctx, tx, t, repository.TaskCancelled, now)
	}
	return "", nil
}

// advanceTaskTx moves the locked task forward along the happy path, stamping
// milestones first write wins.
func (e *Engine) advanceTaskTx(ctx context.Context, tx db.Tx, t *repository.VolunteerTask, to repository.TaskStatus, now time.Time) error {
	if TaskTerminal(t.Status) {
		return nil
	}
	cur, okCur := taskRank[t.Status]
	target, okTarget := taskRank[to]
	if !okCur || !okTarget || cur >= target {
		return nil
	}
	from := t.Status
	t.Status = to
	t.UpdatedAt = now
	stampTask(t, to, now)

	ok, err := e.tasks.UpdateTransitionTx(ctx, tx, t, from)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Newf(apperrors.KindConflict,
			"task %s was modified concurrently", t.ID)
	}
	return e.emitTx(ctx, tx, EntityTask, t.ID, string(from), string(to), now)
}

func (e *Engine) failTaskTx(ctx context.Context, tx db.Tx, t *repository.VolunteerTask, to repository.TaskStatus, now time.Time) error {
	if TaskTerminal(t.Status) {
		return nil
	}
	from := t.Status
	t.Status = to
	t.UpdatedAt = now

	ok, err := e.tasks.UpdateTransitionTx(ctx, tx, t, from)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Newf(apperrors.KindConflict,
			"task %s was modified concurrently", t.ID)
	}
	return e.emitTx(ctx, tx, EntityTask, t.ID, string(from), string(to), now)
}

func (e *Engine) GetPickupEvent(ctx context.Context, id string) (*repository.PickupEvent, error) {
	return e.events.GetByID(ctx, id)
}

// AppendLocationSample records one GPS ping on a live event. The trail keeps
// at most the newest MaxLocationSamples entries.
func (e *Engine) AppendLocationSample(ctx context.Context, eventID string, lat, lng float64) (*repository.PickupEvent, error) {
	now := e.now()
	var out *repository.PickupEvent

	err := db.WithTx(ctx, e.db, func(tx db.Tx) error {
		ev, err := e.events.GetByIDTx(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if EventTerminal(ev.Status) {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"pickup event %s is %s, trail is closed", eventID, ev.Status)
		}
		ev.Locations = ev.Locations.Append(repository.LocationSample{
			Latitude:   lat,
			Longitude:  lng,
			RecordedAt: now,
		})
		ev.UpdatedAt = now
		if err := e.events.AppendLocationsTx(ctx, tx, eventID, ev.Locations, now); err != nil {
			return err
		}
		out = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
