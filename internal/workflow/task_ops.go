package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type AssignVolunteerInput struct {
	ClaimID           string              `json:"claim_id"`
	VolunteerID       string              `json:"volunteer_id"`
	TaskType          repository.TaskType `json:"task_type"`
	ScheduledPickupAt time.Time           `json:"scheduled_pickup_at"`
}

// AssignVolunteer creates a volunteer task for an approved claim. A claim
// whose previous task declined or failed can be re-assigned once no active
// task remains.
func (e *Engine) AssignVolunteer(ctx context.Context, in AssignVolunteerInput) (*repository.VolunteerTask, error) {
	now := e.now()
	if in.TaskType != repository.TaskPickupDelivery && in.TaskType != repository.TaskPickupOnly {
		return nil, apperrors.Newf(apperrors.KindValidation, "unknown task type %q", in.TaskType)
	}
	if _, err := e.actors.Get(ctx, repository.ActorVolunteer, in.VolunteerID); err != nil {
		return nil, err
	}

	t := &repository.VolunteerTask{
		ID:                uuid.NewString(),
		BusinessID:        NewBusinessID(PrefixTask, now),
		ClaimID:           in.ClaimID,
		VolunteerID:       in.VolunteerID,
		Type:              in.TaskType,
		Status:            repository.TaskAssigned,
		ScheduledPickupAt: in.ScheduledPickupAt.UTC(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := db.WithTx(ctx, e.db, func(tx db.Tx) error {
		c, err := e.claims.GetByIDTx(ctx, tx, in.ClaimID)
		if err != nil {
			return err
		}
		switch c.Status {
		case repository.ClaimApproved:
		case repository.ClaimVolunteerAssigned:
			active, err := e.tasks.CountActiveByClaim(ctx, tx, c.ID)
			if err != nil {
				return err
			}
			if active > 0 {
				return apperrors.Newf(apperrors.KindConflict,
					"claim %s already has an active task", c.ID)
			}
		default:
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"claim %s is %s, volunteers attach to approved claims", c.ID, c.Status)
		}

		t.DonationID = c.DonationID
		ok, err := e.claims.SetVolunteerTx(ctx, tx, c.ID, c.Status,
			repository.ClaimVolunteerAssigned, in.VolunteerID, string(in.TaskType), now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Newf(apperrors.KindConflict,
				"claim %s was modified concurrently", c.ID)
		}
		if c.Status != repository.ClaimVolunteerAssigned {
			if err := e.emitTx(ctx, tx, EntityClaim, c.ID,
				string(c.Status), string(repository.ClaimVolunteerAssigned), now); err != nil {
				return err
			}
		}
		if err := e.tasks.Create(ctx, tx, t); err != nil {
			return err
		}
		return e.emitTx(ctx, tx, EntityTask, t.ID, "", string(t.Status), now)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) GetTask(ctx context.Context, id string) (*TaskView, error) {
	t, err := e.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewTaskView(t, e.now()), nil
}

func (e *Engine) ListTasksByClaim(ctx context.Context, claimID string) ([]*TaskView, error) {
	tasks, err := e.tasks.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	views := make([]*TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, NewTaskView(t, now))
	}
	return views, nil
}

type UpdateTaskInput struct {
	Status        repository.TaskStatus    `json:"status"`
	DeclineReason *string                  `json:"decline_reason,omitempty"`
	Evidence      []repository.EvidenceRef `json:"evidence,omitempty"`
	Issues        []repository.IssueReport `json:"issues,omitempty"`
}

// UpdateTaskStatus is the volunteer's field report. Timestamps are first
// write wins: repeating a report never moves an already recorded time.
// Parent entities advance in the same transaction.
func (e *Engine) UpdateTaskStatus(ctx context.Context, taskID string, in UpdateTaskInput) (*repository.VolunteerTask, error) {
	now := e.now()
	var out *repository.VolunteerTask
	var deliveredDonor string

	err := db.WithTx(ctx, e.db, func(tx db.Tx) error {
		t, err := e.tasks.GetByIDTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.Status == in.Status {
			out = t // repeated report, nothing to change
			return nil
		}
		if !CanTaskTransition(t.Type, t.Status, in.Status) {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"task %s cannot move %s -> %s", taskID, t.Status, in.Status)
		}
		if in.Status == repository.TaskDeclined &&
			(in.DeclineReason == nil || strings.TrimSpace(*in.DeclineReason) == "") {
			return apperrors.New(apperrors.KindValidation, "declining a task requires a reason")
		}

		from := t.Status
		t.Status = in.Status
		t.UpdatedAt = now
		if in.DeclineReason != nil {
			t.DeclineReason = in.DeclineReason
		}
		t.Evidence = append(t.Evidence, in.Evidence...)
		t.Issues = append(t.Issues, in.Issues...)
		stampTask(t, in.Status, now)

		ok, err := e.tasks.UpdateTransitionTx(ctx, tx, t, from)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Newf(apperrors.KindConflict,
				"task %s was modified concurrently", taskID)
		}
		if err := e.emitTx(ctx, tx, EntityTask, taskID, string(from), string(in.Status), now); err != nil {
			return err
		}
		donor, err := e.applyTaskEffectsTx(ctx, tx, t, now)
		if err != nil {
			return err
		}
		deliveredDonor = donor
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Status == repository.TaskCompleted && out.CompletedAt != nil && out.CompletedAt.Equal(now) {
		e.bumpCompleted(ctx, out.VolunteerID)
	}
	if deliveredDonor != "" {
		e.bumpCompleted(ctx, deliveredDonor)
	}
	return out, nil
}

// stampTask records milestone timestamps, first write wins.
func stampTask(t *repository.VolunteerTask, to repository.TaskStatus, now time.Time) {
	stamp := func(field **time.Time) {
		if *field == nil {
			ts := now
			*field = &ts
		}
	}
	switch to {
	case repository.TaskAccepted:
		stamp(&t.AcceptedAt)
	case repository.TaskEnRoutePickup:
		stamp(&t.PickupStartedAt)
	case repository.TaskPickupCompleted:
		stamp(&t.PickedUpAt)
	case repository.TaskCompleted:
		stamp(&t.CompletedAt)
	}
}

// applyTaskEffectsTx advances the bound pickup event and the parent claim and
// donation to mirror the task's progress. Returns the donor to credit when
// the donation newly reached delivered.
func (e *Engine) applyTaskEffectsTx(ctx context.Context, tx db.Tx, t *repository.VolunteerTask, now time.Time) (string, error) {
	switch t.Status {
	case repository.TaskAccepted:
		ev := &repository.PickupEvent{
			ID:          uuid.NewString(),
			BusinessID:  NewBusinessID(PrefixPickupEvent, now),
			TaskID:      t.ID,
			ClaimID:     t.ClaimID,
			DonationID:  t.DonationID,
			VolunteerID: t.VolunteerID,
			Status:      repository.EventScheduled,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.events.Create(ctx, tx, ev); err != nil {
			return "", err
		}
		if err := e.emitTx(ctx, tx, EntityPickupEvent, ev.ID, "", string(ev.Status), now); err != nil {
			return "", err
		}
		if err := e.advanceClaimTx(ctx, tx, t.ClaimID, repository.ClaimPickupScheduled, now); err != nil {
			return "", err
		}
		return e.advanceDonationTx(ctx, tx, t.DonationID, repository.DonationPickupScheduled, now)

	case repository.TaskDeclined:
		return "", nil

	case repository.TaskEnRoutePickup:
		ev, err := e.lockEventByTask(ctx, tx, t.ID)
		if err != nil {
			return "", err
		}
		if err := e.advanceEventTx(ctx, tx, ev, repository.EventVolunteerEnRoute, now); err != nil {
			return "", err
		}
		return "", e.advanceClaimTx(ctx, tx, t.ClaimID, repository.ClaimInProgress, now)

	case repository.TaskAtPickup:
		ev, err := e.lockEventByTask(ctx, tx, t.ID)
		if err != nil {
			return "", err
		}
		return "", e.advanceEventTx(ctx, tx, ev, repository.EventVolunteerArrived, now)

	case repository.TaskPickupCompleted:
		ev, err := e.lockEventByTask(ctx, tx, t.ID)
		if err != nil {
			return "", err
		}
		if err := e.advanceEventTx(ctx, tx, ev, repository.EventPickupCompleted, now); err != nil {
			return "", err
		}
		if err := e.advanceClaimTx(ctx, tx, t.ClaimID, repository.ClaimInProgress, now); err != nil {
			return "", err
		}
		return e.advanceDonationTx(ctx, tx, t.DonationID, repository.DonationPickedUp, now)

	case repository.TaskEnRouteDelivery:
		ev, err := e.lockEventByTask(ctx, tx, t.ID)
		if err != nil {
			return "", err
		}
		return "", e.advanceEventTx(ctx, tx, ev, repository.EventDeliveryStarted, now)

	case repository.TaskCompleted:
		ev, err := e.lockEventByTask(ctx, tx, t.ID)
		if err != nil {
			return "", err
		}
		if err := e.advanceEventTx(ctx, tx, ev, repository.EventCompleted, now); err != nil {
			return "", err
		}
		if err := e.advanceClaimTx(ctx, tx, t.ClaimID, repository.ClaimCompleted, now); err != nil {
			return "", err
		}
		return e.advanceDonationTx(ctx, tx, t.DonationID, repository.DonationDelivered, now)

	case repository.TaskCancelled, repository.TaskFailed:
		ev, err := e.lockEventByTask(ctx, tx, t.ID)
		if err != nil {
			return "", err
		}
		to := repository.EventCancelled
		if t.Status == repository.TaskFailed {
			to = repository.EventFailed
		}
		return "", e.terminateEventTx(ctx, tx, ev, to, now)
	}
	return "", nil
}

// CancelTask is an operator or NGO pulling the task back.
func (e *Engine) CancelTask(ctx context.Context, taskID string) (*repository.VolunteerTask, error) {
	return e.UpdateTaskStatus(ctx, taskID, UpdateTaskInput{Status: repository.TaskCancelled})
}

func (e *Engine) ListOverdueTasks(ctx context.Context) ([]*TaskView, error) {
	now := e.now()
	tasks, err := e.tasks.ListOverdue(ctx, now)
	if err != nil {
		return nil, err
	}
	views := make([]*TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, NewTaskView(t, now))
	}
	return views, nil
}
