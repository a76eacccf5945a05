package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/repository"
)

const taskColumns = `
        id, business_id, claim_id, donation_id, volunteer_id, task_type, status,
        decline_reason, scheduled_pickup_at, accepted_at, pickup_started_at,
        picked_up_at, completed_at, evidence, issues, created_at, updated_at`

type TaskRepo struct {
	db db.DB
}

func NewTaskRepo(db db.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) Create(ctx context.Context, tx db.Tx, t *repository.VolunteerTask) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO volunteer_tasks (`+taskColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    `, t.ID, t.BusinessID, t.ClaimID, t.DonationID, t.VolunteerID, t.Type, t.Status,
		t.DeclineReason, t.ScheduledPickupAt, t.AcceptedAt, t.PickupStartedAt,
		t.PickedUpAt, t.CompletedAt, t.Evidence, t.Issues, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert volunteer task: %w", err)
	}
	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id string) (*repository.VolunteerTask, error) {
	var t repository.VolunteerTask
	err := r.db.Get(ctx, &t, "SELECT"+taskColumns+" FROM volunteer_tasks WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "volunteer task %s does not exist", id)
		}
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.VolunteerTask, error) {
	var t repository.VolunteerTask
	err := tx.Get(ctx, &t, "SELECT"+taskColumns+" FROM volunteer_tasks WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "volunteer task %s does not exist", id)
		}
		return nil, err
	}
	return &t, nil
}

// CountActiveByClaim counts tasks still able to advance. Declined tasks do not
// occupy the slot so a replacement can be assigned.
func (r *TaskRepo) CountActiveByClaim(ctx context.Context, tx db.Tx, claimID string) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
        SELECT COUNT(*) FROM volunteer_tasks
        WHERE claim_id = $1 AND status NOT IN ($2, $3, $4, $5)
    `, claimID, repository.TaskDeclined, repository.TaskCompleted,
		repository.TaskCancelled, repository.TaskFailed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active tasks: %w", err)
	}
	return count, nil
}

// UpdateTransitionTx writes the whole mutable part of the row, conditioned on
// the status the engine read. A false return means a concurrent writer won.
func (r *TaskRepo) UpdateTransitionTx(ctx context.Context, tx db.Tx, t *repository.VolunteerTask, from repository.TaskStatus) (bool, error) {
	tag, err := tx.Exec(ctx, `
        UPDATE volunteer_tasks SET
            status = $3,
            decline_reason = $4,
            accepted_at = $5,
            pickup_started_at = $6,
            picked_up_at = $7,
            completed_at = $8,
            evidence = $9,
            issues = $10,
            updated_at = $11
        WHERE id = $1 AND status = $2
    `, t.ID, from, t.Status, t.DeclineReason, t.AcceptedAt, t.PickupStartedAt,
		t.PickedUpAt, t.CompletedAt, t.Evidence, t.Issues, t.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("update volunteer task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListOverdue reports non-terminal tasks past their scheduled pickup time.
// Read-only: the sweep never auto-transitions overdue tasks.
func (r *TaskRepo) ListOverdue(ctx context.Context, now time.Time) ([]*repository.VolunteerTask, error) {
	var tasks []*repository.VolunteerTask
	err := r.db.Select(ctx, &tasks, `
        SELECT`+taskColumns+`
        FROM volunteer_tasks
        WHERE scheduled_pickup_at < $1 AND status NOT IN ($2, $3, $4)
        ORDER BY scheduled_pickup_at ASC
    `, now, repository.TaskCompleted, repository.TaskCancelled, repository.TaskFailed)
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepo) ListByClaim(ctx context.Context, claimID string) ([]*repository.VolunteerTask, error) {
	var tasks []*repository.VolunteerTask
	err := r.db.Select(ctx, &tasks, `
        SELECT`+taskColumns+`
        FROM volunteer_tasks WHERE claim_id = $1 ORDER BY created_at ASC
    `, claimID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by claim: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM volunteer_tasks WHERE id = $1", id)
	return err
}

func (r *TaskRepo) DeleteByDonation(ctx context.Context, donationID string) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM volunteer_tasks WHERE donation_id = $1", donationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *TaskRepo) DeleteByVolunteer(ctx context.Context, volunteerID string) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM volunteer_tasks WHERE volunteer_id = $1", volunteerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *TaskRepo) DeleteByClaim(ctx context.Context, claimID string) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM volunteer_tasks WHERE claim_id = $1", claimID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
