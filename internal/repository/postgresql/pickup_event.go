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

const pickupEventColumns = `
        id, business_id, task_id, claim_id, donation_id, volunteer_id, status,
        location_samples, food_condition, signatures,
        actual_start_at, actual_end_at, created_at, updated_at`

type PickupEventRepo struct {
	db db.DB
}

func NewPickupEventRepo(db db.DB) *PickupEventRepo {
	return &PickupEventRepo{db: db}
}

func (r *PickupEventRepo) Create(ctx context.Context, tx db.Tx, e *repository.PickupEvent) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO pickup_events (`+pickupEventColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `, e.ID, e.BusinessID, e.TaskID, e.ClaimID, e.DonationID, e.VolunteerID, e.Status,
		e.Locations, e.FoodCondition, e.Signatures,
		e.ActualStartAt, e.ActualEndAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pickup event: %w", err)
	}
	return nil
}

func (r *PickupEventRepo) GetByID(ctx context.Context, id string) (*repository.PickupEvent, error) {
	var e repository.PickupEvent
	err := r.db.Get(ctx, &e, "SELECT"+pickupEventColumns+" FROM pickup_events WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "pickup event %s does not exist", id)
		}
		return nil, err
	}
	return &e, nil
}

func (r *PickupEventRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.PickupEvent, error) {
	var e repository.PickupEvent
	err := tx.Get(ctx, &e, "SELECT"+pickupEventColumns+" FROM pickup_events WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "pickup event %s does not exist", id)
		}
		return nil, err
	}
	return &e, nil
}

func (r *PickupEventRepo) GetByTaskID(ctx context.Context, taskID string) (*repository.PickupEvent, error) {
	var e repository.PickupEvent
	err := r.db.Get(ctx, &e, `
        SELECT`+pickupEventColumns+`
        FROM pickup_events WHERE task_id = $1
        ORDER BY created_at DESC LIMIT 1
    `, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "no pickup event for task %s", taskID)
		}
		return nil, err
	}
	return &e, nil
}

// UpdateTransitionTx writes the mutable part of the row, conditioned on the
// status the engine read.
func (r *PickupEventRepo) UpdateTransitionTx(ctx context.Context, tx db.Tx, e *repository.PickupEvent, from repository.PickupEventStatus) (bool, error) {
	tag, err := tx.Exec(ctx, `
        UPDATE pickup_events SET
            status = $3,
            location_samples = $4,
            food_condition = $5,
            signatures = $6,
            actual_start_at = $7,
            actual_end_at = $8,
            updated_at = $9
        WHERE id = $1 AND status = $2
    `, e.ID, from, e.Status, e.Locations, e.FoodCondition, e.Signatures,
		e.ActualStartAt, e.ActualEndAt, e.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("update pickup event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendLocationsTx replaces the location trail. Only the assigned volunteer's
// device writes here, so the row lock is the only serialization needed.
func (r *PickupEventRepo) AppendLocationsTx(ctx context.Context, tx db.Tx, id string, trail repository.LocationTrail, now time.Time) error {
	_, err := tx.Exec(ctx, `
        UPDATE pickup_events SET location_samples = $2, updated_at = $3
        WHERE id = $1
    `, id, trail, now)
	if err != nil {
		return fmt.Errorf("append location samples: %w", err)
	}
	return nil
}

func (r *PickupEventRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM pickup_events WHERE id = $1", id)
	return err
}

func (r *PickupEventRepo) DeleteByDonation(ctx context.Context, donationID string) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM pickup_events WHERE donation_id = $1", donationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PickupEventRepo) DeleteByVolunteer(ctx context.Context, volunteerID string) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM pickup_events WHERE volunteer_id = $1", volunteerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PickupEventRepo) DeleteByClaim(ctx context.Context, claimID string) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM pickup_events WHERE claim_id = $1", claimID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
