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

const donationColumns = `
        id, business_id, donor_id, description, quantity, unit,
        expiry_at, pickup_window_start, pickup_window_end, pickup_address,
        latitude, longitude, status, claimed_by, created_at, updated_at`

type DonationRepo struct {
	db db.DB
}

func NewDonationRepo(db db.DB) *DonationRepo {
	return &DonationRepo{db: db}
}

func (r *DonationRepo) Create(ctx context.Context, tx db.Tx, d *repository.Donation) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO donations (`+donationColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `, d.ID, d.BusinessID, d.DonorID, d.Description, d.Quantity, d.Unit,
		d.ExpiryAt, d.PickupWindowStart, d.PickupWindowEnd, d.PickupAddress,
		d.Latitude, d.Longitude, d.Status, d.ClaimedBy, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (r *DonationRepo) GetByID(ctx context.Context, id string) (*repository.Donation, error) {
	var d repository.Donation
	err := r.db.Get(ctx, &d, "SELECT"+donationColumns+" FROM donations WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "donation %s does not exist", id)
		}
		return nil, err
	}
	return &d, nil
}

func (r *DonationRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Donation, error) {
	var d repository.Donation
	err := tx.Get(ctx, &d, "SELECT"+donationColumns+" FROM donations WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "donation %s does not exist", id)
		}
		return nil, err
	}
	return &d, nil
}

// UpdateStatusTx is a conditional write: the row moves from -> to only when it
// is still in the from status. A false return means another writer won.
func (r *DonationRepo) UpdateStatusTx(ctx context.Context, tx db.Tx, id string, from, to repository.DonationStatus, now time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
        UPDATE donations SET status = $3, updated_at = $4
        WHERE id = $1 AND status = $2
    `, id, from, to, now)
	if err != nil {
		return false, fmt.Errorf("update donation status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetClaimTx updates status and claimed_by together, conditioned on the
// current status. claimedBy nil clears the hold.
func (r *DonationRepo) SetClaimTx(ctx context.Context, tx db.Tx, id string, from, to repository.DonationStatus, claimedBy *string, now time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
        UPDATE donations SET status = $3, claimed_by = $4, updated_at = $5
        WHERE id = $1 AND status = $2
    `, id, from, to, claimedBy, now)
	if err != nil {
		return false, fmt.Errorf("update donation claim hold: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DonationRepo) ListAvailable(ctx context.Context, now time.Time, limit int) ([]*repository.Donation, error) {
	query := `
        SELECT` + donationColumns + `
        FROM donations
        WHERE status = $1 AND expiry_at > $2
        ORDER BY expiry_at ASC
    `
	args := []interface{}{repository.DonationAvailable, now}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	var donations []*repository.Donation
	if err := r.db.Select(ctx, &donations, query, args...); err != nil {
		return nil, fmt.Errorf("list available donations: %w", err)
	}
	return donations, nil
}

// ListExpiring returns donations whose expiry deadline has passed but whose
// status has not caught up yet. The sweep resolves them.
func (r *DonationRepo) ListExpiring(ctx context.Context, now time.Time) ([]*repository.Donation, error) {
	var donations []*repository.Donation
	err := r.db.Select(ctx, &donations, `
        SELECT`+donationColumns+`
        FROM donations
        WHERE status IN ($1, $2) AND expiry_at <= $3
        ORDER BY expiry_at ASC
    `, repository.DonationAvailable, repository.DonationClaimed, now)
	if err != nil {
		return nil, fmt.Errorf("list expiring donations: %w", err)
	}
	return donations, nil
}

func (r *DonationRepo) ListByDonor(ctx context.Context, donorID string) ([]*repository.Donation, error) {
	var donations []*repository.Donation
	err := r.db.Select(ctx, &donations, `
        SELECT`+donationColumns+`
        FROM donations WHERE donor_id = $1 ORDER BY created_at DESC
    `, donorID)
	if err != nil {
		return nil, fmt.Errorf("list donations by donor: %w", err)
	}
	return donations, nil
}

// UpdateCoordinates backfills the geocoded pickup location. Runs outside the
// creation transaction because geocoding is asynchronous.
func (r *DonationRepo) UpdateCoordinates(ctx context.Context, id string, lat, lng float64, now time.Time) error {
	_, err := r.db.Exec(ctx, `
        UPDATE donations SET latitude = $2, longitude = $3, updated_at = $4
        WHERE id = $1
    `, id, lat, lng, now)
	if err != nil {
		return fmt.Errorf("update donation coordinates: %w", err)
	}
	return nil
}

// ReleaseByNGO frees every donation still held by the NGO: the hold clears and
// the row goes back to available so another NGO can claim it. Finished rows
// (delivered, expired, cancelled) keep their history.
func (r *DonationRepo) ReleaseByNGO(ctx context.Context, ngoID string, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE donations SET status = $2, claimed_by = NULL, updated_at = $3
        WHERE claimed_by = $1 AND status NOT IN ($4, $5, $6)
    `, ngoID, repository.DonationAvailable, now,
		repository.DonationDelivered, repository.DonationExpired, repository.DonationCancelled)
	if err != nil {
		return 0, fmt.Errorf("release donations held by ngo: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *DonationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM donations WHERE id = $1", id)
	return err
}
