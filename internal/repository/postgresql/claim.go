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

const claimColumns = `
        id, business_id, donation_id, ngo_id, status, expires_at,
        intended_use, beneficiary_count, proposed_pickup_at,
        donor_message, decided_at, volunteer_id, volunteer_role,
        created_at, updated_at`

type ClaimRepo struct {
	db db.DB
}

func NewClaimRepo(db db.DB) *ClaimRepo {
	return &ClaimRepo{db: db}
}

func (r *ClaimRepo) Create(ctx context.Context, tx db.Tx, c *repository.Claim) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO claims (`+claimColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `, c.ID, c.BusinessID, c.DonationID, c.NGOID, c.Status, c.ExpiresAt,
		c.IntendedUse, c.BeneficiaryCount, c.ProposedPickupAt,
		c.DonorMessage, c.DecidedAt, c.VolunteerID, c.VolunteerRole,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (r *ClaimRepo) GetByID(ctx context.Context, id string) (*repository.Claim, error) {
	var c repository.Claim
	err := r.db.Get(ctx, &c, "SELECT"+claimColumns+" FROM claims WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "claim %s does not exist", id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *ClaimRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Claim, error) {
	var c repository.Claim
	err := tx.Get(ctx, &c, "SELECT"+claimColumns+" FROM claims WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "claim %s does not exist", id)
		}
		return nil, err
	}
	return &c, nil
}

// CountActiveByDonation counts claims still holding the single-active-claim
// slot: everything outside rejected/cancelled/expired.
func (r *ClaimRepo) CountActiveByDonation(ctx context.Context, tx db.Tx, donationID string) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
        SELECT COUNT(*) FROM claims
        WHERE donation_id = $1 AND status NOT IN ($2, $3, $4)
    `, donationID, repository.ClaimRejected, repository.ClaimCancelled, repository.ClaimExpired).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active claims: %w", err)
	}
	return count, nil
}

func (r *ClaimRepo) UpdateStatusTx(ctx context.Context, tx db.Tx, id string, from, to repository.ClaimStatus, now time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
        UPDATE claims SET status = $3, updated_at = $4
        WHERE id = $1 AND status = $2
    `, id, from, to, now)
	if err != nil {
		return false, fmt.Errorf("update claim status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateDecisionTx records the donor's single-use approve/reject decision.
// The decided_at guard makes a second decision a no-op at the storage level.
func (r *ClaimRepo) UpdateDecisionTx(ctx context.Context, tx db.Tx, id string, to repository.ClaimStatus, message *string, now time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
        UPDATE claims SET status = $2, donor_message = $3, decided_at = $4, updated_at = $4
        WHERE id = $1 AND status = $5 AND decided_at IS NULL
    `, id, to, message, now, repository.ClaimPending)
	if err != nil {
		return false, fmt.Errorf("record claim decision: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ClaimRepo) SetVolunteerTx(ctx context.Context, tx db.Tx, id string, from, to repository.ClaimStatus, volunteerID, role string, now time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
        UPDATE claims SET status = $3, volunteer_id = $4, volunteer_role = $5, updated_at = $6
        WHERE id = $1 AND status = $2
    `, id, from, to, volunteerID, role, now)
	if err != nil {
		return false, fmt.Errorf("assign claim volunteer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ClaimRepo) ListExpiredPending(ctx context.Context, now time.Time) ([]*repository.Claim, error) {
	var claims []*repository.Claim
	err := r.db.Select(ctx, &claims, `
        SELECT`+claimColumns+`
        FROM claims
        WHERE status = $1 AND expires_at <= $2
        ORDER BY expires_at ASC
    `, repository.ClaimPending, now)
	if err != nil {
		return nil, fmt.Errorf("list expired pending claims: %w", err)
	}
	return claims, nil
}

func (r *ClaimRepo) ListByDonation(ctx context.Context, donationID string) ([]*repository.Claim, error) {
	var claims []*repository.Claim
	err := r.db.Select(ctx, &claims, `
        SELECT`+claimColumns+`
        FROM claims WHERE donation_id = $1 ORDER BY created_at ASC
    `, donationID)
	if err != nil {
		return nil, fmt.Errorf("list claims by donation: %w", err)
	}
	return claims, nil
}

func (r *ClaimRepo) ListByNGO(ctx context.Context, ngoID string) ([]*repository.Claim, error) {
	var claims []*repository.Claim
	err := r.db.Select(ctx, &claims, `
        SELECT`+claimColumns+`
        FROM claims WHERE ngo_id = $1 ORDER BY created_at DESC
    `, ngoID)
	if err != nil {
		return nil, fmt.Errorf("list claims by ngo: %w", err)
	}
	return claims, nil
}

// ReleaseVolunteer detaches the volunteer from every claim still in flight and
// rewinds those claims to approved so the NGO can assign someone else.
func (r *ClaimRepo) ReleaseVolunteer(ctx context.Context, volunteerID string, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE claims SET status = $2, volunteer_id = NULL, volunteer_role = NULL, updated_at = $3
        WHERE volunteer_id = $1 AND status IN ($4, $5, $6)
    `, volunteerID, repository.ClaimApproved, now,
		repository.ClaimVolunteerAssigned, repository.ClaimPickupScheduled, repository.ClaimInProgress)
	if err != nil {
		return 0, fmt.Errorf("release claims assigned to volunteer: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ClaimRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM claims WHERE id = $1", id)
	return err
}

func (r *ClaimRepo) DeleteByDonation(ctx context.Context, donationID string) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM claims WHERE donation_id = $1", donationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *ClaimRepo) DeleteByNGO(ctx context.Context, ngoID string) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM claims WHERE ngo_id = $1", ngoID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
