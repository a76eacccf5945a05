package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/metrics"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type CreateClaimInput struct {
	DonationID       string    `json:"donation_id"`
	NGOID            string    `json:"ngo_id"`
	IntendedUse      string    `json:"intended_use"`
	BeneficiaryCount int       `json:"beneficiary_count"`
	ProposedPickupAt time.Time `json:"proposed_pickup_at"`
}

func (in *CreateClaimInput) validate() error {
	if strings.TrimSpace(in.IntendedUse) == "" {
		return apperrors.New(apperrors.KindValidation, "intended use is required")
	}
	if in.BeneficiaryCount <= 0 {
		return apperrors.New(apperrors.KindValidation, "beneficiary count must be positive")
	}
	return nil
}

// CreateClaim registers an NGO's pending hold on a donation. The donation
// stays available until the donor approves; the single-active-claim rule
// blocks competing claims in the meantime.
func (e *Engine) CreateClaim(ctx context.Context, in CreateClaimInput) (*repository.Claim, error) {
	now := e.now()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := e.actors.Get(ctx, repository.ActorNGO, in.NGOID); err != nil {
		return nil, err
	}

	c := &repository.Claim{
		ID:               uuid.NewString(),
		BusinessID:       NewBusinessID(PrefixClaim, now),
		DonationID:       in.DonationID,
		NGOID:            in.NGOID,
		Status:           repository.ClaimPending,
		IntendedUse:      in.IntendedUse,
		BeneficiaryCount: in.BeneficiaryCount,
		ProposedPickupAt: in.ProposedPickupAt.UTC(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := db.WithTx(ctx, e.db, func(tx db.Tx) error {
		d, err := e.donations.GetByIDTx(ctx, tx, in.DonationID)
		if err != nil {
			return err
		}
		if !now.Before(d.ExpiryAt) {
			return apperrors.Newf(apperrors.KindExpiredEntity,
				"donation %s expired at %s", d.ID, d.ExpiryAt.Format(time.RFC3339))
		}
		if d.Status != repository.DonationAvailable {
			return apperrors.Newf(apperrors.KindConflict,
				"donation %s is %s, not available", d.ID, d.Status)
		}
		active, err := e.claims.CountActiveByDonation(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		if active > 0 {
			return apperrors.Newf(apperrors.KindConflict,
				"donation %s already has an active claim", d.ID)
		}

		// The pending hold never outlives the donation itself.
		c.ExpiresAt = now.Add(e.claimTTL).UTC()
		if c.ExpiresAt.After(d.ExpiryAt) {
			c.ExpiresAt = d.ExpiryAt
		}
		if err := e.claims.Create(ctx, tx, c); err != nil {
			return err
		}
		return e.emitTx(ctx, tx, EntityClaim, c.ID, "", string(c.Status), now)
	})
	if err != nil {
		return nil, err
	}
	metrics.ClaimsCreatedTotal.Inc()
	return c, nil
}

func (e *Engine) GetClaim(ctx context.Context, id string) (*repository.Claim, error) {
	return e.claims.GetByID(ctx, id)
}

func (e *Engine) ListClaimsByDonation(ctx context.Context, donationID string) ([]*repository.Claim, error) {
	return e.claims.ListByDonation(ctx, donationID)
}

func (e *Engine) ListClaimsByNGO(ctx context.Context, ngoID string) ([]*repository.Claim, error) {
	return e.claims.ListByNGO(ctx, ngoID)
}

// RespondToClaim records the donor's approve/reject decision. The decision is
// single-use: once decided_at is stamped every later call is rejected, so an
// approval racing a rejection can never both win.
func (e *Engine) RespondToClaim(ctx context.Context, claimID string, approve bool, message *string) (*repository.Claim, error) {
	now := e.now()
	var out *repository.Claim

	err := db.WithTx(ctx, e.db, func(tx db.Tx) error {
		c, err := e.claims.GetByIDTx(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if c.Status != repository.ClaimPending || c.DecidedAt != nil {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"claim %s already decided (%s)", claimID, c.Status)
		}

		to := repository.ClaimRejected
		if approve {
			to = repository.ClaimApproved

			d, err := e.donations.GetByIDTx(ctx, tx, c.DonationID)
			if err != nil {
				return err
			}
			if !now.Before(d.ExpiryAt) {
				return apperrors.Newf(apperrors.KindExpiredEntity,
					"donation %s expired at %s", d.ID, d.ExpiryAt.Format(time.RFC3339))
			}
			if d.Status != repository.DonationAvailable {
				return apperrors.Newf(apperrors.KindConflict,
					"donation %s is %s, not available", d.ID, d.Status)
			}
			ok, err := e.donations.SetClaimTx(ctx, tx, d.ID,
				repository.DonationAvailable, repository.DonationClaimed, &c.NGOID, now)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.Newf(apperrors.KindConflict,
					"donation %s was claimed concurrently", d.ID)
			}
			if err := e.emitTx(ctx, tx, EntityDonation, d.ID,
				string(repository.DonationAvailable), string(repository.DonationClaimed), now); err != nil {
				return err
			}
		}

		ok, err := e.claims.UpdateDecisionTx(ctx, tx, claimID, to, message, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"claim %s already decided", claimID)
		}
		c.Status = to
		c.DonorMessage = message
		c.DecidedAt = &now
		c.UpdatedAt = now
		out = c
		return e.emitTx(ctx, tx, EntityClaim, claimID, string(repository.ClaimPending), string(to), now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelClaim is the NGO withdrawing. If the claim still holds the donation
// in the claimed status, the hold is released back to available.
func (e *Engine) CancelClaim(ctx context.Context, claimID string) (*repository.Claim, error) {
	now := e.now()
	var out *repository.Claim

	err := db.WithTx(ctx, e.db, func(tx db.Tx) error {
		c, err := e.claims.GetByIDTx(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if ClaimTerminal(c.Status) {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"claim %s is already %s", claimID, c.Status)
		}
		from := c.Status
		ok, err := e.claims.UpdateStatusTx(ctx, tx, claimID, from, repository.ClaimCancelled, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Newf(apperrors.KindConflict,
				"claim %s was modified concurrently", claimID)
		}
		if err := e.emitTx(ctx, tx, EntityClaim, claimID, string(from), string(repository.ClaimCancelled), now); err != nil {
			return err
		}

		d, err := e.donations.GetByIDTx(ctx, tx, c.DonationID)
		if err != nil {
			return err
		}
		if d.Status == repository.DonationClaimed && d.ClaimedBy != nil && *d.ClaimedBy == c.NGOID {
			ok, err := e.donations.SetClaimTx(ctx, tx, d.ID,
				repository.DonationClaimed, repository.DonationAvailable, nil, now)
			if err != nil {
				return err
			}
			if ok {
				if err := e.emitTx(ctx, tx, EntityDonation, d.ID,
					string(repository.DonationClaimed), string(repository.DonationAvailable), now); err != nil {
					return err
				}
			}
		}

		c.Status = repository.ClaimCancelled
		c.UpdatedAt = now
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
