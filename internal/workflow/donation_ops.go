package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/metrics"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type CreateDonationInput struct {
	DonorID           string    `json:"donor_id"`
	Description       string    `json:"description"`
	Quantity          float64   `json:"quantity"`
	Unit              string    `json:"unit"`
	ExpiryAt          time.Time `json:"expiry_at"`
	PickupWindowStart time.Time `json:"pickup_window_start"`
	PickupWindowEnd   time.Time `json:"pickup_window_end"`
	PickupAddress     string    `json:"pickup_address"`
}

func (in *CreateDonationInput) validate(now time.Time) error {
	if strings.TrimSpace(in.Description) == "" {
		return apperrors.New(apperrors.KindValidation, "description is required")
	}
	if in.Quantity <= 0 {
		return apperrors.New(apperrors.KindValidation, "quantity must be positive")
	}
	if strings.TrimSpace(in.PickupAddress) == "" {
		return apperrors.New(apperrors.KindValidation, "pickup address is required")
	}
	if !in.ExpiryAt.After(now) {
		return apperrors.New(apperrors.KindValidation, "expiry must be in the future")
	}
	if !in.PickupWindowEnd.After(in.PickupWindowStart) {
		return apperrors.New(apperrors.KindValidation, "pickup window end must follow its start")
	}
	return nil
}

// CreateDonation registers a new donation in the available status. The pickup
// address is geocoded asynchronously so a slow provider never blocks intake.
func (e *Engine) CreateDonation(ctx context.Context, in CreateDonationInput) (*repository.Donation, error) {
	now := e.now()
	if err := in.validate(now); err != nil {
		return nil, err
	}
	if _, err := e.actors.Get(ctx, repository.ActorDonor, in.DonorID); err != nil {
		return nil, err
	}

	d := &repository.Donation{
		ID:                uuid.NewString(),
		BusinessID:        NewBusinessID(PrefixDonation, now),
		DonorID:           in.DonorID,
		Description:       in.Description,
		Quantity:          in.Quantity,
		Unit:              in.Unit,
		ExpiryAt:          in.ExpiryAt.UTC(),
		PickupWindowStart: in.PickupWindowStart.UTC(),
		PickupWindowEnd:   in.PickupWindowEnd.UTC(),
		PickupAddress:     in.PickupAddress,
		Status:            repository.DonationAvailable,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := db.WithTx(ctx, e.db, func(tx db.Tx) error {
		if err := e.donations.Create(ctx, tx, d); err != nil {
			return err
		}
		return e.emitTx(ctx, tx, EntityDonation, d.ID, "", string(d.Status), now)
	})
	if err != nil {
		return nil, err
	}
	metrics.DonationsCreatedTotal.Inc()

	if e.geocoder != nil {
		go e.geocodeDonation(d.ID, d.PickupAddress)
	}
	return d, nil
}

func (e *Engine) geocodeDonation(id, address string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lat, lng, err := e.geocoder.Geocode(ctx, address)
	if err != nil {
		e.logger.Warn("geocode donation address failed",
			zap.String("donation_id", id), zap.Error(err))
		return
	}
	if err := e.donations.UpdateCoordinates(ctx, id, lat, lng, e.now()); err != nil {
		e.logger.Warn("store donation coordinates failed",
			zap.String("donation_id", id), zap.Error(err))
	}
}

func (e *Engine) GetDonation(ctx context.Context, id string) (*DonationView, error) {
	d, err := e.donations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewDonationView(d, e.now()), nil
}

func (e *Engine) ListAvailableDonations(ctx context.Context, limit int) ([]*DonationView, error) {
	donations, err := e.donations.ListAvailable(ctx, e.now(), limit)
	if err != nil {
		return nil, err
	}
	now := e.now()
	views := make([]*DonationView, 0, len(donations))
	for _, d := range donations {
		views = append(views, NewDonationView(d, now))
	}
	return views, nil
}

func (e *Engine) ListDonationsByDonor(ctx context.Context, donorID string) ([]*DonationView, error) {
	donations, err := e.donations.ListByDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	views := make([]*DonationView, 0, len(donations))
	for _, d := range donations {
		views = append(views, NewDonationView(d, now))
	}
	return views, nil
}

// CancelDonation moves the donation to cancelled from any non-terminal status
// and releases a pending claim if one is waiting on it.
func (e *Engine) CancelDonation(ctx context.Context, id string) (*repository.Donation, error) {
	now := e.now()
	var out *repository.Donation

	err := db.WithTx(ctx, e.db, func(tx db.Tx) error {
		d, err := e.donations.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if DonationTerminal(d.Status) {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"donation %s is already %s", id, d.Status)
		}
		from := d.Status
		ok, err := e.donations.UpdateStatusTx(ctx, tx, id, from, repository.DonationCancelled, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Newf(apperrors.KindConflict,
				"donation %s was modified concurrently", id)
		}
		d.Status = repository.DonationCancelled
		d.UpdatedAt = now
		out = d
		return e.emitTx(ctx, tx, EntityDonation, id, string(from), string(repository.DonationCancelled), now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
