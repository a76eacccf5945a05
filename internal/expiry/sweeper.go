package expiry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/metrics"
	"github.com/mealbridge/rescue-service/internal/repository"
	"github.com/mealbridge/rescue-service/internal/workflow"
)

type DonationStore interface {
	ListExpiring(ctx context.Context, now time.Time) ([]*repository.Donation, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Donation, error)
	UpdateStatusTx(ctx context.Context, tx db.Tx, id string, from, to repository.DonationStatus, now time.Time) (bool, error)
	SetClaimTx(ctx context.Context, tx db.Tx, id string, from, to repository.DonationStatus, claimedBy *string, now time.Time) (bool, error)
}

type ClaimStore interface {
	ListExpiredPending(ctx context.Context, now time.Time) ([]*repository.Claim, error)
	ListByDonation(ctx context.Context, donationID string) ([]*repository.Claim, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Claim, error)
	CountActiveByDonation(ctx context.Context, tx db.Tx, donationID string) (int, error)
	UpdateStatusTx(ctx context.Context, tx db.Tx, id string, from, to repository.ClaimStatus, now time.Time) (bool, error)
}

type OutboxStore interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
}

// Sweeper resolves time-driven transitions: donations past their expiry
// deadline and pending claims the donor never answered. Every write is
// conditional, so a sweep racing a user action simply loses and moves on.
type Sweeper struct {
	db        db.DB
	donations DonationStore
	claims    ClaimStore
	outbox    OutboxStore
	logger    *zap.Logger
	interval  time.Duration
	now       func() time.Time
}

type Config struct {
	DB        db.DB
	Donations DonationStore
	Claims    ClaimStore
	Outbox    OutboxStore
	Logger    *zap.Logger
	Interval  time.Duration
	Now       func() time.Time
}

const defaultInterval = time.Minute

func NewSweeper(cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Sweeper{
		db:        cfg.DB,
		donations: cfg.Donations,
		claims:    cfg.Claims,
		outbox:    cfg.Outbox,
		logger:    cfg.Logger,
		interval:  cfg.Interval,
		now:       cfg.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce processes one batch of expired donations and claims. Failures are
// logged per entity and never abort the rest of the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := s.now()

	donations, err := s.donations.ListExpiring(ctx, now)
	if err != nil {
		s.logger.Error("list expiring donations failed", zap.Error(err))
	}
	for _, d := range donations {
		if err := s.expireDonation(ctx, d.ID, now); err != nil {
			s.logger.Error("expire donation failed",
				zap.String("donation_id", d.ID), zap.Error(err))
		}
	}

	claims, err := s.claims.ListExpiredPending(ctx, now)
	if err != nil {
		s.logger.Error("list expired pending claims failed", zap.Error(err))
	}
	for _, c := range claims {
		if err := s.expireClaim(ctx, c.ID, now); err != nil {
			s.logger.Error("expire claim failed",
				zap.String("claim_id", c.ID), zap.Error(err))
		}
	}
}

// expireDonation marks one overdue donation expired and cascades one level:
// attached non-terminal claims expire with it. Tasks already in flight are
// left untouched.
func (s *Sweeper) expireDonation(ctx context.Context, id string, now time.Time) error {
	return db.WithTx(ctx, s.db, func(tx db.Tx) error {
		d, err := s.donations.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		// Re-check under the lock: a user action may have won the race.
		if workflow.DonationTerminal(d.Status) || now.Before(d.ExpiryAt) {
			return nil
		}
		ok, err := s.donations.UpdateStatusTx(ctx, tx, id, d.Status, repository.DonationExpired, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil // concurrent writer won, next sweep re-evaluates
		}
		metrics.ExpirationsTotal.WithLabelValues(workflow.EntityDonation).Inc()
		if err := s.emit(ctx, tx, workflow.EntityDonation, id, string(d.Status), string(repository.DonationExpired), now); err != nil {
			return err
		}

		claims, err := s.claims.ListByDonation(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range claims {
			if workflow.ClaimTerminal(c.Status) {
				continue
			}
			locked, err := s.claims.GetByIDTx(ctx, tx, c.ID)
			if err != nil {
				return err
			}
			if workflow.ClaimTerminal(locked.Status) {
				continue
			}
			ok, err := s.claims.UpdateStatusTx(ctx, tx, c.ID, locked.Status, repository.ClaimExpired, now)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			metrics.ExpirationsTotal.WithLabelValues(workflow.EntityClaim).Inc()
			if err := s.emit(ctx, tx, workflow.EntityClaim, c.ID, string(locked.Status), string(repository.ClaimExpired), now); err != nil {
				return err
			}
		}
		return nil
	})
}

// expireClaim expires one pending claim the donor never decided on. The
// donation hold is released only when this claim's NGO still owns it and no
// other active claim remains.
func (s *Sweeper) expireClaim(ctx context.Context, id string, now time.Time) error {
	return db.WithTx(ctx, s.db, func(tx db.Tx) error {
		c, err := s.claims.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Status != repository.ClaimPending || now.Before(c.ExpiresAt) {
			return nil
		}
		ok, err := s.claims.UpdateStatusTx(ctx, tx, id, repository.ClaimPending, repository.ClaimExpired, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		metrics.ExpirationsTotal.WithLabelValues(workflow.EntityClaim).Inc()
		if err := s.emit(ctx, tx, workflow.EntityClaim, id, string(repository.ClaimPending), string(repository.ClaimExpired), now); err != nil {
			return err
		}

		d, err := s.donations.GetByIDTx(ctx, tx, c.DonationID)
		if err != nil {
			return err
		}
		if d.Status != repository.DonationClaimed || d.ClaimedBy == nil || *d.ClaimedBy != c.NGOID {
			return nil
		}
		active, err := s.claims.CountActiveByDonation(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		if active > 0 {
			return nil
		}
		ok, err = s.donations.SetClaimTx(ctx, tx, d.ID,
			repository.DonationClaimed, repository.DonationAvailable, nil, now)
		if err != nil {
			return err
		}
		if ok {
			return s.emit(ctx, tx, workflow.EntityDonation, d.ID,
				string(repository.DonationClaimed), string(repository.DonationAvailable), now)
		}
		return nil
	})
}

func (s *Sweeper) emit(ctx context.Context, tx db.Tx, entityType, entityID, oldStatus, newStatus string, ts time.Time) error {
	task, err := repository.NewTransitionTask(entityType, entityID, oldStatus, newStatus, ts)
	if err != nil {
		return err
	}
	return s.outbox.CreateTx(ctx, tx, task)
}
