package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/metrics"
	"github.com/mealbridge/rescue-service/internal/repository"
)

// DonationRepository is the slice of the donation store the engine drives.
type DonationRepository interface {
	Create(ctx context.Context, tx db.Tx, d *repository.Donation) error
	GetByID(ctx context.Context, id string) (*repository.Donation, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Donation, error)
	UpdateStatusTx(ctx context.Context, tx db.Tx, id string, from, to repository.DonationStatus, now time.Time) (bool, error)
	SetClaimTx(ctx context.Context, tx db.Tx, id string, from, to repository.DonationStatus, claimedBy *string, now time.Time) (bool, error)
	UpdateCoordinates(ctx context.Context, id string, lat, lng float64, now time.Time) error
	ListAvailable(ctx context.Context, now time.Time, limit int) ([]*repository.Donation, error)
	ListByDonor(ctx context.Context, donorID string) ([]*repository.Donation, error)
}

type ClaimRepository interface {
	Create(ctx context.Context, tx db.Tx, c *repository.Claim) error
	GetByID(ctx context.Context, id string) (*repository.Claim, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Claim, error)
	CountActiveByDonation(ctx context.Context, tx db.Tx, donationID string) (int, error)
	UpdateStatusTx(ctx context.Context, tx db.Tx, id string, from, to repository.ClaimStatus, now time.Time) (bool, error)
	UpdateDecisionTx(ctx context.Context, tx db.Tx, id string, to repository.ClaimStatus, message *string, now time.Time) (bool, error)
	SetVolunteerTx(ctx context.Context, tx db.Tx, id string, from, to repository.ClaimStatus, volunteerID, role string, now time.Time) (bool, error)
	ListByDonation(ctx context.Context, donationID string) ([]*repository.Claim, error)
	ListByNGO(ctx context.Context, ngoID string) ([]*repository.Claim, error)
}

type TaskRepository interface {
	Create(ctx context.Context, tx db.Tx, t *repository.VolunteerTask) error
	GetByID(ctx context.Context, id string) (*repository.VolunteerTask, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.VolunteerTask, error)
	CountActiveByClaim(ctx context.Context, tx db.Tx, claimID string) (int, error)
	UpdateTransitionTx(ctx context.Context, tx db.Tx, t *repository.VolunteerTask, from repository.TaskStatus) (bool, error)
	ListByClaim(ctx context.Context, claimID string) ([]*repository.VolunteerTask, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*repository.VolunteerTask, error)
}

type PickupEventRepository interface {
	Create(ctx context.Context, tx db.Tx, e *repository.PickupEvent) error
	GetByID(ctx context.Context, id string) (*repository.PickupEvent, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.PickupEvent, error)
	GetByTaskID(ctx context.Context, taskID string) (*repository.PickupEvent, error)
	UpdateTransitionTx(ctx context.Context, tx db.Tx, e *repository.PickupEvent, from repository.PickupEventStatus) (bool, error)
	AppendLocationsTx(ctx context.Context, tx db.Tx, id string, trail repository.LocationTrail, now time.Time) error
}

type FeedbackRepository interface {
	Create(ctx context.Context, f *repository.Feedback) error
	GetByID(ctx context.Context, id string) (*repository.Feedback, error)
	SetResponse(ctx context.Context, id, response string, now time.Time) (bool, error)
}

type ActorRepository interface {
	Create(ctx context.Context, a *repository.Actor, password string) error
	GetByID(ctx context.Context, id string) (*repository.Actor, error)
	Get(ctx context.Context, actorType repository.ActorType, id string) (*repository.Actor, error)
	IncrementCompleted(ctx context.Context, actorID string, now time.Time) error
	UpdateCoordinates(ctx context.Context, actorID string, lat, lng float64, now time.Time) error
}

// OutboxRepository records transition events in the same transaction as the
// transition itself.
type OutboxRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lng float64, err error)
}

// Engine owns every state transition in the rescue workflow. All writes go
// through conditional updates: the row must still hold the status the engine
// read under FOR UPDATE, otherwise the operation reports a conflict instead
// of retrying.
type Engine struct {
	db        db.DB
	donations DonationRepository
	claims    ClaimRepository
	tasks     TaskRepository
	events    PickupEventRepository
	feedback  FeedbackRepository
	actors    ActorRepository
	outbox    OutboxRepository
	geocoder  Geocoder
	logger    *zap.Logger
	now       func() time.Time

	claimTTL time.Duration
}

type Config struct {
	DB        db.DB
	Donations DonationRepository
	Claims    ClaimRepository
	Tasks     TaskRepository
	Events    PickupEventRepository
	Feedback  FeedbackRepository
	Actors    ActorRepository
	Outbox    OutboxRepository
	Geocoder  Geocoder
	Logger    *zap.Logger

	// ClaimTTL bounds how long a pending claim may wait for the donor's
	// decision. Zero means the 24h default.
	ClaimTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

const defaultClaimTTL = 24 * time.Hour

func NewEngine(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = defaultClaimTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{
		db:        cfg.DB,
		donations: cfg.Donations,
		claims:    cfg.Claims,
		tasks:     cfg.Tasks,
		events:    cfg.Events,
		feedback:  cfg.Feedback,
		actors:    cfg.Actors,
		outbox:    cfg.Outbox,
		geocoder:  cfg.Geocoder,
		logger:    cfg.Logger,
		now:       cfg.Now,
		claimTTL:  cfg.ClaimTTL,
	}
}

// emitTx queues a transition event inside the caller's transaction. An empty
// oldStatus marks entity creation.
func (e *Engine) emitTx(ctx context.Context, tx db.Tx, entityType, entityID, oldStatus, newStatus string, ts time.Time) error {
	task, err := repository.NewTransitionTask(entityType, entityID, oldStatus, newStatus, ts)
	if err != nil {
		return err
	}
	if err := e.outbox.CreateTx(ctx, tx, task); err != nil {
		return err
	}
	metrics.TransitionsTotal.WithLabelValues(entityType).Inc()
	return nil
}

// bumpCompleted is fire-and-forget bookkeeping after a commit; a miss here is
// repaired by the rating recompute.
func (e *Engine) bumpCompleted(ctx context.Context, actorID string) {
	if err := e.actors.IncrementCompleted(ctx, actorID, e.now()); err != nil {
		e.logger.Warn("increment completed count failed",
			zap.String("actor_id", actorID), zap.Error(err))
	}
}
