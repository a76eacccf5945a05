package cascade

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/metrics"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type DonationStore interface {
	ListByDonor(ctx context.Context, donorID string) ([]*repository.Donation, error)
	ReleaseByNGO(ctx context.Context, ngoID string, now time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
}

type ClaimStore interface {
	ListByNGO(ctx context.Context, ngoID string) ([]*repository.Claim, error)
	ReleaseVolunteer(ctx context.Context, volunteerID string, now time.Time) (int64, error)
	DeleteByDonation(ctx context.Context, donationID string) (int64, error)
	DeleteByNGO(ctx context.Context, ngoID string) (int64, error)
}

type TaskStore interface {
	DeleteByDonation(ctx context.Context, donationID string) (int64, error)
	DeleteByVolunteer(ctx context.Context, volunteerID string) (int64, error)
	DeleteByClaim(ctx context.Context, claimID string) (int64, error)
}

type PickupEventStore interface {
	DeleteByDonation(ctx context.Context, donationID string) (int64, error)
	DeleteByVolunteer(ctx context.Context, volunteerID string) (int64, error)
	DeleteByClaim(ctx context.Context, claimID string) (int64, error)
}

type FeedbackStore interface {
	DeleteByActor(ctx context.Context, actorID string) (int64, error)
}

type ActorStore interface {
	GetByID(ctx context.Context, id string) (*repository.Actor, error)
	Delete(ctx context.Context, id string) error
}

// StepResult records one deletion step of a cascade, in execution order.
type StepResult struct {
	Step    string `json:"step"`
	Deleted int64  `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// Report is returned for every cascade, successful or not, so the caller can
// see exactly which dependents were cleaned up.
type Report struct {
	ActorID string       `json:"actor_id"`
	Steps   []StepResult `json:"steps"`
	Failed  bool         `json:"failed"`
}

func (r *Report) record(step string, deleted int64, err error) {
	res := StepResult{Step: step, Deleted: deleted}
	if err != nil {
		res.Error = err.Error()
		r.Failed = true
		metrics.CascadeStepFailuresTotal.WithLabelValues(step).Inc()
	}
	r.Steps = append(r.Steps, res)
}

// Manager deletes an actor and everything hanging off it, deepest dependents
// first. The cascade is best effort: a failed step is recorded and the rest
// still runs, but the actor row survives so a retry can finish the job.
type Manager struct {
	donations DonationStore
	claims    ClaimStore
	tasks     TaskStore
	events    PickupEventStore
	feedback  FeedbackStore
	actors    ActorStore
	logger    *zap.Logger
	now       func() time.Time
}

type Config struct {
	Donations DonationStore
	Claims    ClaimStore
	Tasks     TaskStore
	Events    PickupEventStore
	Feedback  FeedbackStore
	Actors    ActorStore
	Logger    *zap.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{
		donations: cfg.Donations,
		claims:    cfg.Claims,
		tasks:     cfg.Tasks,
		events:    cfg.Events,
		feedback:  cfg.Feedback,
		actors:    cfg.Actors,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// DeleteActor removes the actor and its dependent records. On partial failure
// the report lists the completed steps and the error is a cascade failure
// carrying the first problem encountered.
func (m *Manager) DeleteActor(ctx context.Context, actorID string) (*Report, error) {
	actor, err := m.actors.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	report := &Report{ActorID: actorID}
	switch actor.Type {
	case repository.ActorDonor:
		m.cascadeDonor(ctx, actorID, report)
	case repository.ActorNGO:
		m.cascadeNGO(ctx, actorID, report)
	case repository.ActorVolunteer:
		m.cascadeVolunteer(ctx, actorID, report)
	case repository.ActorBeneficiary:
		// Beneficiaries only own feedback.
	}

	deleted, err := m.feedback.DeleteByActor(ctx, actorID)
	report.record("feedback", deleted, err)

	if report.Failed {
		m.logger.Error("actor cascade incomplete, actor row kept",
			zap.String("actor_id", actorID), zap.Any("steps", report.Steps))
		return report, apperrors.Newf(apperrors.KindCascadeFailure,
			"cascade for actor %s incomplete: %d steps recorded", actorID, len(report.Steps))
	}

	if err := m.actors.Delete(ctx, actorID); err != nil {
		report.record("actor", 0, err)
		return report, apperrors.Wrap(apperrors.KindCascadeFailure, "delete actor row", err)
	}
	report.record("actor", 1, nil)
	metrics.CascadeDeletionsTotal.Inc()
	m.logger.Info("actor cascade complete",
		zap.String("actor_id", actorID), zap.Int("steps", len(report.Steps)))
	return report, nil
}

func (m *Manager) cascadeDonor(ctx context.Context, donorID string, report *Report) {
	donations, err := m.donations.ListByDonor(ctx, donorID)
	if err != nil {
		report.record("list_donations", 0, err)
		return
	}
	for _, d := range donations {
		deleted, err := m.events.DeleteByDonation(ctx, d.ID)
		report.record("pickup_events", deleted, err)
		deleted, err = m.tasks.DeleteByDonation(ctx, d.ID)
		report.record("volunteer_tasks", deleted, err)
		deleted, err = m.claims.DeleteByDonation(ctx, d.ID)
		report.record("claims", deleted, err)
		if err := m.donations.Delete(ctx, d.ID); err != nil {
			report.record("donation", 0, err)
		} else {
			report.record("donation", 1, nil)
		}
	}
}

func (m *Manager) cascadeNGO(ctx context.Context, ngoID string, report *Report) {
	claims, err := m.claims.ListByNGO(ctx, ngoID)
	if err != nil {
		report.record("list_claims", 0, err)
		return
	}
	for _, c := range claims {
		deleted, err := m.events.DeleteByClaim(ctx, c.ID)
		report.record("pickup_events", deleted, err)
		deleted, err = m.tasks.DeleteByClaim(ctx, c.ID)
		report.record("volunteer_tasks", deleted, err)
	}
	deleted, err := m.claims.DeleteByNGO(ctx, ngoID)
	report.record("claims", deleted, err)

	// Donations the NGO still held go back on the board for other NGOs.
	released, err := m.donations.ReleaseByNGO(ctx, ngoID, m.now())
	report.record("donation_holds", released, err)
}

func (m *Manager) cascadeVolunteer(ctx context.Context, volunteerID string, report *Report) {
	deleted, err := m.events.DeleteByVolunteer(ctx, volunteerID)
	report.record("pickup_events", deleted, err)
	deleted, err = m.tasks.DeleteByVolunteer(ctx, volunteerID)
	report.record("volunteer_tasks", deleted, err)

	// Claims the volunteer was working rewind to approved so the NGO can
	// re-assign them.
	released, err := m.claims.ReleaseVolunteer(ctx, volunteerID, m.now())
	report.record("claim_assignments", released, err)
}
