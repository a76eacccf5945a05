package rating

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/metrics"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type FeedbackStore interface {
	GetByID(ctx context.Context, id string) (*repository.Feedback, error)
	UpdateModeration(ctx context.Context, id string, from, to repository.ModerationStatus, now time.Time) (bool, error)
	ListPublishedByReviewee(ctx context.Context, revieweeID string) ([]*repository.Feedback, error)
}

type ActorStore interface {
	GetByID(ctx context.Context, id string) (*repository.Actor, error)
	AddRating(ctx context.Context, actorID string, rating int, now time.Time) error
	SetRating(ctx context.Context, actorID string, average float64, total int, now time.Time) error
}

// Aggregator owns feedback moderation and the reviewee rating aggregates.
// Publication folds the rating in incrementally; Recompute rebuilds the
// aggregates from published feedback and is the source of truth.
type Aggregator struct {
	feedback FeedbackStore
	actors   ActorStore
	logger   *zap.Logger
	now      func() time.Time
}

type Config struct {
	Feedback FeedbackStore
	Actors   ActorStore
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewAggregator(cfg Config) *Aggregator {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Aggregator{
		feedback: cfg.Feedback,
		actors:   cfg.Actors,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Publish moves pending feedback to published and folds the rating into the
// reviewee's running average. Publishing twice is rejected, so a rating is
// never counted double.
func (a *Aggregator) Publish(ctx context.Context, feedbackID string) (*repository.Feedback, error) {
	now := a.now()
	f, err := a.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	ok, err := a.feedback.UpdateModeration(ctx, feedbackID,
		repository.ModerationPending, repository.ModerationPublished, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Newf(apperrors.KindInvalidTransition,
			"feedback %s is %s, only pending feedback publishes", feedbackID, f.Moderation)
	}
	if err := a.actors.AddRating(ctx, f.RevieweeID, f.Rating, now); err != nil {
		// The published row is in place; the next recompute repairs the average.
		a.logger.Error("fold published rating failed",
			zap.String("feedback_id", feedbackID),
			zap.String("reviewee_id", f.RevieweeID), zap.Error(err))
	}
	metrics.FeedbackPublishedTotal.Inc()

	f.Moderation = repository.ModerationPublished
	f.PublishedAt = &now
	return f, nil
}

// Hide retracts published feedback from public view. Hidden ratings keep
// counting until a recompute runs; edits never retro-adjust incrementally.
func (a *Aggregator) Hide(ctx context.Context, feedbackID string) error {
	return a.moderate(ctx, feedbackID, repository.ModerationPublished, repository.ModerationHidden)
}

// Remove takes moderated-away feedback out entirely, from pending or hidden.
func (a *Aggregator) Remove(ctx context.Context, feedbackID string) error {
	f, err := a.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		return err
	}
	switch f.Moderation {
	case repository.ModerationPending, repository.ModerationHidden, repository.ModerationPublished:
		return a.moderate(ctx, feedbackID, f.Moderation, repository.ModerationRemoved)
	default:
		return apperrors.Newf(apperrors.KindInvalidTransition,
			"feedback %s is already removed", feedbackID)
	}
}

func (a *Aggregator) moderate(ctx context.Context, id string, from, to repository.ModerationStatus) error {
	ok, err := a.feedback.UpdateModeration(ctx, id, from, to, a.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Newf(apperrors.KindInvalidTransition,
			"feedback %s cannot move %s -> %s", id, from, to)
	}
	return nil
}

// Recompute rebuilds the reviewee's aggregates from currently published
// feedback and returns the fresh values.
func (a *Aggregator) Recompute(ctx context.Context, revieweeID string) (average float64, total int, err error) {
	if _, err := a.actors.GetByID(ctx, revieweeID); err != nil {
		return 0, 0, err
	}
	published, err := a.feedback.ListPublishedByReviewee(ctx, revieweeID)
	if err != nil {
		return 0, 0, err
	}
	sum := 0
	for _, f := range published {
		sum += f.Rating
	}
	total = len(published)
	if total > 0 {
		average = float64(sum) / float64(total)
	}
	if err := a.actors.SetRating(ctx, revieweeID, average, total, a.now()); err != nil {
		return 0, 0, err
	}
	return average, total, nil
}
