package rating

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type memFeedback struct {
	rows map[string]*repository.Feedback
}

func (m *memFeedback) GetByID(_ context.Context, id string) (*repository.Feedback, error) {
	f, ok := m.rows[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "feedback %s does not exist", id)
	}
	cp := *f
	return &cp, nil
}

func (m *memFeedback) UpdateModeration(_ context.Context, id string, from, to repository.ModerationStatus, now time.Time) (bool, error) {
	f, ok := m.rows[id]
	if !ok || f.Moderation != from {
		return false, nil
	}
	f.Moderation = to
	if to == repository.ModerationPublished && f.PublishedAt == nil {
		ts := now
		f.PublishedAt = &ts
	}
	return true, nil
}

func (m *memFeedback) ListPublishedByReviewee(_ context.Context, revieweeID string) ([]*repository.Feedback, error) {
	var out []*repository.Feedback
	for _, f := range m.rows {
		if f.RevieweeID == revieweeID && f.Moderation == repository.ModerationPublished {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memActors struct {
	rows map[string]*repository.Actor
}

func (m *memActors) GetByID(_ context.Context, id string) (*repository.Actor, error) {
	a, ok := m.rows[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "actor %s does not exist", id)
	}
	cp := *a
	return &cp, nil
}

func (m *memActors) AddRating(_ context.Context, actorID string, rating int, now time.Time) error {
	a := m.rows[actorID]
	a.AverageRating = (a.AverageRating*float64(a.TotalRatings) + float64(rating)) / float64(a.TotalRatings+1)
	a.TotalRatings++
	a.UpdatedAt = now
	return nil
}

func (m *memActors) SetRating(_ context.Context, actorID string, average float64, total int, now time.Time) error {
	a := m.rows[actorID]
	a.AverageRating = average
	a.TotalRatings = total
	a.UpdatedAt = now
	return nil
}

func newAggEnv() (*Aggregator, *memFeedback, *memActors) {
	fb := &memFeedback{rows: map[string]*repository.Feedback{}}
	actors := &memActors{rows: map[string]*repository.Actor{
		"donor-1": {ID: "donor-1", Type: repository.ActorDonor},
	}}
	agg := NewAggregator(Config{
		Feedback: fb,
		Actors:   actors,
		Now:      func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	})
	return agg, fb, actors
}

func pendingFeedback(id string, rating int) *repository.Feedback {
	return &repository.Feedback{
		ID: id, AuthorID: "ngo-1", RevieweeID: "donor-1",
		Rating: rating, Moderation: repository.ModerationPending,
	}
}

func TestPublishFoldsRatingIn(t *testing.T) {
	t.Parallel()
	agg, fb, actors := newAggEnv()
	fb.rows["f1"] = pendingFeedback("f1", 4)
	fb.rows["f2"] = pendingFeedback("f2", 2)

	published, err := agg.Publish(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, repository.ModerationPublished, published.Moderation)
	require.NotNil(t, published.PublishedAt)

	_, err = agg.Publish(context.Background(), "f2")
	require.NoError(t, err)

	donor := actors.rows["donor-1"]
	assert.Equal(t, 2, donor.TotalRatings)
	assert.InDelta(t, 3.0, donor.AverageRating, 1e-9)
}

func TestPublishIsSingleUse(t *testing.T) {
	t.Parallel()
	agg, fb, actors := newAggEnv()
	fb.rows["f1"] = pendingFeedback("f1", 5)

	_, err := agg.Publish(context.Background(), "f1")
	require.NoError(t, err)

	_, err = agg.Publish(context.Background(), "f1")
	assert.True(t, apperrors.IsInvalidTransition(err), "got %v", err)
	assert.Equal(t, 1, actors.rows["donor-1"].TotalRatings, "rating counted once")
}

func TestHideOnlyFromPublished(t *testing.T) {
	t.Parallel()
	agg, fb, _ := newAggEnv()
	fb.rows["f1"] = pendingFeedback("f1", 3)

	err := agg.Hide(context.Background(), "f1")
	assert.True(t, apperrors.IsInvalidTransition(err), "pending feedback cannot hide")

	_, err = agg.Publish(context.Background(), "f1")
	require.NoError(t, err)
	require.NoError(t, agg.Hide(context.Background(), "f1"))
	assert.Equal(t, repository.ModerationHidden, fb.rows["f1"].Moderation)
}

func TestRecomputeIsSourceOfTruth(t *testing.T) {
	t.Parallel()
	agg, fb, actors := newAggEnv()
	fb.rows["f1"] = pendingFeedback("f1", 5)
	fb.rows["f2"] = pendingFeedback("f2", 1)

	_, err := agg.Publish(context.Background(), "f1")
	require.NoError(t, err)
	_, err = agg.Publish(context.Background(), "f2")
	require.NoError(t, err)

	// Hiding does not retro-adjust the incremental counters...
	require.NoError(t, agg.Hide(context.Background(), "f2"))
	assert.Equal(t, 2, actors.rows["donor-1"].TotalRatings)

	// ...the recompute repairs them from what is actually published.
	avg, total, err := agg.Recompute(context.Background(), "donor-1")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.InDelta(t, 5.0, avg, 1e-9)
	assert.Equal(t, 1, actors.rows["donor-1"].TotalRatings)
}

func TestRecomputeEmptyResetsToZero(t *testing.T) {
	t.Parallel()
	agg, _, actors := newAggEnv()
	actors.rows["donor-1"].AverageRating = 4.2
	actors.rows["donor-1"].TotalRatings = 7

	avg, total, err := agg.Recompute(context.Background(), "donor-1")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, avg)
}

func TestRemoveFromAnyLiveState(t *testing.T) {
	t.Parallel()
	agg, fb, _ := newAggEnv()
	fb.rows["f1"] = pendingFeedback("f1", 3)

	require.NoError(t, agg.Remove(context.Background(), "f1"))
	assert.Equal(t, repository.ModerationRemoved, fb.rows["f1"].Moderation)

	err := agg.Remove(context.Background(), "f1")
	assert.True(t, apperrors.IsInvalidTransition(err))
}
