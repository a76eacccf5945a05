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

const feedbackColumns = `
        id, business_id, author_type, author_id, reviewee_type, reviewee_id,
        donation_id, claim_id, task_id, pickup_event_id, rating, comment,
        moderation_status, response, responded_at, published_at, created_at`

type FeedbackRepo struct {
	db db.DB
}

func NewFeedbackRepo(db db.DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

func (r *FeedbackRepo) Create(ctx context.Context, f *repository.Feedback) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO feedback (`+feedbackColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    `, f.ID, f.BusinessID, f.AuthorType, f.AuthorID, f.RevieweeType, f.RevieweeID,
		f.DonationID, f.ClaimID, f.TaskID, f.PickupEventID, f.Rating, f.Comment,
		f.Moderation, f.Response, f.RespondedAt, f.PublishedAt, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (r *FeedbackRepo) GetByID(ctx context.Context, id string) (*repository.Feedback, error) {
	var f repository.Feedback
	err := r.db.Get(ctx, &f, "SELECT"+feedbackColumns+" FROM feedback WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "feedback %s does not exist", id)
		}
		return nil, err
	}
	return &f, nil
}

// UpdateModeration moves the moderation status conditionally; published_at is
// stamped on the pending -> published edge only.
func (r *FeedbackRepo) UpdateModeration(ctx context.Context, id string, from, to repository.ModerationStatus, now time.Time) (bool, error) {
	var publishedAt *time.Time
	if to == repository.ModerationPublished {
		publishedAt = &now
	}
	tag, err := r.db.Exec(ctx, `
        UPDATE feedback SET moderation_status = $3,
            published_at = COALESCE(published_at, $4)
        WHERE id = $1 AND moderation_status = $2
    `, id, from, to, publishedAt)
	if err != nil {
		return false, fmt.Errorf("update feedback moderation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetResponse records the reviewee's single response. Rating and comment stay
// immutable after publication.
func (r *FeedbackRepo) SetResponse(ctx context.Context, id, response string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE feedback SET response = $2, responded_at = $3
        WHERE id = $1 AND response IS NULL
    `, id, response, now)
	if err != nil {
		return false, fmt.Errorf("set feedback response: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *FeedbackRepo) ListPublishedByReviewee(ctx context.Context, revieweeID string) ([]*repository.Feedback, error) {
	var out []*repository.Feedback
	err := r.db.Select(ctx, &out, `
        SELECT`+feedbackColumns+`
        FROM feedback
        WHERE reviewee_id = $1 AND moderation_status = $2
        ORDER BY created_at ASC
    `, revieweeID, repository.ModerationPublished)
	if err != nil {
		return nil, fmt.Errorf("list published feedback: %w", err)
	}
	return out, nil
}

// DeleteByActor removes feedback authored by or about the actor. Used by the
// cascade manager.
func (r *FeedbackRepo) DeleteByActor(ctx context.Context, actorID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        DELETE FROM feedback WHERE author_id = $1 OR reviewee_id = $1
    `, actorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
