package workflow

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type SubmitFeedbackInput struct {
	AuthorType    repository.ActorType `json:"author_type"`
	AuthorID      string               `json:"author_id"`
	RevieweeType  repository.ActorType `json:"reviewee_type"`
	RevieweeID    string               `json:"reviewee_id"`
	DonationID    *string              `json:"donation_id,omitempty"`
	ClaimID       *string              `json:"claim_id,omitempty"`
	TaskID        *string              `json:"task_id,omitempty"`
	PickupEventID *string              `json:"pickup_event_id,omitempty"`
	Rating        int                  `json:"rating"`
	Comment       string               `json:"comment"`
}

// SubmitFeedback stores a new review in moderation. It only affects the
// reviewee's rating once a moderator publishes it.
func (e *Engine) SubmitFeedback(ctx context.Context, in SubmitFeedbackInput) (*repository.Feedback, error) {
	now := e.now()
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperrors.New(apperrors.KindValidation, "rating must be between 1 and 5")
	}
	if in.AuthorID == in.RevieweeID {
		return nil, apperrors.New(apperrors.KindValidation, "self-review is not allowed")
	}
	if _, err := e.actors.Get(ctx, in.AuthorType, in.AuthorID); err != nil {
		return nil, err
	}
	if _, err := e.actors.Get(ctx, in.RevieweeType, in.RevieweeID); err != nil {
		return nil, err
	}
	if in.DonationID != nil {
		if _, err := e.donations.GetByID(ctx, *in.DonationID); err != nil {
			return nil, err
		}
	}

	f := &repository.Feedback{
		ID:            uuid.NewString(),
		BusinessID:    NewBusinessID(PrefixFeedback, now),
		AuthorType:    in.AuthorType,
		AuthorID:      in.AuthorID,
		RevieweeType:  in.RevieweeType,
		RevieweeID:    in.RevieweeID,
		DonationID:    in.DonationID,
		ClaimID:       in.ClaimID,
		TaskID:        in.TaskID,
		PickupEventID: in.PickupEventID,
		Rating:        in.Rating,
		Comment:       in.Comment,
		Moderation:    repository.ModerationPending,
		CreatedAt:     now,
	}
	if err := e.feedback.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (e *Engine) GetFeedback(ctx context.Context, id string) (*repository.Feedback, error) {
	return e.feedback.GetByID(ctx, id)
}

// RespondToFeedback records the reviewee's one-time public response.
func (e *Engine) RespondToFeedback(ctx context.Context, feedbackID, response string) (*repository.Feedback, error) {
	if strings.TrimSpace(response) == "" {
		return nil, apperrors.New(apperrors.KindValidation, "response must not be empty")
	}
	now := e.now()
	ok, err := e.feedback.SetResponse(ctx, feedbackID, response, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		f, err := e.feedback.GetByID(ctx, feedbackID)
		if err != nil {
			return nil, err
		}
		if f.Response != nil {
			return nil, apperrors.Newf(apperrors.KindConflict,
				"feedback %s already has a response", feedbackID)
		}
		return nil, apperrors.Newf(apperrors.KindNotFound, "feedback %s does not exist", feedbackID)
	}
	return e.feedback.GetByID(ctx, feedbackID)
}
