package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type RegisterActorInput struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

// RegisterActor creates a donor, NGO, volunteer or beneficiary account. The
// address is geocoded in the background, same as donation intake.
func (e *Engine) RegisterActor(ctx context.Context, in RegisterActorInput) (*repository.Actor, error) {
	now := e.now()
	actorType, ok := repository.ParseActorType(in.Type)
	if !ok {
		return nil, apperrors.Newf(apperrors.KindValidation, "unknown actor type %q", in.Type)
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Username) == "" {
		return nil, apperrors.New(apperrors.KindValidation, "name and username are required")
	}
	if len(in.Password) < 8 {
		return nil, apperrors.New(apperrors.KindValidation, "password must be at least 8 characters")
	}

	a := &repository.Actor{
		ID:         uuid.NewString(),
		BusinessID: NewBusinessID(ActorPrefix(actorType), now),
		Type:       actorType,
		Name:       in.Name,
		Username:   in.Username,
		Address:    in.Address,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.actors.Create(ctx, a, in.Password); err != nil {
		return nil, err
	}

	if e.geocoder != nil && strings.TrimSpace(in.Address) != "" {
		go e.geocodeActor(a.ID, in.Address)
	}
	return a, nil
}

func (e *Engine) geocodeActor(id, address string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lat, lng, err := e.geocoder.Geocode(ctx, address)
	if err != nil {
		e.logger.Warn("geocode actor address failed",
			zap.String("actor_id", id), zap.Error(err))
		return
	}
	if err := e.actors.UpdateCoordinates(ctx, id, lat, lng, e.now()); err != nil {
		e.logger.Warn("store actor coordinates failed",
			zap.String("actor_id", id), zap.Error(err))
	}
}

func (e *Engine) GetActor(ctx context.Context, id string) (*repository.Actor, error) {
	return e.actors.GetByID(ctx, id)
}
