package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/repository"
)

const actorColumns = `
        id, business_id, type, name, username, password_hash, address,
        latitude, longitude, average_rating, total_ratings, completed_count,
        created_at, updated_at`

type ActorRepo struct {
	db db.DB
}

func NewActorRepo(db db.DB) *ActorRepo {
	return &ActorRepo{db: db}
}

// Create hashes the plaintext password before the row is written.
func (r *ActorRepo) Create(ctx context.Context, a *repository.Actor, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash actor password: %w", err)
	}
	a.PasswordHash = string(hashed)

	_, err = r.db.Exec(ctx, `
        INSERT INTO actors (`+actorColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `, a.ID, a.BusinessID, a.Type, a.Name, a.Username, a.PasswordHash, a.Address,
		a.Latitude, a.Longitude, a.AverageRating, a.TotalRatings, a.CompletedCount,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

func (r *ActorRepo) GetByID(ctx context.Context, id string) (*repository.Actor, error) {
	var a repository.Actor
	err := r.db.Get(ctx, &a, "SELECT"+actorColumns+" FROM actors WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "actor %s does not exist", id)
		}
		return nil, err
	}
	return &a, nil
}

// Get resolves the tagged actor reference: the id must exist AND carry the
// expected type discriminator.
func (r *ActorRepo) Get(ctx context.Context, actorType repository.ActorType, id string) (*repository.Actor, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Type != actorType {
		return nil, apperrors.Newf(apperrors.KindNotFound, "actor %s is %s, not %s", id, a.Type, actorType)
	}
	return a, nil
}

func (r *ActorRepo) ValidateCredentials(ctx context.Context, username, password string) (*repository.Actor, error) {
	var a repository.Actor
	err := r.db.Get(ctx, &a, "SELECT"+actorColumns+" FROM actors WHERE username = $1", username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "unknown username")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.New(apperrors.KindValidation, "invalid credentials")
	}
	return &a, nil
}

// AddRating folds one published rating into the running aggregates in a single
// statement so concurrent publications do not lose updates.
func (r *ActorRepo) AddRating(ctx context.Context, actorID string, rating int, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE actors SET
            average_rating = (average_rating * total_ratings + $2) / (total_ratings + 1),
            total_ratings = total_ratings + 1,
            updated_at = $3
        WHERE id = $1
    `, actorID, rating, now)
	if err != nil {
		return fmt.Errorf("add actor rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "actor %s does not exist", actorID)
	}
	return nil
}

// SetRating overwrites the aggregates wholesale. The recompute path uses it
// to repair drift in the incremental counters.
func (r *ActorRepo) SetRating(ctx context.Context, actorID string, average float64, total int, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE actors SET average_rating = $2, total_ratings = $3, updated_at = $4
        WHERE id = $1
    `, actorID, average, total, now)
	if err != nil {
		return fmt.Errorf("set actor rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "actor %s does not exist", actorID)
	}
	return nil
}

func (r *ActorRepo) IncrementCompleted(ctx context.Context, actorID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
        UPDATE actors SET completed_count = completed_count + 1, updated_at = $2
        WHERE id = $1
    `, actorID, now)
	if err != nil {
		return fmt.Errorf("increment completed count: %w", err)
	}
	return nil
}

func (r *ActorRepo) UpdateCoordinates(ctx context.Context, actorID string, lat, lng float64, now time.Time) error {
	_, err := r.db.Exec(ctx, `
        UPDATE actors SET latitude = $2, longitude = $3, updated_at = $4
        WHERE id = $1
    `, actorID, lat, lng, now)
	if err != nil {
		return fmt.Errorf("update actor coordinates: %w", err)
	}
	return nil
}

func (r *ActorRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM actors WHERE id = $1", id)
	return err
}
