package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SeedAdminActor creates the bootstrap operations account when
// ADMIN_USERNAME/ADMIN_PASSWORD are set and no such actor exists yet. The
// moderation endpoints need at least one working credential before anyone
// has registered.
func SeedAdminActor(ctx context.Context, database *Database, logger *zap.Logger) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}

	var count int
	err := database.QueryRow(ctx,
		"SELECT COUNT(*) FROM actors WHERE username = $1", username).Scan(&count)
	if err != nil {
		return fmt.Errorf("check admin actor: %w", err)
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	_, err = database.Exec(ctx, `
        INSERT INTO actors (id, business_id, type, name, username, password_hash, address,
                            average_rating, total_ratings, completed_count, created_at, updated_at)
        VALUES ($1, $2, 'ngo', 'Operations', $3, $4, '', 0, 0, 0, $5, $5)
    `, uuid.NewString(), fmt.Sprintf("NGO-%s-ADMIN0", now.Format("20060102")),
		username, string(hashed), now)
	if err != nil {
		return fmt.Errorf("insert admin actor: %w", err)
	}

	logger.Info("bootstrap admin actor created", zap.String("username", username))
	return nil
}
