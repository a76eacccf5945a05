package postgresql

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	mock_database "github.com/mealbridge/rescue-service/internal/db/mocks"
	"github.com/mealbridge/rescue-service/internal/repository"
)

func TestDonationGetByIDNotFound(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	repo := NewDonationRepo(mockDB)

	mockDB.EXPECT().
		Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDonationUpdateStatusIsConditional(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockTx := mock_database.NewMockTx(ctrl)
	repo := NewDonationRepo(mock_database.NewMockDB(ctrl))
	now := time.Now().UTC()

	mockTx.EXPECT().
		Exec(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
			assert.Contains(t, query, "AND status = $2")
			assert.Equal(t, repository.DonationAvailable, args[1])
			return pgconn.CommandTag("UPDATE 1"), nil
		})

	ok, err := repo.UpdateStatusTx(context.Background(), mockTx, "d-1",
		repository.DonationAvailable, repository.DonationCancelled, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDonationUpdateStatusLosesRace(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockTx := mock_database.NewMockTx(ctrl)
	repo := NewDonationRepo(mock_database.NewMockDB(ctrl))

	mockTx.EXPECT().
		Exec(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pgconn.CommandTag("UPDATE 0"), nil)

	ok, err := repo.UpdateStatusTx(context.Background(), mockTx, "d-1",
		repository.DonationAvailable, repository.DonationCancelled, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDonationSetClaimClearsHold(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockTx := mock_database.NewMockTx(ctrl)
	repo := NewDonationRepo(mock_database.NewMockDB(ctrl))

	mockTx.EXPECT().
		Exec(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, args ...interface{}) (pgconn.CommandTag, error) {
			// args: id, from, to, claimedBy, now
			assert.Nil(t, args[3])
			return pgconn.CommandTag("UPDATE 1"), nil
		})

	ok, err := repo.SetClaimTx(context.Background(), mockTx, "d-1",
		repository.DonationClaimed, repository.DonationAvailable, nil, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListAvailableAppliesLimit(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	repo := NewDonationRepo(mockDB)
	now := time.Now().UTC()

	mockDB.EXPECT().
		Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, query string, args ...interface{}) error {
			assert.True(t, strings.Contains(query, "LIMIT $3"))
			assert.Equal(t, 10, args[2])
			return nil
		})

	_, err := repo.ListAvailable(context.Background(), now, 10)
	require.NoError(t, err)
}

func TestListAvailableWithoutLimit(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	repo := NewDonationRepo(mockDB)

	mockDB.EXPECT().
		Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, query string, args ...interface{}) error {
			assert.False(t, strings.Contains(query, "LIMIT"))
			assert.Len(t, args, 2)
			return nil
		})

	_, err := repo.ListAvailable(context.Background(), time.Now().UTC(), 0)
	require.NoError(t, err)
}
