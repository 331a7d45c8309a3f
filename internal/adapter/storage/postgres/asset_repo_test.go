package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAsset() *domain.Asset {
	return &domain.Asset{
		ID:                 uuid.New(),
		UserID:             "user-1",
		Symbol:             "USDT",
		WithdrawalActivity: domain.ActivityStatusActive,
		CreatedAt:          time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:          time.Now().UTC().Truncate(time.Microsecond),
	}
}

func assetColumns() []string {
	return []string{"id", "user_id", "symbol", "withdrawal_activity", "created_at", "updated_at"}
}

func assetRow(a *domain.Asset) *pgxmock.Rows {
	return pgxmock.NewRows(assetColumns()).AddRow(
		a.ID, a.UserID, a.Symbol, a.WithdrawalActivity, a.CreatedAt, a.UpdatedAt,
	)
}

func TestAssetRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	a := newTestAsset()

	mock.ExpectExec("INSERT INTO assets").
		WithArgs(a.ID, a.UserID, a.Symbol, a.WithdrawalActivity, a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_Create_DuplicateConstraint(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	a := newTestAsset()

	mock.ExpectExec("INSERT INTO assets").
		WithArgs(a.ID, a.UserID, a.Symbol, a.WithdrawalActivity, a.CreatedAt, a.UpdatedAt).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: "assets_user_symbol_uc",
		})

	err = repo.Create(context.Background(), a)
	require.Error(t, err)
	assert.Equal(t, "WAL_002", apperror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	a := newTestAsset()

	mock.ExpectQuery("SELECT .+ FROM assets WHERE id").
		WithArgs(a.ID).
		WillReturnRows(assetRow(a))

	result, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.Equal(t, a.Symbol, result.Symbol)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM assets WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(assetColumns()))

	result, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_GetByUserSymbol(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	a := newTestAsset()

	mock.ExpectQuery("SELECT .+ FROM assets WHERE user_id .+ AND symbol").
		WithArgs(a.UserID, a.Symbol).
		WillReturnRows(assetRow(a))

	result, err := repo.GetByUserSymbol(context.Background(), a.UserID, a.Symbol)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	a := newTestAsset()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM assets WHERE id .+ FOR UPDATE").
		WithArgs(a.ID).
		WillReturnRows(assetRow(a))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_UpdateWithdrawalActivity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE assets SET withdrawal_activity").
		WithArgs(domain.ActivityStatusSuspended, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateWithdrawalActivity(context.Background(), tx, id, domain.ActivityStatusSuspended)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_UpdateWithdrawalActivity_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE assets SET withdrawal_activity").
		WithArgs(domain.ActivityStatusSuspended, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateWithdrawalActivity(context.Background(), tx, id, domain.ActivityStatusSuspended)
	require.Error(t, err)
	assert.Equal(t, "WAL_001", apperror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
