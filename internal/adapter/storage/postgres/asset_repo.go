package postgres

import (
	"context"
	"errors"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AssetRepo implements ports.AssetRepository.
type AssetRepo struct {
	pool Pool
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(pool Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

// Create inserts a new asset. Fails with DuplicateAsset if (user, symbol)
// already exists.
func (r *AssetRepo) Create(ctx context.Context, a *domain.Asset) error {
	query := `INSERT INTO assets (id, user_id, symbol, withdrawal_activity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.UserID, a.Symbol, a.WithdrawalActivity,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return translateErr("insert asset", err)
	}
	return nil
}

// GetByID fetches an asset by its UUID (without locking).
func (r *AssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	query := `SELECT id, user_id, symbol, withdrawal_activity, created_at, updated_at
		FROM assets WHERE id = $1`

	return scanAsset(r.pool.QueryRow(ctx, query, id), "get asset by id")
}

// GetByUserSymbol fetches an asset by owner and symbol.
func (r *AssetRepo) GetByUserSymbol(ctx context.Context, userID, symbol string) (*domain.Asset, error) {
	query := `SELECT id, user_id, symbol, withdrawal_activity, created_at, updated_at
		FROM assets WHERE user_id = $1 AND symbol = $2`

	return scanAsset(r.pool.QueryRow(ctx, query, userID, symbol), "get asset by user and symbol")
}

// GetByIDForUpdate fetches an asset with a row lock. The lock serializes all
// read-validate-append sequences for the asset and MUST be taken inside the
// same transaction as the paired journal and ledger writes.
func (r *AssetRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Asset, error) {
	query := `SELECT id, user_id, symbol, withdrawal_activity, created_at, updated_at
		FROM assets WHERE id = $1 FOR UPDATE`

	return scanAsset(tx.QueryRow(ctx, query, id), "get asset for update")
}

// UpdateWithdrawalActivity flips the only mutable asset field.
func (r *AssetRepo) UpdateWithdrawalActivity(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ActivityStatus) error {
	query := `UPDATE assets SET withdrawal_activity = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return translateErr("update withdrawal activity", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound("asset")
	}
	return nil
}

func scanAsset(row pgx.Row, op string) (*domain.Asset, error) {
	a := &domain.Asset{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.Symbol, &a.WithdrawalActivity,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translateErr(op, err)
	}
	return a, nil
}
