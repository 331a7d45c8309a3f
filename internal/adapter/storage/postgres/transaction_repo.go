package postgres

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, user_id, asset_id, symbol, amount, fee, total_amount,
		clerk_type, type, status, reason, description, metadata, created_at, updated_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new journal record within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, user_id, asset_id, symbol, amount, fee, total_amount,
		clerk_type, type, status, reason, description, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.UserID, t.AssetID, t.Symbol,
		t.Amount, t.Fee, t.TotalAmount, t.ClerkType, t.Type, t.Status,
		t.Reason, t.Description, t.Metadata,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return translateErr("insert transaction", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a transaction with a row lock inside an open
// atomic unit, so the status check and the settlement writes see a stable row.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// UpdateStatus transitions a PENDING transaction to a terminal status within
// a database transaction. The WHERE clause rejects a second transition:
// zero rows affected means the journal row is already terminal.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, status, time.Now().UTC(), id, domain.TransactionStatusPending)
	if err != nil {
		return translateErr("update transaction status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrInvalidState("transaction is already in a terminal state")
	}
	return nil
}

// ListByAsset returns the journal for an asset, newest first.
func (r *TransactionRepo) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE asset_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, assetID)
	if err != nil {
		return nil, translateErr("list transactions", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.UserID, &t.AssetID, &t.Symbol,
			&t.Amount, &t.Fee, &t.TotalAmount, &t.ClerkType, &t.Type, &t.Status,
			&t.Reason, &t.Description, &t.Metadata,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, translateErr("scan transaction row", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr("iterate transaction rows", err)
	}
	return txns, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.AssetID, &t.Symbol,
		&t.Amount, &t.Fee, &t.TotalAmount, &t.ClerkType, &t.Type, &t.Status,
		&t.Reason, &t.Description, &t.Metadata,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translateErr("scan transaction", err)
	}
	return t, nil
}
