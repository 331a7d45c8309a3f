package postgres

import (
	"context"
	"errors"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, asset_id, sequence, clerk_type, entry_type, transaction_id,
		pending_balance, pending_delta, available_balance, available_delta, created_at`

// LedgerRepo implements ports.LedgerRepository. Entries are only ever
// inserted; there is no update or delete path.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts a ledger entry within a database transaction. The unique
// (asset_id, sequence) index rejects a stale append with a
// ConcurrentModification error should two writers ever slip past the asset
// row lock.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledgers (id, asset_id, sequence, clerk_type, entry_type, transaction_id,
		pending_balance, pending_delta, available_balance, available_delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.AssetID, e.Sequence, e.ClerkType, e.EntryType, e.TransactionID,
		e.PendingBalance, e.PendingDelta, e.AvailableBalance, e.AvailableDelta,
		e.CreatedAt,
	)
	if err != nil {
		return translateErr("append ledger entry", err)
	}
	return nil
}

// Latest returns the most recent entry for the asset, or nil if the asset
// has never had a ledger write. Ordering is by sequence, not timestamp.
func (r *LedgerRepo) Latest(ctx context.Context, assetID uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM ledgers WHERE asset_id = $1 ORDER BY sequence DESC LIMIT 1`

	return scanLedgerEntry(r.pool.QueryRow(ctx, query, assetID))
}

// LatestInTx reads the most recent entry inside an open atomic unit.
func (r *LedgerRepo) LatestInTx(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM ledgers WHERE asset_id = $1 ORDER BY sequence DESC LIMIT 1`

	return scanLedgerEntry(tx.QueryRow(ctx, query, assetID))
}

// ListByAsset returns the newest entries for an asset, newest first.
func (r *LedgerRepo) ListByAsset(ctx context.Context, assetID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM ledgers WHERE asset_id = $1 ORDER BY sequence DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, assetID, limit)
	if err != nil {
		return nil, translateErr("list ledger entries", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		err := rows.Scan(
			&e.ID, &e.AssetID, &e.Sequence, &e.ClerkType, &e.EntryType, &e.TransactionID,
			&e.PendingBalance, &e.PendingDelta, &e.AvailableBalance, &e.AvailableDelta,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, translateErr("scan ledger row", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr("iterate ledger rows", err)
	}
	return entries, nil
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.AssetID, &e.Sequence, &e.ClerkType, &e.EntryType, &e.TransactionID,
		&e.PendingBalance, &e.PendingDelta, &e.AvailableBalance, &e.AvailableDelta,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translateErr("scan ledger entry", err)
	}
	return e, nil
}
