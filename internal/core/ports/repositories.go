package ports

import (
	"context"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AssetRepository defines persistence operations for the asset registry.
// Methods accepting pgx.Tx run inside an atomic unit; GetByIDForUpdate takes
// the per-asset row lock that serializes read-validate-append sequences.
type AssetRepository interface {
	Create(ctx context.Context, asset *domain.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	GetByUserSymbol(ctx context.Context, userID, symbol string) (*domain.Asset, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Asset, error)
	UpdateWithdrawalActivity(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ActivityStatus) error
}

// LedgerRepository defines persistence for the append-only ledger.
// Entries are never updated or deleted.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	// Latest returns the most recent entry for the asset, or nil if the
	// asset has never had a ledger write.
	Latest(ctx context.Context, assetID uuid.UUID) (*domain.LedgerEntry, error)
	// LatestInTx reads the most recent entry inside an open atomic unit,
	// after the asset row lock has been taken.
	LatestInTx(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.LedgerEntry, error)
	ListByAsset(ctx context.Context, assetID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
}

// TransactionRepository defines persistence for the transaction journal.
// The status column is the only field ever updated in place.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	// UpdateStatus transitions a PENDING transaction to a terminal status.
	// Fails with InvalidState if the row is already terminal.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	ListByAsset(ctx context.Context, assetID uuid.UUID) ([]domain.Transaction, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
