package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// BalanceCache is a best-effort read-side cache of the latest balance
// snapshot per asset. Misses and cache failures fall through to the ledger.
type BalanceCache interface {
	// Get returns the cached balance or nil on miss.
	Get(ctx context.Context, assetID uuid.UUID) (*domain.Balance, error)
	// Set stores the snapshot taken at the given ledger sequence. A write
	// carrying a sequence at or below the cached one is discarded, so a
	// slow reader that computed its snapshot before a concurrent commit
	// cannot overwrite the newer snapshot.
	Set(ctx context.Context, assetID uuid.UUID, balance domain.Balance, sequence int64, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// AssetService defines the asset registry operations.
type AssetService interface {
	CreateAsset(ctx context.Context, userID, symbol string) (*domain.Asset, error)
	GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	GetUserAsset(ctx context.Context, userID, symbol string) (*domain.Asset, error)
	SuspendWithdrawals(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	ResumeWithdrawals(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
}

// WalletService defines the wallet engine: the fund/charge/reverse ledger
// lifecycle over a single asset balance.
type WalletService interface {
	FundAsset(ctx context.Context, req MovementRequest) (*domain.LedgerEntry, error)
	SettleFund(ctx context.Context, transactionID uuid.UUID) (*domain.LedgerEntry, error)
	ChargeAsset(ctx context.Context, req MovementRequest) (*domain.LedgerEntry, error)
	SettleCharge(ctx context.Context, transactionID uuid.UUID) (*domain.LedgerEntry, error)
	ReverseCharge(ctx context.Context, req ReversalRequest) (*domain.LedgerEntry, error)
	FailTransaction(ctx context.Context, transactionID uuid.UUID, reason string) (*domain.LedgerEntry, error)
	FetchBalance(ctx context.Context, assetID uuid.UUID) (domain.Balance, error)
	ListTransactions(ctx context.Context, assetID uuid.UUID) ([]domain.Transaction, error)
	LedgerHistory(ctx context.Context, assetID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
}

// MovementRequest holds validated input for initiating a fund or charge.
type MovementRequest struct {
	AssetID     uuid.UUID
	Amount      int64
	Fee         int64
	Reason      *string
	Description *string
	Metadata    map[string]any
}

// ReversalRequest holds validated input for a compensating credit against a
// completed withdrawal.
type ReversalRequest struct {
	TransactionID uuid.UUID
	Amount        int64
	Fee           int64
	Reason        *string
	Description   *string
	Metadata      map[string]any
}
