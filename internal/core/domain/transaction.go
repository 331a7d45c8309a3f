package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClerkType is the direction of a money movement: CREDIT increases a
// balance bucket, DEBIT decreases it.
type ClerkType string

const (
	ClerkTypeCredit ClerkType = "CREDIT"
	ClerkTypeDebit  ClerkType = "DEBIT"
)

// TransactionType identifies the wallet operation behind a transaction.
// Stored as a string so deployments can extend it with custom operation
// types without a schema change.
type TransactionType string

const (
	TransactionTypeWalletFund         TransactionType = "WALLET_FUND"
	TransactionTypeWithdrawal         TransactionType = "WITHDRAWAL"
	TransactionTypeWithdrawalReversal TransactionType = "WITHDRAWAL_REVERSAL"
)

// TransactionStatus is the lifecycle state of a transaction.
// PENDING transitions exactly once to SUCCESSFUL or FAILED; both are terminal.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusSuccessful TransactionStatus = "SUCCESSFUL"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

// Transaction records the intent and outcome of a single monetary operation
// attempt. Rows are never deleted; only status and updated_at change.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	UserID      string            `json:"user_id"`
	AssetID     uuid.UUID         `json:"asset_id"`
	Symbol      string            `json:"symbol"`
	Amount      int64             `json:"amount"` // In smallest unit, non-negative magnitude
	Fee         int64             `json:"fee"`
	TotalAmount int64             `json:"total_amount"` // amount + fee
	ClerkType   ClerkType         `json:"clerk_type"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	Reason      *string           `json:"reason,omitempty"`
	Description *string           `json:"description,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusSuccessful ||
		t.Status == TransactionStatusFailed
}

// CanSettleAs reports whether a settlement of the given operation type may
// proceed against this transaction.
func (t *Transaction) CanSettleAs(opType TransactionType) bool {
	return t.Type == opType && !t.IsTerminal()
}
