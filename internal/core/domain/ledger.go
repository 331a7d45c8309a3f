package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is an immutable, appended record of a balance change with the
// post-change snapshot of both buckets. The latest entry for an asset is the
// authoritative balance; corrections append new entries, never edit old ones.
//
// Sequence is a strictly monotonic per-asset counter. Creation timestamps
// alone cannot order entries under coarse clock resolution, so Sequence is
// the ordering key and (asset_id, sequence) is unique.
type LedgerEntry struct {
	ID               uuid.UUID       `json:"id"`
	AssetID          uuid.UUID       `json:"asset_id"`
	Sequence         int64           `json:"sequence"`
	ClerkType        ClerkType       `json:"clerk_type"`
	EntryType        TransactionType `json:"entry_type"`
	TransactionID    uuid.UUID       `json:"transaction_id"`
	PendingBalance   int64           `json:"pending_balance"`
	PendingDelta     int64           `json:"pending_delta"`
	AvailableBalance int64           `json:"available_balance"`
	AvailableDelta   int64           `json:"available_delta"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Balance is the authoritative pair of bucket balances for an asset,
// read from its latest ledger entry. An asset with no ledger history
// has zero balances.
type Balance struct {
	PendingBalance   int64 `json:"pending_balance"`
	AvailableBalance int64 `json:"available_balance"`
}

// BalanceOf returns the post-entry balance snapshot.
func (e *LedgerEntry) BalanceOf() Balance {
	return Balance{
		PendingBalance:   e.PendingBalance,
		AvailableBalance: e.AvailableBalance,
	}
}

// NextEntry builds the successor of e (or of the implicit zero entry when e
// is nil) applying the given deltas. The untouched bucket's balance carries
// forward unchanged.
func NextEntry(e *LedgerEntry, assetID uuid.UUID, clerk ClerkType, entryType TransactionType, txID uuid.UUID, pendingDelta, availableDelta int64) *LedgerEntry {
	var prev Balance
	var seq int64
	if e != nil {
		prev = e.BalanceOf()
		seq = e.Sequence
	}
	return &LedgerEntry{
		ID:               uuid.New(),
		AssetID:          assetID,
		Sequence:         seq + 1,
		ClerkType:        clerk,
		EntryType:        entryType,
		TransactionID:    txID,
		PendingBalance:   prev.PendingBalance + pendingDelta,
		PendingDelta:     pendingDelta,
		AvailableBalance: prev.AvailableBalance + availableDelta,
		AvailableDelta:   availableDelta,
		CreatedAt:        time.Now().UTC(),
	}
}
