package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityStatus gates whether withdrawals may be initiated against an asset.
type ActivityStatus string

const (
	ActivityStatusActive    ActivityStatus = "ACTIVE"
	ActivityStatusSuspended ActivityStatus = "SUSPENDED"
)

// Asset is a user's balance-bearing holding of a single symbol.
// Unique per (user, symbol). Immutable after creation except the
// withdrawal activity flag.
type Asset struct {
	ID                 uuid.UUID      `json:"id"`
	UserID             string         `json:"user_id"`
	Symbol             string         `json:"symbol"`
	WithdrawalActivity ActivityStatus `json:"withdrawal_activity"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// WithdrawalsActive reports whether debits may be initiated.
func (a *Asset) WithdrawalsActive() bool {
	return a.WithdrawalActivity == ActivityStatusActive
}
