package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAsset_WithdrawalsActive(t *testing.T) {
	tests := []struct {
		name   string
		status ActivityStatus
		want   bool
	}{
		{"active", ActivityStatusActive, true},
		{"suspended", ActivityStatusSuspended, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Asset{WithdrawalActivity: tt.status}
			assert.Equal(t, tt.want, a.WithdrawalsActive())
		})
	}
}

func TestTransaction_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status TransactionStatus
		want   bool
	}{
		{"pending", TransactionStatusPending, false},
		{"successful", TransactionStatusSuccessful, true},
		{"failed", TransactionStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Status: tt.status}
			assert.Equal(t, tt.want, tx.IsTerminal())
		})
	}
}

func TestTransaction_CanSettleAs(t *testing.T) {
	tests := []struct {
		name   string
		txType TransactionType
		status TransactionStatus
		opType TransactionType
		want   bool
	}{
		{"pending fund settles as fund", TransactionTypeWalletFund, TransactionStatusPending, TransactionTypeWalletFund, true},
		{"pending withdrawal settles as withdrawal", TransactionTypeWithdrawal, TransactionStatusPending, TransactionTypeWithdrawal, true},
		{"fund cannot settle as withdrawal", TransactionTypeWalletFund, TransactionStatusPending, TransactionTypeWithdrawal, false},
		{"successful fund cannot settle again", TransactionTypeWalletFund, TransactionStatusSuccessful, TransactionTypeWalletFund, false},
		{"failed withdrawal cannot settle", TransactionTypeWithdrawal, TransactionStatusFailed, TransactionTypeWithdrawal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Type: tt.txType, Status: tt.status}
			assert.Equal(t, tt.want, tx.CanSettleAs(tt.opType))
		})
	}
}

func TestNextEntry_FromEmptyLedger(t *testing.T) {
	assetID := uuid.New()
	txID := uuid.New()

	e := NextEntry(nil, assetID, ClerkTypeCredit, TransactionTypeWalletFund, txID, 100, 0)

	assert.Equal(t, int64(1), e.Sequence)
	assert.Equal(t, int64(100), e.PendingBalance)
	assert.Equal(t, int64(100), e.PendingDelta)
	assert.Equal(t, int64(0), e.AvailableBalance)
	assert.Equal(t, int64(0), e.AvailableDelta)
	assert.Equal(t, assetID, e.AssetID)
	assert.Equal(t, txID, e.TransactionID)
}

func TestNextEntry_CarriesUntouchedBucketForward(t *testing.T) {
	assetID := uuid.New()
	prev := &LedgerEntry{
		AssetID:          assetID,
		Sequence:         3,
		PendingBalance:   100,
		AvailableBalance: 40,
	}

	e := NextEntry(prev, assetID, ClerkTypeDebit, TransactionTypeWithdrawal, uuid.New(), 0, -25)

	assert.Equal(t, int64(4), e.Sequence)
	assert.Equal(t, int64(100), e.PendingBalance, "pending must carry forward unchanged")
	assert.Equal(t, int64(0), e.PendingDelta)
	assert.Equal(t, int64(15), e.AvailableBalance)
	assert.Equal(t, int64(-25), e.AvailableDelta)
}

func TestLedgerEntry_BalanceOf(t *testing.T) {
	e := &LedgerEntry{PendingBalance: 7, AvailableBalance: 11}
	assert.Equal(t, Balance{PendingBalance: 7, AvailableBalance: 11}, e.BalanceOf())
}
