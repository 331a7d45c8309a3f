package integration

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEngine wires the wallet engine against the in-memory store and a
// miniredis-backed balance cache.
type testEngine struct {
	assets ports.AssetService
	wallet ports.WalletService
	store  *memStore
	cache  *redis.BalanceCache
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	balCache := redis.NewBalanceCache(client)

	store := newMemStore()
	assetRepo := &memAssetRepo{store: store}
	ledgerRepo := &memLedgerRepo{store: store}
	txRepo := &memTransactionRepo{store: store}
	transactor := memTransactor{store: store}

	retry := config.RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond}

	return &testEngine{
		assets: service.NewAssetService(assetRepo, transactor, zerolog.Nop()),
		wallet: service.NewWalletService(assetRepo, ledgerRepo, txRepo, balCache, transactor, retry, zerolog.Nop()),
		store:  store,
		cache:  balCache,
	}
}

func (e *testEngine) newAsset(t *testing.T, userID, symbol string) *domain.Asset {
	t.Helper()
	asset, err := e.assets.CreateAsset(context.Background(), userID, symbol)
	require.NoError(t, err)
	return asset
}

func (e *testEngine) fundSettled(t *testing.T, asset *domain.Asset, amount int64) {
	t.Helper()
	ctx := context.Background()
	entry, err := e.wallet.FundAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: amount})
	require.NoError(t, err)
	_, err = e.wallet.SettleFund(ctx, entry.TransactionID)
	require.NoError(t, err)
}

func TestFundSettleLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")

	// Initiation: amount lands in the pending bucket.
	entry, err := e.wallet.FundAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 100, Fee: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Sequence)
	assert.Equal(t, int64(100), entry.PendingBalance)
	assert.Equal(t, int64(100), entry.PendingDelta)
	assert.Equal(t, int64(0), entry.AvailableBalance)

	txn, err := e.store.txnByID(entry.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, txn.Status)
	assert.Equal(t, int64(105), txn.TotalAmount)

	// Settlement: available credited, pending carried forward.
	settled, err := e.wallet.SettleFund(ctx, entry.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), settled.Sequence)
	assert.Equal(t, int64(100), settled.AvailableBalance)
	assert.Equal(t, int64(100), settled.AvailableDelta)
	assert.Equal(t, int64(100), settled.PendingBalance)
	assert.Equal(t, int64(0), settled.PendingDelta)

	txn, err = e.store.txnByID(entry.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccessful, txn.Status)

	bal, err := e.wallet.FetchBalance(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Balance{PendingBalance: 100, AvailableBalance: 100}, bal)
}

func TestOverdrawWritesNothing(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")
	e.fundSettled(t, asset, 100)

	history, err := e.wallet.LedgerHistory(ctx, asset.ID, 100)
	require.NoError(t, err)
	entriesBefore := len(history)
	txnsBefore, err := e.wallet.ListTransactions(ctx, asset.ID)
	require.NoError(t, err)

	_, err = e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 500})
	require.Error(t, err)
	assert.Equal(t, "WAL_003", apperror.CodeOf(err))

	// The failed charge must leave no trace in either table.
	history, err = e.wallet.LedgerHistory(ctx, asset.ID, 100)
	require.NoError(t, err)
	assert.Len(t, history, entriesBefore)
	txnsAfter, err := e.wallet.ListTransactions(ctx, asset.ID)
	require.NoError(t, err)
	assert.Len(t, txnsAfter, len(txnsBefore))
}

func TestDoubleSettleFails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")

	entry, err := e.wallet.FundAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 100})
	require.NoError(t, err)
	_, err = e.wallet.SettleFund(ctx, entry.TransactionID)
	require.NoError(t, err)

	_, err = e.wallet.SettleFund(ctx, entry.TransactionID)
	require.Error(t, err)
	assert.Equal(t, "WAL_004", apperror.CodeOf(err))

	// No duplicate settlement entry.
	history, err := e.wallet.LedgerHistory(ctx, asset.ID, 100)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestChargeSequence(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")
	e.fundSettled(t, asset, 100)

	entry, err := e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 40})
	require.NoError(t, err)
	assert.Equal(t, int64(60), entry.AvailableBalance)
	assert.Equal(t, int64(-40), entry.AvailableDelta)

	// 60 available remains, 80 overdraws.
	_, err = e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 80})
	require.Error(t, err)
	assert.Equal(t, "WAL_003", apperror.CodeOf(err))
}

func TestSettleChargeDebitsPending(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")
	e.fundSettled(t, asset, 100)

	entry, err := e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 40})
	require.NoError(t, err)

	settled, err := e.wallet.SettleCharge(ctx, entry.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), settled.PendingBalance)
	assert.Equal(t, int64(-40), settled.PendingDelta)
	assert.Equal(t, int64(60), settled.AvailableBalance)

	txn, err := e.store.txnByID(entry.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccessful, txn.Status)
}

func TestReverseCharge(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")
	e.fundSettled(t, asset, 100)

	charge, err := e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 40})
	require.NoError(t, err)
	_, err = e.wallet.SettleCharge(ctx, charge.TransactionID)
	require.NoError(t, err)

	reversed, err := e.wallet.ReverseCharge(ctx, ports.ReversalRequest{
		TransactionID: charge.TransactionID,
		Amount:        40,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), reversed.AvailableBalance)
	assert.Equal(t, int64(40), reversed.AvailableDelta)

	// The reversal is its own journal record.
	rev, err := e.store.txnByID(reversed.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeWithdrawalReversal, rev.Type)
	assert.NotEqual(t, charge.TransactionID, reversed.TransactionID)
}

func TestReverseNonWithdrawalFails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")

	fund, err := e.wallet.FundAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 100})
	require.NoError(t, err)

	_, err = e.wallet.ReverseCharge(ctx, ports.ReversalRequest{TransactionID: fund.TransactionID, Amount: 100})
	require.Error(t, err)
	assert.Equal(t, "WAL_004", apperror.CodeOf(err))
}

func TestSuspendedAssetRefusesCharges(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")
	e.fundSettled(t, asset, 100)

	_, err := e.assets.SuspendWithdrawals(ctx, asset.ID)
	require.NoError(t, err)

	_, err = e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 10})
	require.Error(t, err)
	assert.Equal(t, "WAL_008", apperror.CodeOf(err))

	// Funding is unaffected by the suspension.
	_, err = e.wallet.FundAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 10})
	require.NoError(t, err)

	// Resume and charge again.
	_, err = e.assets.ResumeWithdrawals(ctx, asset.ID)
	require.NoError(t, err)
	_, err = e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 10})
	require.NoError(t, err)
}

func TestFailTransactionCompensates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")

	fund, err := e.wallet.FundAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 100})
	require.NoError(t, err)

	entry, err := e.wallet.FailTransaction(ctx, fund.TransactionID, "payment never cleared")
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.PendingBalance)
	assert.Equal(t, int64(-100), entry.PendingDelta)

	txn, err := e.store.txnByID(fund.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, txn.Status)

	// Failing again is refused.
	_, err = e.wallet.FailTransaction(ctx, fund.TransactionID, "duplicate callback")
	require.Error(t, err)
	assert.Equal(t, "WAL_004", apperror.CodeOf(err))
}

func TestBalanceMatchesDeltaSum(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")

	e.fundSettled(t, asset, 100)
	e.fundSettled(t, asset, 50)
	_, err := e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 30})
	require.NoError(t, err)

	history, err := e.wallet.LedgerHistory(ctx, asset.ID, 100)
	require.NoError(t, err)

	var pending, available int64
	for _, entry := range history {
		pending += entry.PendingDelta
		available += entry.AvailableDelta
	}

	bal, err := e.wallet.FetchBalance(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, pending, bal.PendingBalance)
	assert.Equal(t, available, bal.AvailableBalance)
}

func TestBalanceCacheStaysCoherent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")
	e.fundSettled(t, asset, 100)

	// Warm the cache.
	bal, err := e.wallet.FetchBalance(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.AvailableBalance)

	// A write refreshes the snapshot in place; the next read sees fresh state.
	_, err = e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 25})
	require.NoError(t, err)

	bal, err = e.wallet.FetchBalance(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(75), bal.AvailableBalance)
}

func TestStaleReaderCannotPoisonCache(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	asset := e.newAsset(t, "alice", "USDT")
	e.fundSettled(t, asset, 100)

	// A charge commits sequence 3 and refreshes the snapshot.
	_, err := e.wallet.ChargeAsset(ctx, ports.MovementRequest{AssetID: asset.ID, Amount: 40})
	require.NoError(t, err)

	// A reader that computed its snapshot before the charge writes back at
	// the older sequence. The cache must keep the committed state.
	staleErr := e.cache.Set(ctx, asset.ID, domain.Balance{PendingBalance: 100, AvailableBalance: 100}, 2, 5*time.Minute)
	require.NoError(t, staleErr)

	bal, err := e.wallet.FetchBalance(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), bal.AvailableBalance)
	assert.Equal(t, int64(100), bal.PendingBalance)
}

func TestDuplicateAssetRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.assets.CreateAsset(ctx, "alice", "USDT")
	require.NoError(t, err)

	_, err = e.assets.CreateAsset(ctx, "alice", "usdt")
	require.Error(t, err)
	assert.Equal(t, "WAL_002", apperror.CodeOf(err))

	// Different symbol or different user is fine.
	_, err = e.assets.CreateAsset(ctx, "alice", "BTC")
	require.NoError(t, err)
	_, err = e.assets.CreateAsset(ctx, "bob", "USDT")
	require.NoError(t, err)
}
