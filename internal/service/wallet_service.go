package service

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const balanceCacheTTL = 5 * time.Minute

// maxMovementAmount caps the amount and fee of a single movement so that
// balance arithmetic stays far from int64 overflow across a long history.
const maxMovementAmount = int64(1) << 50

// WalletServiceImpl implements ports.WalletService.
//
// Every mutating operation runs as one atomic unit: begin, lock the asset row
// (the per-asset critical section), read the latest ledger entry, validate,
// write the journal record and the ledger entry, commit. A failure at any
// step before commit rolls the whole unit back, so the journal and the ledger
// never diverge.
type WalletServiceImpl struct {
	assetRepo  ports.AssetRepository
	ledgerRepo ports.LedgerRepository
	txRepo     ports.TransactionRepository
	balCache   ports.BalanceCache
	transactor ports.DBTransactor
	retry      config.RetryConfig
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	assetRepo ports.AssetRepository,
	ledgerRepo ports.LedgerRepository,
	txRepo ports.TransactionRepository,
	balCache ports.BalanceCache,
	transactor ports.DBTransactor,
	retry config.RetryConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		assetRepo:  assetRepo,
		ledgerRepo: ledgerRepo,
		txRepo:     txRepo,
		balCache:   balCache,
		transactor: transactor,
		retry:      retry,
		log:        log,
	}
}

// FundAsset initiates a credit: journal a PENDING WALLET_FUND transaction and
// append a ledger entry moving the amount into the pending bucket.
func (s *WalletServiceImpl) FundAsset(ctx context.Context, req ports.MovementRequest) (*domain.LedgerEntry, error) {
	if !validMovement(req.Amount, req.Fee) {
		return nil, apperror.ErrInvalidAmount()
	}

	return s.withRetry(ctx, "fund_asset", func(ctx context.Context) (*domain.LedgerEntry, error) {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return nil, storeErr(err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		asset, err := s.assetRepo.GetByIDForUpdate(ctx, dbTx, req.AssetID)
		if err != nil {
			return nil, storeErr(err)
		}
		if asset == nil {
			return nil, apperror.ErrNotFound("asset")
		}

		last, err := s.ledgerRepo.LatestInTx(ctx, dbTx, asset.ID)
		if err != nil {
			return nil, storeErr(err)
		}

		txn := newTransaction(asset, req, domain.ClerkTypeCredit, domain.TransactionTypeWalletFund)
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return nil, storeErr(err)
		}

		entry := domain.NextEntry(last, asset.ID, domain.ClerkTypeCredit, domain.TransactionTypeWalletFund, txn.ID, req.Amount, 0)
		if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
			return nil, storeErr(err)
		}

		if err := dbTx.Commit(ctx); err != nil {
			return nil, storeErr(err)
		}
		s.cacheSnapshot(ctx, entry)

		s.log.Info().
			Str("asset_id", asset.ID.String()).
			Str("tx_id", txn.ID.String()).
			Int64("amount", req.Amount).
			Int64("pending_balance", entry.PendingBalance).
			Msg("fund initiated")

		return entry, nil
	})
}

// SettleFund completes a fund: the pending credit is promoted into the
// available bucket and the transaction becomes SUCCESSFUL.
func (s *WalletServiceImpl) SettleFund(ctx context.Context, transactionID uuid.UUID) (*domain.LedgerEntry, error) {
	return s.settle(ctx, "settle_fund", transactionID, domain.TransactionTypeWalletFund,
		func(txn *domain.Transaction) (pendingDelta, availableDelta int64) {
			return 0, txn.Amount
		})
}

// ChargeAsset initiates a debit: validates the amount against the latest
// available balance, journals a PENDING WITHDRAWAL and appends a ledger entry
// deducting the amount from the available bucket.
func (s *WalletServiceImpl) ChargeAsset(ctx context.Context, req ports.MovementRequest) (*domain.LedgerEntry, error) {
	if !validMovement(req.Amount, req.Fee) {
		return nil, apperror.ErrInvalidAmount()
	}

	return s.withRetry(ctx, "charge_asset", func(ctx context.Context) (*domain.LedgerEntry, error) {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return nil, storeErr(err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		asset, err := s.assetRepo.GetByIDForUpdate(ctx, dbTx, req.AssetID)
		if err != nil {
			return nil, storeErr(err)
		}
		if asset == nil {
			return nil, apperror.ErrNotFound("asset")
		}
		if !asset.WithdrawalsActive() {
			return nil, apperror.ErrWithdrawalsSuspended()
		}

		last, err := s.ledgerRepo.LatestInTx(ctx, dbTx, asset.ID)
		if err != nil {
			return nil, storeErr(err)
		}

		var available int64
		if last != nil {
			available = last.AvailableBalance
		}
		if req.Amount > available {
			return nil, apperror.ErrInsufficientBalance()
		}

		txn := newTransaction(asset, req, domain.ClerkTypeDebit, domain.TransactionTypeWithdrawal)
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return nil, storeErr(err)
		}

		entry := domain.NextEntry(last, asset.ID, domain.ClerkTypeDebit, domain.TransactionTypeWithdrawal, txn.ID, 0, -req.Amount)
		if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
			return nil, storeErr(err)
		}

		if err := dbTx.Commit(ctx); err != nil {
			return nil, storeErr(err)
		}
		s.cacheSnapshot(ctx, entry)

		s.log.Info().
			Str("asset_id", asset.ID.String()).
			Str("tx_id", txn.ID.String()).
			Int64("amount", req.Amount).
			Int64("available_balance", entry.AvailableBalance).
			Msg("charge initiated")

		return entry, nil
	})
}

// SettleCharge completes a withdrawal: the pending bucket is debited and the
// transaction becomes SUCCESSFUL.
func (s *WalletServiceImpl) SettleCharge(ctx context.Context, transactionID uuid.UUID) (*domain.LedgerEntry, error) {
	return s.settle(ctx, "settle_charge", transactionID, domain.TransactionTypeWithdrawal,
		func(txn *domain.Transaction) (pendingDelta, availableDelta int64) {
			return -txn.Amount, 0
		})
}

// ReverseCharge appends a compensating credit for a previously completed
// withdrawal. The original transaction's status is left untouched; the
// reversal is journaled as its own WITHDRAWAL_REVERSAL transaction.
func (s *WalletServiceImpl) ReverseCharge(ctx context.Context, req ports.ReversalRequest) (*domain.LedgerEntry, error) {
	if !validMovement(req.Amount, req.Fee) {
		return nil, apperror.ErrInvalidAmount()
	}

	return s.withRetry(ctx, "reverse_charge", func(ctx context.Context) (*domain.LedgerEntry, error) {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return nil, storeErr(err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		orig, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, req.TransactionID)
		if err != nil {
			return nil, storeErr(err)
		}
		if orig == nil {
			return nil, apperror.ErrNotFound("transaction")
		}
		if orig.Type != domain.TransactionTypeWithdrawal {
			return nil, apperror.ErrInvalidState("only withdrawals can be reversed")
		}

		asset, err := s.assetRepo.GetByIDForUpdate(ctx, dbTx, orig.AssetID)
		if err != nil {
			return nil, storeErr(err)
		}
		if asset == nil {
			return nil, apperror.ErrNotFound("asset")
		}

		last, err := s.ledgerRepo.LatestInTx(ctx, dbTx, asset.ID)
		if err != nil {
			return nil, storeErr(err)
		}

		txn := newTransaction(asset, ports.MovementRequest{
			AssetID:     asset.ID,
			Amount:      req.Amount,
			Fee:         req.Fee,
			Reason:      req.Reason,
			Description: req.Description,
			Metadata:    req.Metadata,
		}, domain.ClerkTypeCredit, domain.TransactionTypeWithdrawalReversal)
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return nil, storeErr(err)
		}

		entry := domain.NextEntry(last, asset.ID, domain.ClerkTypeCredit, domain.TransactionTypeWithdrawalReversal, txn.ID, 0, req.Amount)
		if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
			return nil, storeErr(err)
		}

		if err := dbTx.Commit(ctx); err != nil {
			return nil, storeErr(err)
		}
		s.cacheSnapshot(ctx, entry)

		s.log.Info().
			Str("asset_id", asset.ID.String()).
			Str("tx_id", txn.ID.String()).
			Str("original_tx_id", orig.ID.String()).
			Int64("amount", req.Amount).
			Msg("charge reversed")

		return entry, nil
	})
}

// FailTransaction moves a PENDING transaction to FAILED and appends a
// compensating ledger entry undoing its initiation delta. The correction is
// append-only; the original entry is never edited.
func (s *WalletServiceImpl) FailTransaction(ctx context.Context, transactionID uuid.UUID, reason string) (*domain.LedgerEntry, error) {
	return s.withRetry(ctx, "fail_transaction", func(ctx context.Context) (*domain.LedgerEntry, error) {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return nil, storeErr(err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, transactionID)
		if err != nil {
			return nil, storeErr(err)
		}
		if txn == nil {
			return nil, apperror.ErrNotFound("transaction")
		}
		if txn.IsTerminal() {
			return nil, apperror.ErrInvalidState("transaction is already in a terminal state")
		}

		asset, err := s.assetRepo.GetByIDForUpdate(ctx, dbTx, txn.AssetID)
		if err != nil {
			return nil, storeErr(err)
		}
		if asset == nil {
			return nil, apperror.ErrNotFound("asset")
		}

		last, err := s.ledgerRepo.LatestInTx(ctx, dbTx, asset.ID)
		if err != nil {
			return nil, storeErr(err)
		}

		pendingDelta, availableDelta := compensatingDeltas(txn)
		clerk := domain.ClerkTypeDebit
		if txn.ClerkType == domain.ClerkTypeDebit {
			clerk = domain.ClerkTypeCredit
		}

		entry := domain.NextEntry(last, asset.ID, clerk, txn.Type, txn.ID, pendingDelta, availableDelta)
		if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
			return nil, storeErr(err)
		}

		if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusFailed); err != nil {
			return nil, storeErr(err)
		}

		if err := dbTx.Commit(ctx); err != nil {
			return nil, storeErr(err)
		}
		s.cacheSnapshot(ctx, entry)

		s.log.Info().
			Str("asset_id", asset.ID.String()).
			Str("tx_id", txn.ID.String()).
			Str("reason", reason).
			Msg("transaction failed")

		return entry, nil
	})
}

// FetchBalance reads the latest ledger snapshot for an asset. An asset with
// no ledger history has zero balances, not an error.
func (s *WalletServiceImpl) FetchBalance(ctx context.Context, assetID uuid.UUID) (domain.Balance, error) {
	if cached, err := s.balCache.Get(ctx, assetID); err != nil {
		s.log.Warn().Err(err).Str("asset_id", assetID.String()).Msg("balance cache read failed, falling through to ledger")
	} else if cached != nil {
		return *cached, nil
	}

	last, err := s.ledgerRepo.Latest(ctx, assetID)
	if err != nil {
		return domain.Balance{}, storeErr(err)
	}

	var balance domain.Balance
	var seq int64
	if last != nil {
		balance = last.BalanceOf()
		seq = last.Sequence
	}

	if err := s.balCache.Set(ctx, assetID, balance, seq, balanceCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("asset_id", assetID.String()).Msg("failed to cache balance snapshot")
	}

	return balance, nil
}

// ListTransactions returns the journal for an asset, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, assetID uuid.UUID) ([]domain.Transaction, error) {
	txns, err := s.txRepo.ListByAsset(ctx, assetID)
	if err != nil {
		return nil, storeErr(err)
	}
	return txns, nil
}

// LedgerHistory returns the newest ledger entries for an asset.
func (s *WalletServiceImpl) LedgerHistory(ctx context.Context, assetID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.ledgerRepo.ListByAsset(ctx, assetID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return entries, nil
}

// settle is the shared completion phase of the two-phase operations: load
// and lock the transaction, verify it is still a settleable instance of the
// expected type, append the settlement entry and flip the status to
// SUCCESSFUL, all in one atomic unit.
func (s *WalletServiceImpl) settle(
	ctx context.Context,
	op string,
	transactionID uuid.UUID,
	opType domain.TransactionType,
	deltas func(txn *domain.Transaction) (pendingDelta, availableDelta int64),
) (*domain.LedgerEntry, error) {
	return s.withRetry(ctx, op, func(ctx context.Context) (*domain.LedgerEntry, error) {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return nil, storeErr(err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, transactionID)
		if err != nil {
			return nil, storeErr(err)
		}
		if txn == nil {
			return nil, apperror.ErrNotFound("transaction")
		}
		if !txn.CanSettleAs(opType) {
			return nil, apperror.ErrInvalidState("transaction cannot be settled for this operation")
		}

		asset, err := s.assetRepo.GetByIDForUpdate(ctx, dbTx, txn.AssetID)
		if err != nil {
			return nil, storeErr(err)
		}
		if asset == nil {
			return nil, apperror.ErrNotFound("asset")
		}

		last, err := s.ledgerRepo.LatestInTx(ctx, dbTx, asset.ID)
		if err != nil {
			return nil, storeErr(err)
		}

		pendingDelta, availableDelta := deltas(txn)
		entry := domain.NextEntry(last, asset.ID, txn.ClerkType, txn.Type, txn.ID, pendingDelta, availableDelta)
		if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
			return nil, storeErr(err)
		}

		// Status flips only after the settlement entry is in the same unit.
		if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusSuccessful); err != nil {
			return nil, storeErr(err)
		}

		if err := dbTx.Commit(ctx); err != nil {
			return nil, storeErr(err)
		}
		s.cacheSnapshot(ctx, entry)

		s.log.Info().
			Str("asset_id", asset.ID.String()).
			Str("tx_id", txn.ID.String()).
			Int64("amount", txn.Amount).
			Str("op", op).
			Msg("transaction settled")

		return entry, nil
	})
}

// withRetry runs fn up to the configured attempt count, retrying only
// transient kinds (ConcurrentModification, StoreUnavailable) with linear
// backoff. Business-rule failures surface immediately.
func (s *WalletServiceImpl) withRetry(ctx context.Context, op string, fn func(ctx context.Context) (*domain.LedgerEntry, error)) (*domain.LedgerEntry, error) {
	attempts := s.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		entry, err := fn(ctx)
		if err == nil {
			return entry, nil
		}
		if !apperror.IsRetryable(err) {
			return nil, err
		}
		lastErr = err

		s.log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Msg("retryable store failure")

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, apperror.ErrStoreUnavailable(ctx.Err())
			case <-time.After(time.Duration(attempt) * s.retry.Backoff):
			}
		}
	}
	return nil, lastErr
}

// cacheSnapshot refreshes the cached balance with the entry just committed
// (best-effort; the sequence guard discards whichever writer saw an older
// ledger state).
func (s *WalletServiceImpl) cacheSnapshot(ctx context.Context, entry *domain.LedgerEntry) {
	if err := s.balCache.Set(ctx, entry.AssetID, entry.BalanceOf(), entry.Sequence, balanceCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("asset_id", entry.AssetID.String()).Msg("failed to cache balance snapshot")
	}
}

// validMovement bounds a movement's monetary inputs.
func validMovement(amount, fee int64) bool {
	return amount > 0 && amount <= maxMovementAmount && fee >= 0 && fee <= maxMovementAmount
}

// newTransaction builds a PENDING journal record for an operation attempt.
func newTransaction(asset *domain.Asset, req ports.MovementRequest, clerk domain.ClerkType, opType domain.TransactionType) *domain.Transaction {
	now := time.Now().UTC()
	return &domain.Transaction{
		ID:          uuid.New(),
		UserID:      asset.UserID,
		AssetID:     asset.ID,
		Symbol:      asset.Symbol,
		Amount:      req.Amount,
		Fee:         req.Fee,
		TotalAmount: req.Amount + req.Fee,
		ClerkType:   clerk,
		Type:        opType,
		Status:      domain.TransactionStatusPending,
		Reason:      req.Reason,
		Description: req.Description,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// compensatingDeltas returns the deltas that undo a transaction's initiation
// entry when it fails before settlement.
func compensatingDeltas(txn *domain.Transaction) (pendingDelta, availableDelta int64) {
	switch txn.Type {
	case domain.TransactionTypeWalletFund:
		return -txn.Amount, 0
	case domain.TransactionTypeWithdrawal:
		return 0, txn.Amount
	default:
		if txn.ClerkType == domain.ClerkTypeCredit {
			return 0, -txn.Amount
		}
		return 0, txn.Amount
	}
}

// storeErr preserves typed error kinds and wraps anything else as internal.
func storeErr(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.InternalError(err)
}
