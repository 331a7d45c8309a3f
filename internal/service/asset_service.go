package service

import (
	"context"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AssetServiceImpl implements ports.AssetService.
type AssetServiceImpl struct {
	assetRepo  ports.AssetRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewAssetService creates a new AssetServiceImpl.
func NewAssetService(assetRepo ports.AssetRepository, transactor ports.DBTransactor, log zerolog.Logger) *AssetServiceImpl {
	return &AssetServiceImpl{
		assetRepo:  assetRepo,
		transactor: transactor,
		log:        log,
	}
}

// CreateAsset registers a new balance container for a user and symbol.
// Withdrawals start ACTIVE. The unique (user_id, symbol) constraint is the
// authority on duplicates; the pre-check only gives a friendlier fast path.
func (s *AssetServiceImpl) CreateAsset(ctx context.Context, userID, symbol string) (*domain.Asset, error) {
	userID = strings.TrimSpace(userID)
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if userID == "" {
		return nil, apperror.Validation("user id is required")
	}
	if symbol == "" {
		return nil, apperror.Validation("symbol is required")
	}

	existing, err := s.assetRepo.GetByUserSymbol(ctx, userID, symbol)
	if err != nil {
		return nil, storeErr(err)
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateAsset()
	}

	now := time.Now().UTC()
	asset := &domain.Asset{
		ID:                 uuid.New(),
		UserID:             userID,
		Symbol:             symbol,
		WithdrawalActivity: domain.ActivityStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.assetRepo.Create(ctx, asset); err != nil {
		return nil, storeErr(err)
	}

	s.log.Info().
		Str("asset_id", asset.ID.String()).
		Str("user_id", userID).
		Str("symbol", symbol).
		Msg("asset created")

	return asset, nil
}

// GetAsset retrieves an asset by its canonical id.
func (s *AssetServiceImpl) GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	asset, err := s.assetRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("asset")
	}
	return asset, nil
}

// GetUserAsset retrieves an asset by its owning user and symbol.
func (s *AssetServiceImpl) GetUserAsset(ctx context.Context, userID, symbol string) (*domain.Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	asset, err := s.assetRepo.GetByUserSymbol(ctx, strings.TrimSpace(userID), symbol)
	if err != nil {
		return nil, storeErr(err)
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("asset")
	}
	return asset, nil
}

// SuspendWithdrawals flips the asset's withdrawal activity to SUSPENDED.
// In-flight charges are unaffected; only new ChargeAsset calls are refused.
func (s *AssetServiceImpl) SuspendWithdrawals(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	return s.setWithdrawalActivity(ctx, id, domain.ActivityStatusSuspended)
}

// ResumeWithdrawals flips the asset's withdrawal activity back to ACTIVE.
func (s *AssetServiceImpl) ResumeWithdrawals(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	return s.setWithdrawalActivity(ctx, id, domain.ActivityStatusActive)
}

func (s *AssetServiceImpl) setWithdrawalActivity(ctx context.Context, id uuid.UUID, status domain.ActivityStatus) (*domain.Asset, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	asset, err := s.assetRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("asset")
	}

	if asset.WithdrawalActivity != status {
		if err := s.assetRepo.UpdateWithdrawalActivity(ctx, dbTx, id, status); err != nil {
			return nil, storeErr(err)
		}
		asset.WithdrawalActivity = status
		asset.UpdatedAt = time.Now().UTC()
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeErr(err)
	}

	s.log.Info().
		Str("asset_id", id.String()).
		Str("withdrawal_activity", string(status)).
		Msg("asset withdrawal activity updated")

	return asset, nil
}
