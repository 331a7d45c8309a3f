package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint names referenced when classifying unique violations.
const (
	assetUserSymbolConstraint     = "assets_user_symbol_uc"
	ledgerAssetSequenceConstraint = "ledgers_asset_sequence_uc"
)

// PostgreSQL error codes the engine reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// translateErr maps low-level postgres failures onto the typed error kinds
// the engine's retry policy understands. Anything unrecognized is wrapped
// with the operation name and surfaced as-is.
func translateErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			if pgErr.ConstraintName == assetUserSymbolConstraint {
				return apperror.ErrDuplicateAsset()
			}
			if pgErr.ConstraintName == ledgerAssetSequenceConstraint {
				// Compare-and-append lost the race for the next sequence.
				return apperror.ErrConcurrentModification(fmt.Errorf("%s: %w", op, err))
			}
		case codeSerializationFailure, codeLockNotAvailable:
			return apperror.ErrConcurrentModification(fmt.Errorf("%s: %w", op, err))
		case codeQueryCanceled:
			return apperror.ErrStoreUnavailable(fmt.Errorf("%s: %w", op, err))
		}
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrStoreUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
