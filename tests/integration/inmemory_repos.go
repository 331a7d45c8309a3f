package integration

import (
	"context"
	"sync"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memStore is a shared in-memory backing store. Row locks taken by the
// ForUpdate methods are held by the memTx until Commit or Rollback, which
// reproduces the serialization the SQL row locks provide.
type memStore struct {
	mu        sync.RWMutex
	assets    map[uuid.UUID]*domain.Asset
	txns      map[uuid.UUID]*domain.Transaction
	ledgers   map[uuid.UUID][]domain.LedgerEntry
	assetLock map[uuid.UUID]*sync.Mutex
	txnLock   map[uuid.UUID]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		assets:    make(map[uuid.UUID]*domain.Asset),
		txns:      make(map[uuid.UUID]*domain.Transaction),
		ledgers:   make(map[uuid.UUID][]domain.LedgerEntry),
		assetLock: make(map[uuid.UUID]*sync.Mutex),
		txnLock:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *memStore) txnByID(id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txns[id]
	if !ok {
		return nil, apperror.ErrNotFound("transaction")
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) lockForAsset(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.assetLock[id]
	if !ok {
		l = &sync.Mutex{}
		s.assetLock[id] = l
	}
	return l
}

func (s *memStore) lockForTxn(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.txnLock[id]
	if !ok {
		l = &sync.Mutex{}
		s.txnLock[id] = l
	}
	return l
}

// --- memTx ---

// memTx implements pgx.Tx. It tracks the row locks acquired during the unit
// of work and buffers the writes the repositories stage: Commit applies them
// under the store lock, Rollback discards them, and either way the row locks
// release exactly once. Writes are invisible to other units until Commit.
type memTx struct {
	store  *memStore
	mu     sync.Mutex
	held   []*sync.Mutex
	staged []func()
	ended  bool
}

func (t *memTx) hold(l *sync.Mutex) {
	l.Lock()
	t.mu.Lock()
	t.held = append(t.held, l)
	t.mu.Unlock()
}

// stage queues a mutation to apply on Commit. The callback runs with the
// store lock held.
func (t *memTx) stage(fn func()) {
	t.mu.Lock()
	t.staged = append(t.staged, fn)
	t.mu.Unlock()
}

func (t *memTx) end(apply bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return
	}
	t.ended = true
	if apply {
		t.store.mu.Lock()
		for _, fn := range t.staged {
			fn()
		}
		t.store.mu.Unlock()
	}
	t.staged = nil
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(ctx context.Context) error          { t.end(true); return nil }
func (t *memTx) Rollback(ctx context.Context) error        { t.end(false); return nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// --- Transactor ---

type memTransactor struct {
	store *memStore
}

func (tr memTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{store: tr.store}, nil
}

// --- Asset Repo ---

type memAssetRepo struct {
	store *memStore
}

func (r *memAssetRepo) Create(ctx context.Context, a *domain.Asset) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.assets {
		if existing.UserID == a.UserID && existing.Symbol == a.Symbol {
			return apperror.ErrDuplicateAsset()
		}
	}
	cp := *a
	r.store.assets[a.ID] = &cp
	return nil
}

func (r *memAssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.assets[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAssetRepo) GetByUserSymbol(ctx context.Context, userID, symbol string) (*domain.Asset, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, a := range r.store.assets {
		if a.UserID == userID && a.Symbol == symbol {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memAssetRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Asset, error) {
	if mt, ok := tx.(*memTx); ok {
		mt.hold(r.store.lockForAsset(id))
	}
	return r.GetByID(ctx, id)
}

func (r *memAssetRepo) UpdateWithdrawalActivity(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ActivityStatus) error {
	r.store.mu.RLock()
	_, ok := r.store.assets[id]
	r.store.mu.RUnlock()
	if !ok {
		return apperror.ErrNotFound("asset")
	}
	tx.(*memTx).stage(func() {
		if a, ok := r.store.assets[id]; ok {
			a.WithdrawalActivity = status
		}
	})
	return nil
}

// --- Ledger Repo ---

type memLedgerRepo struct {
	store *memStore
}

func (r *memLedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	r.store.mu.RLock()
	for _, existing := range r.store.ledgers[e.AssetID] {
		if existing.Sequence == e.Sequence {
			r.store.mu.RUnlock()
			return apperror.ErrConcurrentModification(nil)
		}
	}
	r.store.mu.RUnlock()
	entry := *e
	tx.(*memTx).stage(func() {
		r.store.ledgers[entry.AssetID] = append(r.store.ledgers[entry.AssetID], entry)
	})
	return nil
}

func (r *memLedgerRepo) Latest(ctx context.Context, assetID uuid.UUID) (*domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	entries := r.store.ledgers[assetID]
	if len(entries) == 0 {
		return nil, nil
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Sequence > latest.Sequence {
			latest = e
		}
	}
	return &latest, nil
}

func (r *memLedgerRepo) LatestInTx(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.LedgerEntry, error) {
	return r.Latest(ctx, assetID)
}

func (r *memLedgerRepo) ListByAsset(ctx context.Context, assetID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	entries := r.store.ledgers[assetID]
	out := make([]domain.LedgerEntry, len(entries))
	copy(out, entries)
	// Newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Transaction Repo ---

type memTransactionRepo struct {
	store *memStore
}

func (r *memTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	cp := *t
	tx.(*memTx).stage(func() {
		r.store.txns[cp.ID] = &cp
	})
	return nil
}

func (r *memTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	t, ok := r.store.txns[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	if mt, ok := tx.(*memTx); ok {
		mt.hold(r.store.lockForTxn(id))
	}
	return r.GetByID(ctx, id)
}

func (r *memTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	r.store.mu.RLock()
	t, ok := r.store.txns[id]
	if ok && t.Status != domain.TransactionStatusPending {
		r.store.mu.RUnlock()
		return apperror.ErrInvalidState("transaction is already in a terminal state")
	}
	r.store.mu.RUnlock()
	if !ok {
		return apperror.ErrNotFound("transaction")
	}
	tx.(*memTx).stage(func() {
		if t, ok := r.store.txns[id]; ok {
			t.Status = status
		}
	})
	return nil
}

func (r *memTransactionRepo) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range r.store.txns {
		if t.AssetID == assetID {
			out = append(out, *t)
		}
	}
	return out, nil
}
