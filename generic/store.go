/*
store.go - Source interface for assets and transactions

PURPOSE:
  Defines the boundary between the derivation engine and whatever owns the
  account data. The engine never fetches, caches or paginates on its own:
  callers load an Asset snapshot and its transactions through a Store and
  hand plain values to the pure functions in billing/ and loan/.

KEY INTERFACES:
  Store:         Read side (asset snapshot, transaction history)
  WritableStore: Append-only transaction log plus asset registration
  TxStore:       Atomic multi-write operations

APPEND-ONLY CONTRACT:
  - AppendTransactions(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist for transactions
  - Asset balances are owned by the store, never by the engine

IDEMPOTENCY:
  A transaction may carry an idempotency key. If the key already exists,
  the write is rejected with ErrDuplicateIdempotencyKey.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (WAL)
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// =============================================================================
// STORE - Read side consumed by the engine
// =============================================================================

// Store supplies asset snapshots and their transaction history.
type Store interface {
	// GetAsset returns the asset or ErrAssetNotFound.
	GetAsset(ctx context.Context, id AssetID) (Asset, error)

	// ListAssets returns all assets ordered by name.
	ListAssets(ctx context.Context) ([]Asset, error)

	// LoadTransactions returns every transaction touching the asset (as
	// source or transfer destination), ordered by Date.
	LoadTransactions(ctx context.Context, assetID AssetID) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// WritableStore extends Store with the only writes the service performs.
type WritableStore interface {
	Store

	// SaveAsset registers or replaces an asset snapshot.
	SaveAsset(ctx context.Context, asset Asset) error

	// AppendTransactions persists transactions atomically.
	// Either all succeed or none do.
	AppendTransactions(ctx context.Context, txs []Transaction) error
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps WritableStore with transaction support.
type TxStore interface {
	WritableStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(WritableStore) error) error
}

// Atomically runs fn inside a transaction of s. Stores without
// transaction support return ErrStoreRequired.
func Atomically(ctx context.Context, s WritableStore, fn func(WritableStore) error) error {
	ts, ok := s.(TxStore)
	if !ok {
		return ErrStoreRequired
	}
	return ts.WithTx(ctx, fn)
}
