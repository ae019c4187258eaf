// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/finance-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	assets       map[generic.AssetID]generic.Asset
	transactions []generic.Transaction
	idempotency  map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		assets:      make(map[generic.AssetID]generic.Asset),
		idempotency: make(map[string]bool),
	}
}

func (m *Memory) SaveAsset(_ context.Context, asset generic.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[asset.ID] = asset
	return nil
}

func (m *Memory) GetAsset(_ context.Context, id generic.AssetID) (generic.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return generic.Asset{}, generic.ErrAssetNotFound
	}
	return a, nil
}

func (m *Memory) ListAssets(_ context.Context) ([]generic.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.Asset, 0, len(m.assets))
	for _, a := range m.assets {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// AppendTransactions adds multiple transactions atomically.
func (m *Memory) AppendTransactions(_ context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	batch := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[tx.IdempotencyKey] || batch[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		batch[tx.IdempotencyKey] = true
	}

	for _, tx := range txs {
		m.appendLocked(tx)
	}
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) {
	// Binary search for insertion point keeps the log ordered by date
	i := sort.Search(len(m.transactions), func(i int) bool {
		return m.transactions[i].Date.After(tx.Date)
	})

	m.transactions = append(m.transactions, generic.Transaction{})
	copy(m.transactions[i+1:], m.transactions[i:])
	m.transactions[i] = tx

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
}

func (m *Memory) LoadTransactions(_ context.Context, assetID generic.AssetID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Transaction
	for _, tx := range m.transactions {
		if tx.AssetID == assetID || tx.ToAssetID == assetID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.WritableStore) error) error {
	tm.mu.Lock()
	snapshot := tm.snapshot()
	tm.mu.Unlock()

	if err := fn(tm.Memory); err != nil {
		tm.mu.Lock()
		tm.restore(snapshot)
		tm.mu.Unlock()
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	assets := make(map[generic.AssetID]generic.Asset, len(tm.assets))
	for k, v := range tm.assets {
		assets[k] = v
	}
	idemp := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idemp[k] = v
	}
	return memorySnapshot{
		assets:       assets,
		transactions: append([]generic.Transaction{}, tm.transactions...),
		idempotency:  idemp,
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.assets = s.assets
	tm.transactions = s.transactions
	tm.idempotency = s.idempotency
}

type memorySnapshot struct {
	assets       map[generic.AssetID]generic.Asset
	transactions []generic.Transaction
	idempotency  map[string]bool
}

var (
	_ generic.WritableStore = (*Memory)(nil)
	_ generic.TxStore       = (*TxMemory)(nil)
)
