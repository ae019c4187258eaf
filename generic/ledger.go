/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable record of every charge, income and transfer
  on an asset. The engine only reads it; writes go through Append, which
  enforces idempotency and never edits existing entries.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

BALANCE TREND:
  The asset balance is owned by the store. To chart how it evolved, the
  ledger replays transactions backwards from the current balance: an
  incoming transaction is subtracted, an outgoing one is added back.

  Balance now: -50000
  Tx Mar 10: expense 20000  → before it: -30000
  Tx Mar 02: income  10000  → before it: -40000

SEE ALSO:
  - store.go: Low-level persistence interface
  - billing/statement.go: Consumes LoadTransactions output
*/
package generic

import (
	"context"
	"sort"
)

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

type Ledger interface {
	// Append adds transactions atomically. Fails if any idempotency key exists.
	Append(ctx context.Context, txs ...Transaction) error

	// Transactions returns all transactions touching the asset, chronologically.
	Transactions(ctx context.Context, assetID AssetID) ([]Transaction, error)

	// TransactionsInRange returns transactions dated in [from, to].
	TransactionsInRange(ctx context.Context, assetID AssetID, from, to TimePoint) ([]Transaction, error)

	// BalanceTrend replays the log backwards from the asset's current balance.
	BalanceTrend(ctx context.Context, asset Asset, today TimePoint, limit int) ([]BalancePoint, error)
}

// BalancePoint is the balance of an asset just before the transaction dated
// Date was booked. The newest point carries today's balance.
type BalancePoint struct {
	Date    TimePoint
	Balance Money
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store WritableStore
}

func NewLedger(store WritableStore) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, txs ...Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true

		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendTransactions(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, assetID AssetID) ([]Transaction, error) {
	return l.Store.LoadTransactions(ctx, assetID)
}

func (l *DefaultLedger) TransactionsInRange(ctx context.Context, assetID AssetID, from, to TimePoint) ([]Transaction, error) {
	txs, err := l.Store.LoadTransactions(ctx, assetID)
	if err != nil {
		return nil, err
	}
	period := Period{Start: from, End: to}
	var result []Transaction
	for _, tx := range txs {
		if period.Contains(tx.Date) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (l *DefaultLedger) BalanceTrend(ctx context.Context, asset Asset, today TimePoint, limit int) ([]BalancePoint, error) {
	txs, err := l.Store.LoadTransactions(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	return ReplayBalance(asset, txs, today, limit), nil
}

// ReplayBalance walks txs newest-first, undoing each one from the current
// balance. The result is chronological and holds at most limit points
// (limit <= 0 means unbounded); the newest point is today's balance.
func ReplayBalance(asset Asset, txs []Transaction, today TimePoint, limit int) []BalancePoint {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	running := asset.Balance
	points := []BalancePoint{{Date: today.Date(), Balance: running}}
	for i := len(sorted) - 1; i >= 0; i-- {
		if limit > 0 && len(points) >= limit {
			break
		}
		tx := sorted[i]
		switch {
		case tx.IsIncomingTo(asset.ID):
			running = running.Sub(tx.Amount)
		case tx.AssetID == asset.ID:
			running = running.Add(tx.Amount)
		default:
			continue
		}
		points = append(points, BalancePoint{Date: tx.Date.Date(), Balance: running})
	}

	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}
