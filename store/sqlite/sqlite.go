/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore on SQLite so the service can read asset
  snapshots and their transaction history, and keeps the statement snapshots
  written by the scheduler. In production the same patterns apply to
  PostgreSQL with minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.Store:         Asset snapshots and transaction history
  generic.WritableStore: Asset registration and append-only transaction log
  generic.TxStore:       Atomic multi-write operations
  SaveSnapshot/ListSnapshots: Statement snapshots for the scheduler

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the transactions table
  - No DELETE statements on the transactions table (Reset aside)
  - Asset balances are written by whoever owns the account, never derived
    from transactions here

KEY TABLES:
  assets:              Account snapshots (credit config as JSON)
  transactions:        Immutable ledger of charges, income and transfers
  statement_snapshots: Statement results captured by the scheduler

INDEXES:
  - idx_transactions_asset_date: Statement aggregation (hot path)
  - idx_transactions_to_asset:   Incoming transfers for the balance trend
  - idempotency_key UNIQUE:      Retry protection

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/finance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/ledger.go: Higher-level ledger using Store
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/factory"
	"github.com/warp/finance-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.AssetFactory
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, factory: factory.NewAssetFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Assets (account snapshots)
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		asset_type TEXT NOT NULL,
		balance TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'KRW',
		credit_limit TEXT,
		config_json TEXT,
		updated_at TEXT NOT NULL
	);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL,
		to_asset_id TEXT,
		tx_type TEXT NOT NULL,
		tx_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT,
		memo TEXT,
		installment_json TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_asset_date
		ON transactions(asset_id, tx_date);
	CREATE INDEX IF NOT EXISTS idx_transactions_to_asset
		ON transactions(to_asset_id) WHERE to_asset_id IS NOT NULL;

	-- Statement snapshots (written by the scheduler)
	CREATE TABLE IF NOT EXISTS statement_snapshots (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		usage_start TEXT NOT NULL,
		usage_end TEXT NOT NULL,
		statement_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(asset_id, payment_date)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_asset
		ON statement_snapshots(asset_id, payment_date DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ASSETS
// =============================================================================

// SaveAsset registers or replaces an asset snapshot.
func (s *Store) SaveAsset(ctx context.Context, asset generic.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAsset(ctx, s.db, asset)
}

func (s *Store) saveAsset(ctx context.Context, q querier, asset generic.Asset) error {
	var configJSON sql.NullString
	if asset.Credit != nil {
		cj := s.factory.ToAssetJSON(asset).Credit
		b, err := json.Marshal(cj)
		if err != nil {
			return fmt.Errorf("failed to encode credit config: %w", err)
		}
		configJSON = sql.NullString{String: string(b), Valid: true}
	}
	var limit sql.NullString
	if asset.Limit != nil {
		limit = sql.NullString{String: asset.Limit.String(), Valid: true}
	}

	query := `
		INSERT INTO assets (id, name, asset_type, balance, currency, credit_limit, config_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			asset_type = excluded.asset_type,
			balance = excluded.balance,
			currency = excluded.currency,
			credit_limit = excluded.credit_limit,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		asset.ID, asset.Name, asset.Type, asset.Balance.String(), asset.Currency,
		limit, configJSON, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}
	return nil
}

// GetAsset returns the asset or generic.ErrAssetNotFound.
func (s *Store) GetAsset(ctx context.Context, id generic.AssetID) (generic.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAsset(ctx, s.db, id)
}

func (s *Store) getAsset(ctx context.Context, q querier, id generic.AssetID) (generic.Asset, error) {
	rows, err := q.QueryContext(ctx, assetSelect+` WHERE id = ?`, id)
	if err != nil {
		return generic.Asset{}, fmt.Errorf("failed to query asset: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return generic.Asset{}, err
		}
		return generic.Asset{}, generic.ErrAssetNotFound
	}
	return scanAsset(rows)
}

// ListAssets returns all assets ordered by name.
func (s *Store) ListAssets(ctx context.Context) ([]generic.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAssets(ctx, s.db)
}

func (s *Store) listAssets(ctx context.Context, q querier) ([]generic.Asset, error) {
	rows, err := q.QueryContext(ctx, assetSelect+` ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []generic.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

const assetSelect = `
	SELECT id, name, asset_type, balance, currency, credit_limit, config_json
	FROM assets`

func scanAsset(rows *sql.Rows) (generic.Asset, error) {
	var (
		a          generic.Asset
		balance    string
		limit      sql.NullString
		configJSON sql.NullString
	)
	if err := rows.Scan(&a.ID, &a.Name, &a.Type, &balance, &a.Currency, &limit, &configJSON); err != nil {
		return a, fmt.Errorf("failed to scan asset: %w", err)
	}
	a.Balance = generic.NewMoneyFromDecimal(generic.DecimalOrZero(balance))
	if limit.Valid {
		l := generic.NewMoneyFromDecimal(generic.DecimalOrZero(limit.String))
		a.Limit = &l
	}
	if configJSON.Valid && configJSON.String != "" {
		var cj factory.CreditJSON
		if err := json.Unmarshal([]byte(configJSON.String), &cj); err != nil {
			return a, fmt.Errorf("failed to decode credit config of %s: %w", a.ID, err)
		}
		a.Credit = &generic.CreditConfig{
			UsageStartDay: cj.UsageStartDay,
			PaymentDay:    cj.PaymentDay,
			APR:           decimal.NewFromFloat(cj.APR),
		}
	}
	return a, nil
}

// =============================================================================
// TRANSACTION STORE (generic.WritableStore interface)
// =============================================================================

// AppendTransactions adds multiple transactions atomically.
func (s *Store) AppendTransactions(ctx context.Context, txs []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	idempotencyKeys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if idempotencyKeys[tx.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			idempotencyKeys[tx.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := s.appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func (s *Store) appendTx(ctx context.Context, q querier, tx generic.Transaction) error {
	var installmentJSON sql.NullString
	if tx.Installment != nil {
		b, err := json.Marshal(s.factory.ToTransactionJSON(tx).Installment)
		if err != nil {
			return fmt.Errorf("failed to encode installment: %w", err)
		}
		installmentJSON = sql.NullString{String: string(b), Valid: true}
	}

	createdAt := tx.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions
		(id, asset_id, to_asset_id, tx_type, tx_date, amount, category, memo,
		 installment_json, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		tx.ID,
		tx.AssetID,
		nullString(string(tx.ToAssetID)),
		tx.Type,
		tx.Date.Date().String(),
		tx.Amount.String(),
		tx.Category,
		tx.Memo,
		installmentJSON,
		nullString(tx.IdempotencyKey),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "idempotency_key") {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("%w: %v", generic.ErrTransactionFailed, err)
	}
	return nil
}

// LoadTransactions returns every transaction booked on the asset or
// transferred into it, ordered by date.
func (s *Store) LoadTransactions(ctx context.Context, assetID generic.AssetID) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadTransactions(ctx, s.db, assetID)
}

func (s *Store) loadTransactions(ctx context.Context, q querier, assetID generic.AssetID) ([]generic.Transaction, error) {
	query := `
		SELECT id, asset_id, to_asset_id, tx_type, tx_date, amount, category, memo,
		       installment_json, idempotency_key, created_at
		FROM transactions
		WHERE asset_id = ? OR to_asset_id = ?
		ORDER BY tx_date ASC, created_at ASC
	`
	rows, err := q.QueryContext(ctx, query, assetID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return exists(ctx, s.db, idempotencyKey)
}

func exists(ctx context.Context, q querier, idempotencyKey string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx              generic.Transaction
		toAssetID       sql.NullString
		txDate          string
		amount          string
		category        sql.NullString
		memo            sql.NullString
		installmentJSON sql.NullString
		idempotencyKey  sql.NullString
		createdAt       string
	)

	err := rows.Scan(
		&tx.ID, &tx.AssetID, &toAssetID, &tx.Type, &txDate, &amount,
		&category, &memo, &installmentJSON, &idempotencyKey, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	date, err := generic.ParseDate(txDate)
	if err != nil {
		return tx, fmt.Errorf("transaction %s has malformed date %q: %w", tx.ID, txDate, err)
	}
	tx.Date = date
	tx.ToAssetID = generic.AssetID(toAssetID.String)
	tx.Amount = generic.NewMoneyFromDecimal(generic.DecimalOrZero(amount))
	tx.Category = category.String
	tx.Memo = memo.String
	tx.IdempotencyKey = idempotencyKey.String
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		tx.CreatedAt = generic.TimePoint{Time: t, Granularity: generic.GranularityInstant}
	}

	if installmentJSON.Valid && installmentJSON.String != "" {
		var ij factory.InstallmentJSON
		if err := json.Unmarshal([]byte(installmentJSON.String), &ij); err != nil {
			return tx, fmt.Errorf("failed to decode installment of %s: %w", tx.ID, err)
		}
		inst := &generic.Installment{TotalMonths: ij.TotalMonths, InterestFree: ij.InterestFree}
		if ij.APR != nil {
			apr := decimal.NewFromFloat(*ij.APR)
			inst.APR = &apr
		}
		tx.Installment = inst
	}

	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.WritableStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open transaction. The parent lock is
// already held by WithTx.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) SaveAsset(ctx context.Context, asset generic.Asset) error {
	return ts.parent.saveAsset(ctx, ts.tx, asset)
}

func (ts *txStore) GetAsset(ctx context.Context, id generic.AssetID) (generic.Asset, error) {
	return ts.parent.getAsset(ctx, ts.tx, id)
}

func (ts *txStore) ListAssets(ctx context.Context) ([]generic.Asset, error) {
	return ts.parent.listAssets(ctx, ts.tx)
}

func (ts *txStore) AppendTransactions(ctx context.Context, txs []generic.Transaction) error {
	for _, tx := range txs {
		if err := ts.parent.appendTx(ctx, ts.tx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) LoadTransactions(ctx context.Context, assetID generic.AssetID) ([]generic.Transaction, error) {
	return ts.parent.loadTransactions(ctx, ts.tx, assetID)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return exists(ctx, ts.tx, idempotencyKey)
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

// SnapshotRecord is a stored statement snapshot. StatementJSON holds the
// serialized statement as the API renders it.
type SnapshotRecord struct {
	ID            string
	AssetID       string
	PaymentDate   string // YYYY-MM-DD
	UsageStart    string
	UsageEnd      string
	StatementJSON string
	CreatedAt     time.Time
}

// SaveSnapshot saves a statement snapshot. A second snapshot for the same
// asset and payment date replaces the first.
func (s *Store) SaveSnapshot(ctx context.Context, snap SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO statement_snapshots
		(id, asset_id, payment_date, usage_start, usage_end, statement_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_id, payment_date) DO UPDATE SET
			usage_start = excluded.usage_start,
			usage_end = excluded.usage_end,
			statement_json = excluded.statement_json,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		snap.ID, snap.AssetID, snap.PaymentDate, snap.UsageStart, snap.UsageEnd,
		snap.StatementJSON, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the asset's snapshots, newest payment date first.
func (s *Store) ListSnapshots(ctx context.Context, assetID string) ([]SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, payment_date, usage_start, usage_end, statement_json, created_at
		FROM statement_snapshots
		WHERE asset_id = ?
		ORDER BY payment_date DESC
	`, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []SnapshotRecord
	for rows.Next() {
		var snap SnapshotRecord
		var createdAt string
		if err := rows.Scan(&snap.ID, &snap.AssetID, &snap.PaymentDate, &snap.UsageStart,
			&snap.UsageEnd, &snap.StatementJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"statement_snapshots", "transactions", "assets"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

var (
	_ generic.TxStore       = (*Store)(nil)
	_ generic.WritableStore = (*txStore)(nil)
)
