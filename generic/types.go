/*
Package generic provides the shared model of the finance engine.

PURPOSE:
  This package contains the domain-agnostic types every derivation works
  on: money, assets, transactions and calendar time. Billing cycles,
  installment splitting and loan schedules live in their own packages and
  only ever read these values.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A whole-currency amount backed by decimal.Decimal
  - Asset: A snapshot of an account (balance is signed, negative = debt)
  - Transaction: An immutable ledger entry (amount is an unsigned magnitude)
  - Installment: Optional multi-month split attached to a purchase

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only appended
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Explicit optionals: CreditConfig, Installment and Limit are pointers,
     and absence is a branch the caller must handle
  4. Type Safety: Strong typing for IDs prevents mixing asset/transaction IDs

USAGE:
  card := generic.Asset{
      ID:      "card-1",
      Type:    generic.AssetCreditCard,
      Balance: generic.NewMoney(-120000),
      Credit:  &generic.CreditConfig{UsageStartDay: 1, PaymentDay: 14},
  }

SEE ALSO:
  - time.go: Calendar-safe date arithmetic
  - ledger.go: Append-only transaction log
  - billing/statement.go: Statement aggregation over these types
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Whole-currency amount
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

func NewMoneyFromFloat(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Value: d}
}

// DecimalOrZero parses s, yielding zero for malformed input.
func DecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money              { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money              { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money    { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money    { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                     { return Money{Value: m.Value.Neg()} }
func (m Money) Abs() Money                     { return Money{Value: m.Value.Abs()} }
func (m Money) Floor() Money                   { return Money{Value: m.Value.Floor()} }
func (m Money) Round() Money                   { return Money{Value: m.Value.Round(0)} }
func (m Money) IsNegative() bool               { return m.Value.IsNegative() }
func (m Money) IsZero() bool                   { return m.Value.IsZero() }
func (m Money) IsPositive() bool               { return m.Value.IsPositive() }
func (m Money) Equal(b Money) bool             { return m.Value.Equal(b.Value) }
func (m Money) GreaterThan(b Money) bool       { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool          { return m.Value.LessThan(b.Value) }
func (m Money) Float64() float64               { return m.Value.InexactFloat64() }
func (m Money) String() string                 { return m.Value.String() }

func (m Money) Min(b Money) Money {
	if m.LessThan(b) {
		return m
	}
	return b
}

func (m Money) Max(b Money) Money {
	if m.GreaterThan(b) {
		return m
	}
	return b
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AssetID string
type TransactionID string

// =============================================================================
// ASSET - Account snapshot read by the engine
// =============================================================================

type AssetType string

const (
	AssetCash       AssetType = "CASH"
	AssetChecking   AssetType = "CHECKING"
	AssetSavings    AssetType = "SAVINGS"
	AssetCreditCard AssetType = "CREDIT_CARD"
	AssetInvestment AssetType = "INVESTMENT"
)

// Valid reports whether t is one of the known asset types.
func (t AssetType) Valid() bool {
	switch t {
	case AssetCash, AssetChecking, AssetSavings, AssetCreditCard, AssetInvestment:
		return true
	}
	return false
}

// CreditConfig holds the billing-cycle settings of a credit card.
type CreditConfig struct {
	UsageStartDay int             // 1..31, first day of the usage window
	PaymentDay    int             // 1..31, day the statement is paid
	APR           decimal.Decimal // annual percentage rate for interest-bearing installments
}

// Asset is a snapshot of an account. The engine never mutates it; balance
// changes are owned by the surrounding store.
type Asset struct {
	ID       AssetID
	Name     string
	Type     AssetType
	Balance  Money // negative = debt
	Currency string

	// Credit card specifics. Nil for every other asset type, and may be
	// nil for a card that was never configured.
	Credit *CreditConfig
	Limit  *Money
}

// Debt returns the outstanding debt of the asset, never negative.
func (a Asset) Debt() Money {
	if a.Balance.IsNegative() {
		return a.Balance.Abs()
	}
	return ZeroMoney()
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

type TransactionType string

const (
	TxExpense  TransactionType = "EXPENSE"
	TxIncome   TransactionType = "INCOME"
	TxTransfer TransactionType = "TRANSFER"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TxExpense || t == TxIncome || t == TxTransfer
}

// MaxTermMonths caps installment and loan terms. Splitting and amortizing
// allocate one entry per month, so larger terms are rejected.
const MaxTermMonths = 600

// Installment splits a purchase into monthly charges.
type Installment struct {
	TotalMonths  int
	InterestFree bool

	// APR overrides the card APR for this purchase when set.
	APR *decimal.Decimal
}

// IsMultiMonth reports whether the installment spans more than one month.
func (i *Installment) IsMultiMonth() bool {
	return i != nil && i.TotalMonths > 1
}

type Transaction struct {
	ID        TransactionID
	AssetID   AssetID
	ToAssetID AssetID // destination for transfers, empty otherwise
	Type      TransactionType
	Date      TimePoint
	Amount    Money // unsigned magnitude
	Category  string
	Memo      string

	Installment    *Installment
	IdempotencyKey string
	CreatedAt      TimePoint
}

// IsChargeOn reports whether the transaction moves money out of the asset
// (an expense booked on it, or a transfer leaving it).
func (t Transaction) IsChargeOn(assetID AssetID) bool {
	if t.AssetID != assetID {
		return false
	}
	return t.Type == TxExpense || t.Type == TxTransfer
}

// IsIncomingTo reports whether the transaction adds money to the asset.
func (t Transaction) IsIncomingTo(assetID AssetID) bool {
	switch t.Type {
	case TxIncome:
		return t.AssetID == assetID
	case TxTransfer:
		return t.ToAssetID == assetID
	}
	return false
}
