/*
Package factory provides JSON to Go conversion for assets, transactions and
recurring bills.

PURPOSE:
  Converts the JSON shapes used by the HTTP API, the demo scenarios and the
  sqlite config column into generic.Asset, generic.Transaction and
  recurring.Bill values. Every value that reaches the engine passes through
  here, so this is where malformed input is rejected.

JSON SCHEMA (asset):
  {
    "id": "card-shinhan",
    "name": "Shinhan Deep Dream",
    "type": "CREDIT_CARD",
    "balance": -452000,
    "currency": "KRW",
    "limit": 3000000,
    "credit": {"usage_start_day": 1, "payment_day": 14, "apr": 15.9}
  }

JSON SCHEMA (transaction):
  {
    "asset_id": "card-shinhan",
    "type": "EXPENSE",
    "date": "2024-03-02",
    "amount": 300000,
    "category": "Shopping",
    "installment": {"total_months": 3, "interest_free": true}
  }

VALIDATION:
  Unknown types, days outside 1..31, negative amounts and unparseable dates
  are rejected with generic.ErrInvalidArgument. A credit card may omit
  "credit"; the engine then returns a zeroed statement for it.

USAGE:
  f := factory.NewAssetFactory()
  asset, err := f.ParseAsset(factory.CreditCardJSON("card-1", "Travel", 15, 5, 2000000))

SEE ALSO:
  - generic/types.go: Target types
  - api/dto.go: Request/response wrappers around these shapes
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/generic"
	"github.com/warp/finance-engine/recurring"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// AssetJSON is the JSON representation of an asset.
type AssetJSON struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Balance  float64     `json:"balance"`
	Currency string      `json:"currency,omitempty"`
	Limit    *float64    `json:"limit,omitempty"`
	Credit   *CreditJSON `json:"credit,omitempty"`
}

// CreditJSON holds billing-cycle settings of a card.
type CreditJSON struct {
	UsageStartDay int     `json:"usage_start_day"`
	PaymentDay    int     `json:"payment_day"`
	APR           float64 `json:"apr,omitempty"`
}

// TransactionJSON is the JSON representation of a transaction.
type TransactionJSON struct {
	ID             string           `json:"id,omitempty"`
	AssetID        string           `json:"asset_id"`
	ToAssetID      string           `json:"to_asset_id,omitempty"`
	Type           string           `json:"type"`
	Date           string           `json:"date"` // YYYY-MM-DD
	Amount         float64          `json:"amount"`
	Category       string           `json:"category,omitempty"`
	Memo           string           `json:"memo,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	Installment    *InstallmentJSON `json:"installment,omitempty"`
}

// InstallmentJSON splits a purchase over several months.
type InstallmentJSON struct {
	TotalMonths  int      `json:"total_months"`
	InterestFree bool     `json:"interest_free"`
	APR          *float64 `json:"apr,omitempty"` // overrides the card APR
}

// BillJSON is the JSON representation of a recurring bill.
type BillJSON struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	DayOfMonth int     `json:"day_of_month"`
	Category   string  `json:"category,omitempty"`
	Type       string  `json:"bill_type,omitempty"`
}

// =============================================================================
// ASSET FACTORY
// =============================================================================

// AssetFactory converts JSON definitions to engine types.
type AssetFactory struct {
	// DefaultCurrency is applied to assets that do not name one.
	DefaultCurrency string
}

// NewAssetFactory creates a factory defaulting to KRW.
func NewAssetFactory() *AssetFactory {
	return &AssetFactory{DefaultCurrency: "KRW"}
}

// ParseAsset parses a JSON string into an Asset.
func (f *AssetFactory) ParseAsset(jsonStr string) (generic.Asset, error) {
	var aj AssetJSON
	if err := json.Unmarshal([]byte(jsonStr), &aj); err != nil {
		return generic.Asset{}, fmt.Errorf("failed to parse asset JSON: %w", err)
	}
	return f.AssetFromJSON(aj)
}

// AssetFromJSON validates aj and converts it to an Asset.
func (f *AssetFactory) AssetFromJSON(aj AssetJSON) (generic.Asset, error) {
	if aj.ID == "" {
		return generic.Asset{}, generic.InvalidArgument("id", aj.ID, "required")
	}
	assetType := generic.AssetType(aj.Type)
	if !assetType.Valid() {
		return generic.Asset{}, generic.InvalidArgument("type", aj.Type, "unknown asset type")
	}

	asset := generic.Asset{
		ID:       generic.AssetID(aj.ID),
		Name:     aj.Name,
		Type:     assetType,
		Balance:  generic.NewMoneyFromFloat(aj.Balance),
		Currency: aj.Currency,
	}
	if asset.Currency == "" {
		asset.Currency = f.DefaultCurrency
	}

	if aj.Limit != nil {
		if *aj.Limit < 0 {
			return generic.Asset{}, generic.InvalidArgument("limit", *aj.Limit, "must not be negative")
		}
		limit := generic.NewMoneyFromFloat(*aj.Limit)
		asset.Limit = &limit
	}

	if aj.Credit != nil {
		credit, err := parseCredit(*aj.Credit)
		if err != nil {
			return generic.Asset{}, err
		}
		asset.Credit = &credit
	}
	return asset, nil
}

// ToAssetJSON converts an Asset back to its JSON shape.
func (f *AssetFactory) ToAssetJSON(asset generic.Asset) AssetJSON {
	aj := AssetJSON{
		ID:       string(asset.ID),
		Name:     asset.Name,
		Type:     string(asset.Type),
		Balance:  asset.Balance.Float64(),
		Currency: asset.Currency,
	}
	if asset.Limit != nil {
		v := asset.Limit.Float64()
		aj.Limit = &v
	}
	if asset.Credit != nil {
		aj.Credit = &CreditJSON{
			UsageStartDay: asset.Credit.UsageStartDay,
			PaymentDay:    asset.Credit.PaymentDay,
			APR:           asset.Credit.APR.InexactFloat64(),
		}
	}
	return aj
}

// ParseTransaction parses a JSON string into a Transaction.
func (f *AssetFactory) ParseTransaction(jsonStr string) (generic.Transaction, error) {
	var tj TransactionJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return generic.Transaction{}, fmt.Errorf("failed to parse transaction JSON: %w", err)
	}
	return f.TransactionFromJSON(tj)
}

// TransactionFromJSON validates tj and converts it to a Transaction. A
// missing ID is filled with a random UUID.
func (f *AssetFactory) TransactionFromJSON(tj TransactionJSON) (generic.Transaction, error) {
	if tj.AssetID == "" {
		return generic.Transaction{}, generic.InvalidArgument("asset_id", tj.AssetID, "required")
	}
	txType := generic.TransactionType(tj.Type)
	if !txType.Valid() {
		return generic.Transaction{}, generic.InvalidArgument("type", tj.Type, "unknown transaction type")
	}
	if txType == generic.TxTransfer && tj.ToAssetID == "" {
		return generic.Transaction{}, generic.InvalidArgument("to_asset_id", tj.ToAssetID, "required for transfers")
	}
	date, err := generic.ParseDate(tj.Date)
	if err != nil {
		return generic.Transaction{}, generic.InvalidArgument("date", tj.Date, "expected YYYY-MM-DD")
	}
	if tj.Amount < 0 {
		return generic.Transaction{}, generic.InvalidArgument("amount", tj.Amount, "must not be negative")
	}

	tx := generic.Transaction{
		ID:             generic.TransactionID(tj.ID),
		AssetID:        generic.AssetID(tj.AssetID),
		ToAssetID:      generic.AssetID(tj.ToAssetID),
		Type:           txType,
		Date:           date,
		Amount:         generic.NewMoneyFromFloat(tj.Amount),
		Category:       tj.Category,
		Memo:           tj.Memo,
		IdempotencyKey: tj.IdempotencyKey,
	}
	if tx.ID == "" {
		tx.ID = generic.TransactionID(uuid.NewString())
	}

	if tj.Installment != nil {
		if tj.Installment.TotalMonths < 1 {
			return generic.Transaction{}, generic.InvalidArgument("installment.total_months", tj.Installment.TotalMonths, "must be at least 1")
		}
		if tj.Installment.TotalMonths > generic.MaxTermMonths {
			return generic.Transaction{}, generic.InvalidArgument("installment.total_months", tj.Installment.TotalMonths,
				fmt.Sprintf("must not exceed %d", generic.MaxTermMonths))
		}
		inst := &generic.Installment{
			TotalMonths:  tj.Installment.TotalMonths,
			InterestFree: tj.Installment.InterestFree,
		}
		if tj.Installment.APR != nil {
			if *tj.Installment.APR < 0 {
				return generic.Transaction{}, generic.InvalidArgument("installment.apr", *tj.Installment.APR, "must not be negative")
			}
			apr := decimal.NewFromFloat(*tj.Installment.APR)
			inst.APR = &apr
		}
		tx.Installment = inst
	}
	return tx, nil
}

// ToTransactionJSON converts a Transaction back to its JSON shape.
func (f *AssetFactory) ToTransactionJSON(tx generic.Transaction) TransactionJSON {
	tj := TransactionJSON{
		ID:             string(tx.ID),
		AssetID:        string(tx.AssetID),
		ToAssetID:      string(tx.ToAssetID),
		Type:           string(tx.Type),
		Date:           tx.Date.Date().String(),
		Amount:         tx.Amount.Float64(),
		Category:       tx.Category,
		Memo:           tx.Memo,
		IdempotencyKey: tx.IdempotencyKey,
	}
	if tx.Installment != nil {
		tj.Installment = &InstallmentJSON{
			TotalMonths:  tx.Installment.TotalMonths,
			InterestFree: tx.Installment.InterestFree,
		}
		if tx.Installment.APR != nil {
			v := tx.Installment.APR.InexactFloat64()
			tj.Installment.APR = &v
		}
	}
	return tj
}

// BillFromJSON validates bj and converts it to a recurring bill.
func (f *AssetFactory) BillFromJSON(bj BillJSON) (recurring.Bill, error) {
	if bj.DayOfMonth < 1 || bj.DayOfMonth > 31 {
		return recurring.Bill{}, generic.InvalidArgument("day_of_month", bj.DayOfMonth, "must be within 1..31")
	}
	billType := recurring.BillType(bj.Type)
	if bj.Type == "" {
		billType = recurring.BillSubscription
	}
	if !billType.Valid() {
		return recurring.Bill{}, generic.InvalidArgument("bill_type", bj.Type, "unknown bill type")
	}
	return recurring.Bill{
		ID:         bj.ID,
		Name:       bj.Name,
		Amount:     generic.NewMoneyFromFloat(bj.Amount),
		DayOfMonth: bj.DayOfMonth,
		Category:   bj.Category,
		Type:       billType,
	}, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCredit(cj CreditJSON) (generic.CreditConfig, error) {
	if cj.UsageStartDay < 1 || cj.UsageStartDay > 31 {
		return generic.CreditConfig{}, generic.InvalidArgument("credit.usage_start_day", cj.UsageStartDay, "must be within 1..31")
	}
	if cj.PaymentDay < 1 || cj.PaymentDay > 31 {
		return generic.CreditConfig{}, generic.InvalidArgument("credit.payment_day", cj.PaymentDay, "must be within 1..31")
	}
	if cj.APR < 0 {
		return generic.CreditConfig{}, generic.InvalidArgument("credit.apr", cj.APR, "must not be negative")
	}
	return generic.CreditConfig{
		UsageStartDay: cj.UsageStartDay,
		PaymentDay:    cj.PaymentDay,
		APR:           decimal.NewFromFloat(cj.APR),
	}, nil
}
