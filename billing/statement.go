package billing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/generic"
)

// Statement partitions a card's outstanding debt by billing cycle.
//
//	PastDue:  billed on an earlier statement and still unpaid
//	NextBill: charged inside the current usage window
//	Unbilled: installment portions dated after the window
//
// PastDue is the residual TotalDebt - NextBill - Unbilled, so the three
// buckets never add up to more than the debt.
type Statement struct {
	AssetID     generic.AssetID
	TotalDebt   generic.Money
	PastDue     generic.Money
	NextBill    generic.Money
	Unbilled    generic.Money
	Window      Window
	PaymentDate generic.TimePoint

	// Utilization is |balance| / limit in whole percent, nil without a limit.
	Utilization *int
}

// Outstanding is PastDue + NextBill + Unbilled.
func (s Statement) Outstanding() generic.Money {
	return s.PastDue.Add(s.NextBill).Add(s.Unbilled)
}

func zeroStatement(asset generic.Asset) Statement {
	return Statement{
		AssetID:   asset.ID,
		TotalDebt: generic.ZeroMoney(),
		PastDue:   generic.ZeroMoney(),
		NextBill:  generic.ZeroMoney(),
		Unbilled:  generic.ZeroMoney(),
	}
}

// StatementFor resolves the asset's current window as of today and
// aggregates its transactions into it.
func StatementFor(asset generic.Asset, txs []generic.Transaction, today generic.TimePoint) Statement {
	if asset.Type != generic.AssetCreditCard || asset.Credit == nil {
		return zeroStatement(asset)
	}
	window := ResolveWindow(today, asset.Credit.UsageStartDay, asset.Credit.PaymentDay)
	return Aggregate(asset, txs, window)
}

// Aggregate classifies every charge on the asset against window.
//
// Non-card assets, cards without cycle settings and an empty window all
// yield a zeroed statement with an empty window. Monetary outputs are
// rounded to whole units once, after accumulation.
func Aggregate(asset generic.Asset, txs []generic.Transaction, window Window) Statement {
	if asset.Type != generic.AssetCreditCard || asset.Credit == nil || window.IsZero() {
		return zeroStatement(asset)
	}

	nextBill := decimal.Zero
	unbilled := decimal.Zero
	classify := func(date generic.TimePoint, amount decimal.Decimal) {
		switch {
		case date.After(window.UsageEnd):
			unbilled = unbilled.Add(amount)
		case window.Contains(date):
			nextBill = nextBill.Add(amount)
		}
		// Before UsageStart: already part of the past-due residual.
	}

	for _, tx := range txs {
		if !tx.IsChargeOn(asset.ID) {
			continue
		}
		if !tx.Installment.IsMultiMonth() {
			classify(tx.Date, tx.Amount.Value)
			continue
		}

		apr := asset.Credit.APR
		if tx.Installment.APR != nil {
			apr = *tx.Installment.APR
		}
		portions, err := SplitInstallment(tx.Amount, tx.Installment.TotalMonths, tx.Installment.InterestFree, apr, tx.Date)
		if err != nil {
			// Negative amounts and terms over MaxTermMonths are never billed.
			continue
		}
		for _, p := range portions {
			classify(p.Date, p.Total().Value)
		}
	}

	// Round once, then clamp against the debt floored to whole units.
	// Rounding the debt up would let the buckets exceed |balance|.
	limit := asset.Debt().Floor()
	next := generic.NewMoneyFromDecimal(nextBill).Round().Max(generic.ZeroMoney()).Min(limit)
	future := generic.NewMoneyFromDecimal(unbilled).Round().Max(generic.ZeroMoney()).Min(limit.Sub(next))
	pastDue := limit.Sub(next).Sub(future)

	return Statement{
		AssetID:     asset.ID,
		TotalDebt:   limit,
		PastDue:     pastDue,
		NextBill:    next,
		Unbilled:    future,
		Window:      window,
		PaymentDate: window.PaymentDate,
		Utilization: utilization(asset),
	}
}

func utilization(asset generic.Asset) *int {
	if asset.Limit == nil || !asset.Limit.IsPositive() {
		return nil
	}
	pct := int(asset.Balance.Abs().Value.Mul(hundred).Div(asset.Limit.Value).Round(0).IntPart())
	return &pct
}
