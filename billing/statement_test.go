package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/billing"
	"github.com/warp/finance-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func card(balance int64) generic.Asset {
	return generic.Asset{
		ID:       "card-1",
		Name:     "Travel Card",
		Type:     generic.AssetCreditCard,
		Balance:  won(balance),
		Currency: "KRW",
		Credit:   &generic.CreditConfig{UsageStartDay: 15, PaymentDay: 5},
	}
}

func expense(id string, d generic.TimePoint, amount int64) generic.Transaction {
	return generic.Transaction{
		ID:      generic.TransactionID(id),
		AssetID: "card-1",
		Type:    generic.TxExpense,
		Date:    d,
		Amount:  won(amount),
	}
}

// today = 2024-03-10 with usage day 15 / payment day 5 resolves to
// usage Feb 15 - Mar 14, paid Apr 5.
var statementToday = date(2024, time.March, 10)

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestStatementFor_ClassifiesChargesByWindow(t *testing.T) {
	// GIVEN: Charges before, inside and after the usage window
	// WHEN: Aggregating against Feb 15 - Mar 14
	// THEN: Each lands in past-due, next-bill or unbilled

	asset := card(-500000)
	txs := []generic.Transaction{
		expense("before", date(2024, time.February, 1), 100000),
		expense("inside-start", date(2024, time.February, 20), 50000),
		expense("inside-last-day", date(2024, time.March, 14), 30000),
		expense("after", date(2024, time.March, 15), 20000),
		{ID: "transfer-out", AssetID: "card-1", ToAssetID: "checking", Type: generic.TxTransfer, Date: date(2024, time.March, 1), Amount: won(5000)},
		installmentTx("installment", date(2024, time.January, 20), 300000, 3),
	}

	s := billing.StatementFor(asset, txs, statementToday)

	assert.Equal(t, "2024-04-05", s.PaymentDate.String())
	assert.Equal(t, "2/15 ~ 3/14", s.Window.Label())
	// 50000 + 30000 + 5000 + installment month 2 (100000)
	assert.True(t, s.NextBill.Equal(won(185000)), "next bill %s", s.NextBill)
	// 20000 + installment month 3 (100000)
	assert.True(t, s.Unbilled.Equal(won(120000)), "unbilled %s", s.Unbilled)
	assert.True(t, s.PastDue.Equal(won(195000)), "past due %s", s.PastDue)
	assert.True(t, s.TotalDebt.Equal(won(500000)))
	assert.True(t, s.Outstanding().Equal(s.TotalDebt))
}

func TestAggregate_IgnoresIncomeAndIncomingTransfers(t *testing.T) {
	asset := card(-100000)
	txs := []generic.Transaction{
		{ID: "refund", AssetID: "card-1", Type: generic.TxIncome, Date: date(2024, time.March, 1), Amount: won(40000)},
		{ID: "payment", AssetID: "checking", ToAssetID: "card-1", Type: generic.TxTransfer, Date: date(2024, time.March, 2), Amount: won(60000)},
		{ID: "other-card", AssetID: "card-2", Type: generic.TxExpense, Date: date(2024, time.March, 3), Amount: won(70000)},
	}

	s := billing.StatementFor(asset, txs, statementToday)

	assert.True(t, s.NextBill.IsZero())
	assert.True(t, s.Unbilled.IsZero())
	assert.True(t, s.PastDue.Equal(won(100000)))
}

func TestAggregate_InstallmentAPROverride(t *testing.T) {
	// GIVEN: An interest-bearing purchase carrying its own 12% APR on a 0% card
	// THEN: The first portion bills 400000 principal + 12000 interest

	apr := decimal.NewFromInt(12)
	tx := expense("tv", date(2024, time.February, 20), 1200000)
	tx.Installment = &generic.Installment{TotalMonths: 3, APR: &apr}

	s := billing.StatementFor(card(-5000000), []generic.Transaction{tx}, statementToday)

	assert.True(t, s.NextBill.Equal(won(412000)), "next bill %s", s.NextBill)
	// Months 2 and 3: 408000 + 404000
	assert.True(t, s.Unbilled.Equal(won(812000)), "unbilled %s", s.Unbilled)
}

func TestAggregate_UsesCardAPRWithoutOverride(t *testing.T) {
	asset := card(-5000000)
	asset.Credit.APR = decimal.NewFromInt(12)
	tx := expense("tv", date(2024, time.February, 20), 1200000)
	tx.Installment = &generic.Installment{TotalMonths: 3}

	s := billing.StatementFor(asset, []generic.Transaction{tx}, statementToday)

	assert.True(t, s.NextBill.Equal(won(412000)), "next bill %s", s.NextBill)
}

// =============================================================================
// CLAMPING AND ROUNDING
// =============================================================================

func TestAggregate_ClampsBucketsToDebt(t *testing.T) {
	// GIVEN: A payment already reduced the balance below the window's charges
	// THEN: Buckets are capped so they never exceed the debt

	asset := card(-100000)
	txs := []generic.Transaction{
		expense("a", date(2024, time.February, 20), 150000),
		expense("b", date(2024, time.March, 20), 80000),
	}

	s := billing.StatementFor(asset, txs, statementToday)

	assert.True(t, s.NextBill.Equal(won(100000)))
	assert.True(t, s.Unbilled.IsZero())
	assert.True(t, s.PastDue.IsZero())
	assert.True(t, s.Outstanding().Equal(won(100000)))
}

func TestAggregate_PositiveBalance_NoDebt(t *testing.T) {
	s := billing.StatementFor(card(25000), []generic.Transaction{
		expense("a", date(2024, time.February, 20), 15000),
	}, statementToday)

	assert.True(t, s.TotalDebt.IsZero())
	assert.True(t, s.NextBill.IsZero())
	assert.True(t, s.PastDue.IsZero())
	assert.True(t, s.Unbilled.IsZero())
}

func TestAggregate_RoundsOnceAfterSumming(t *testing.T) {
	// GIVEN: Three fractional charges of 0.4
	// THEN: The sum 1.2 rounds to 1 (rounding each first would give 0)

	asset := card(-10)
	var txs []generic.Transaction
	for i, d := range []int{16, 17, 18} {
		tx := expense(string(rune('a'+i)), date(2024, time.February, d), 0)
		tx.Amount = generic.NewMoneyFromDecimal(decimal.RequireFromString("0.4"))
		txs = append(txs, tx)
	}

	s := billing.StatementFor(asset, txs, statementToday)

	assert.True(t, s.NextBill.Equal(won(1)), "next bill %s", s.NextBill)
}

func TestAggregate_FractionalDebtFloors(t *testing.T) {
	// GIVEN: A balance of -1000.7 and a 1000.6 charge in the window
	// WHEN: Aggregating
	// THEN: The debt floors to 1000 and the rounded charge is capped there,
	//       so the buckets stay within |balance|

	asset := card(0)
	asset.Balance = generic.NewMoneyFromDecimal(decimal.RequireFromString("-1000.7"))
	charge := expense("a", date(2024, time.February, 20), 0)
	charge.Amount = generic.NewMoneyFromDecimal(decimal.RequireFromString("1000.6"))

	s := billing.StatementFor(asset, []generic.Transaction{charge}, statementToday)

	assert.True(t, s.TotalDebt.Equal(won(1000)), "total debt %s", s.TotalDebt)
	assert.True(t, s.NextBill.Equal(won(1000)), "next bill %s", s.NextBill)
	assert.True(t, s.PastDue.IsZero())
	assert.True(t, s.Outstanding().Value.LessThanOrEqual(asset.Balance.Abs().Value))
}

func TestAggregate_Invariant_BucketsNeverExceedDebt(t *testing.T) {
	txs := []generic.Transaction{
		expense("a", date(2024, time.January, 3), 70000),
		expense("b", date(2024, time.February, 16), 33333),
		installmentTx("c", date(2024, time.February, 29), 100001, 7),
		expense("d", date(2024, time.March, 30), 12345),
	}

	for _, balance := range []int64{0, -1, -999, -50000, -150000, -1000000, 3000} {
		s := billing.StatementFor(card(balance), txs, statementToday)

		assert.False(t, s.PastDue.IsNegative(), "balance %d", balance)
		assert.False(t, s.NextBill.IsNegative(), "balance %d", balance)
		assert.False(t, s.Unbilled.IsNegative(), "balance %d", balance)
		assert.False(t, s.Outstanding().GreaterThan(won(balance).Abs()), "balance %d", balance)
	}
}

// =============================================================================
// ZERO STATEMENTS
// =============================================================================

func TestStatementFor_NonCardAsset_Zeroed(t *testing.T) {
	asset := generic.Asset{ID: "checking", Type: generic.AssetChecking, Balance: won(-5000)}

	s := billing.StatementFor(asset, nil, statementToday)

	assert.True(t, s.Window.IsZero())
	assert.True(t, s.TotalDebt.IsZero())
	assert.True(t, s.Outstanding().IsZero())
	assert.Nil(t, s.Utilization)
}

func TestStatementFor_CardWithoutCycle_Zeroed(t *testing.T) {
	asset := card(-5000)
	asset.Credit = nil

	s := billing.StatementFor(asset, []generic.Transaction{expense("a", date(2024, time.March, 1), 5000)}, statementToday)

	assert.True(t, s.Window.IsZero())
	assert.True(t, s.NextBill.IsZero())
}

func TestAggregate_EmptyWindow_Zeroed(t *testing.T) {
	s := billing.Aggregate(card(-5000), []generic.Transaction{expense("a", date(2024, time.March, 1), 5000)}, billing.Window{})

	assert.True(t, s.Outstanding().IsZero())
	assert.Equal(t, "", s.Window.Label())
}

// =============================================================================
// UTILIZATION
// =============================================================================

func TestStatementFor_Utilization(t *testing.T) {
	asset := card(-250000)
	limit := won(1000000)
	asset.Limit = &limit

	s := billing.StatementFor(asset, nil, statementToday)

	require.NotNil(t, s.Utilization)
	assert.Equal(t, 25, *s.Utilization)

	asset.Limit = nil
	s = billing.StatementFor(asset, nil, statementToday)
	assert.Nil(t, s.Utilization)
}
