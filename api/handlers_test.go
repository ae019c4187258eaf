/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Asset registration and lookup
- Append-only transaction endpoint (idempotency, validation)
- Derived views on stored data (statement, installments, trend)
- Stateless derivations (statement, split, loan, bills)
- Error mapping (400, 404, 409)
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/factory"
	"github.com/warp/finance-engine/generic"
	"github.com/warp/finance-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testToday = generic.NewTimePoint(2024, time.March, 10)

func setupTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	h := NewHandler(store, log)
	h.Now = func() generic.TimePoint { return testToday }
	return h, NewRouter(h, []string{"http://localhost:5173"})
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

// cardJSON is a card with usage day 1 / payment day 14. As of 2024-03-10 it
// resolves to usage Feb 1 - Feb 29, paid Mar 14.
func cardJSON(balance float64) factory.AssetJSON {
	limit := 1000000.0
	return factory.AssetJSON{
		ID:       "card-1",
		Name:     "Travel Card",
		Type:     "CREDIT_CARD",
		Balance:  balance,
		Currency: "KRW",
		Limit:    &limit,
		Credit:   &factory.CreditJSON{UsageStartDay: 1, PaymentDay: 14},
	}
}

func seedCard(t *testing.T, h *Handler, balance float64, txs ...factory.TransactionJSON) {
	t.Helper()
	ctx := context.Background()

	asset, err := h.Factory.AssetFromJSON(cardJSON(balance))
	require.NoError(t, err)
	require.NoError(t, h.Store.SaveAsset(ctx, asset))

	for _, tj := range txs {
		tj.AssetID = "card-1"
		tx, err := h.Factory.TransactionFromJSON(tj)
		require.NoError(t, err)
		require.NoError(t, h.Ledger.Append(ctx, tx))
	}
}

func expenseJSON(date string, amount float64) factory.TransactionJSON {
	return factory.TransactionJSON{Type: "EXPENSE", Date: date, Amount: amount}
}

// =============================================================================
// ASSETS
// =============================================================================

func TestAssets_CreateGetList(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/assets", cardJSON(-452000))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[AssetDTO](t, rec)
	assert.Equal(t, "card-1", created.ID)
	assert.Equal(t, 452000.0, created.Debt)

	rec = doRequest(t, router, http.MethodGet, "/api/assets/card-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[AssetDTO](t, rec)
	assert.Equal(t, "Travel Card", got.Name)
	require.NotNil(t, got.Credit)
	assert.Equal(t, 14, got.Credit.PaymentDay)

	rec = doRequest(t, router, http.MethodGet, "/api/assets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AssetDTO](t, rec), 1)
}

func TestAssets_NotFound(t *testing.T) {
	_, router := setupTestHandler(t)

	for _, path := range []string{
		"/api/assets/missing",
		"/api/assets/missing/statement",
		"/api/assets/missing/transactions",
		"/api/assets/missing/trend",
	} {
		rec := doRequest(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestAssets_InvalidCycleDay(t *testing.T) {
	// GIVEN: A card whose usage start day is outside 1..31
	// WHEN: Registering it
	// THEN: 400 naming the rejected field

	_, router := setupTestHandler(t)
	aj := cardJSON(0)
	aj.Credit.UsageStartDay = 40

	rec := doRequest(t, router, http.MethodPost, "/api/assets", aj)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_argument", resp.Code)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "credit.usage_start_day", details["field"])
}

func TestAssets_MalformedBody(t *testing.T) {
	_, router := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/assets", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTransactions_AppendAndList(t *testing.T) {
	h, router := setupTestHandler(t)
	seedCard(t, h, -12000)

	tj := expenseJSON("2024-03-02", 12000)
	tj.Category = "Food"
	rec := doRequest(t, router, http.MethodPost, "/api/assets/card-1/transactions", tj)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[factory.TransactionJSON](t, rec)
	assert.NotEmpty(t, created.ID, "an ID is generated")
	assert.Equal(t, "card-1", created.AssetID)

	rec = doRequest(t, router, http.MethodGet, "/api/assets/card-1/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]factory.TransactionJSON](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "Food", listed[0].Category)
	assert.Equal(t, "2024-03-02", listed[0].Date)
}

func TestTransactions_DuplicateIdempotencyKey(t *testing.T) {
	// GIVEN: A transaction appended with an idempotency key
	// WHEN: The same key is posted again
	// THEN: 409 and the ledger still holds one entry

	h, router := setupTestHandler(t)
	seedCard(t, h, 0)

	tj := expenseJSON("2024-03-02", 5000)
	tj.IdempotencyKey = "pos-42"

	rec := doRequest(t, router, http.MethodPost, "/api/assets/card-1/transactions", tj)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/assets/card-1/transactions", tj)
	assert.Equal(t, http.StatusConflict, rec.Code)

	txs, err := h.Ledger.Transactions(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestTransactions_Rejections(t *testing.T) {
	h, router := setupTestHandler(t)
	seedCard(t, h, 0)

	mismatched := expenseJSON("2024-03-02", 5000)
	mismatched.AssetID = "card-2"

	cases := []struct {
		name   string
		path   string
		body   factory.TransactionJSON
		status int
	}{
		{"asset mismatch", "/api/assets/card-1/transactions", mismatched, http.StatusBadRequest},
		{"negative amount", "/api/assets/card-1/transactions", expenseJSON("2024-03-02", -1), http.StatusBadRequest},
		{"bad date", "/api/assets/card-1/transactions", expenseJSON("03/02/2024", 1), http.StatusBadRequest},
		{"unknown asset", "/api/assets/nope/transactions", expenseJSON("2024-03-02", 1), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

func TestGetStatement(t *testing.T) {
	// GIVEN: A card with 200,000 debt and charges before, inside and after
	//        the Feb 1 - Feb 29 window
	// WHEN: Requesting its statement as of 2024-03-10
	// THEN: The debt splits into past due, next bill and unbilled

	h, router := setupTestHandler(t)
	seedCard(t, h, -200000,
		expenseJSON("2024-01-20", 30000),
		expenseJSON("2024-02-10", 100000),
		expenseJSON("2024-03-02", 50000),
	)

	rec := doRequest(t, router, http.MethodGet, "/api/assets/card-1/statement?today=2024-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s := decode[StatementDTO](t, rec)
	assert.Equal(t, 200000.0, s.TotalDebt)
	assert.Equal(t, 100000.0, s.NextBill)
	assert.Equal(t, 50000.0, s.Unbilled)
	assert.Equal(t, 50000.0, s.PastDue)
	assert.Equal(t, "2024-03-14", s.PaymentDate)
	assert.Equal(t, "2024-02-01", s.UsageStart)
	assert.Equal(t, "2024-02-29", s.UsageEnd)
	assert.Equal(t, "2/1 ~ 2/29", s.BillingPeriod)
	require.NotNil(t, s.Utilization)
	assert.Equal(t, 20, *s.Utilization)
}

func TestGetStatement_DefaultsToHandlerClock(t *testing.T) {
	h, router := setupTestHandler(t)
	seedCard(t, h, -100000, expenseJSON("2024-02-10", 100000))

	rec := doRequest(t, router, http.MethodGet, "/api/assets/card-1/statement", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	s := decode[StatementDTO](t, rec)
	assert.Equal(t, "2024-03-10", s.AsOf)
	assert.Equal(t, 100000.0, s.NextBill)
}

func TestGetStatement_BadToday(t *testing.T) {
	h, router := setupTestHandler(t)
	seedCard(t, h, 0)

	rec := doRequest(t, router, http.MethodGet, "/api/assets/card-1/statement?today=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetInstallments(t *testing.T) {
	h, router := setupTestHandler(t)
	purchase := expenseJSON("2024-02-02", 300000)
	purchase.Installment = &factory.InstallmentJSON{TotalMonths: 3, InterestFree: true}
	seedCard(t, h, -300000, purchase, expenseJSON("2024-02-03", 9000))

	rec := doRequest(t, router, http.MethodGet, "/api/assets/card-1/installments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	active := decode[[]InstallmentProgressDTO](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].CurrentMonth)
	assert.Equal(t, 3, active[0].TotalMonths)
	assert.Equal(t, 67, active[0].Percent)
	assert.Equal(t, 100000.0, active[0].MonthlyAmount)
}

func TestGetTrend(t *testing.T) {
	// GIVEN: Balance -200,000 after three expenses
	// WHEN: Requesting the last two trend points
	// THEN: The balance before the newest expense, then today's balance

	h, router := setupTestHandler(t)
	seedCard(t, h, -200000,
		expenseJSON("2024-01-20", 30000),
		expenseJSON("2024-02-10", 100000),
		expenseJSON("2024-03-02", 50000),
	)

	rec := doRequest(t, router, http.MethodGet, "/api/assets/card-1/trend?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	points := decode[[]BalancePointDTO](t, rec)
	require.Len(t, points, 2)
	assert.Equal(t, BalancePointDTO{Date: "2024-03-02", Balance: -150000}, points[0])
	assert.Equal(t, BalancePointDTO{Date: "2024-03-10", Balance: -200000}, points[1])

	rec = doRequest(t, router, http.MethodGet, "/api/assets/card-1/trend?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// STATELESS DERIVATIONS
// =============================================================================

func TestComputeStatement_Stateless(t *testing.T) {
	h, router := setupTestHandler(t)

	req := StatementRequest{
		Asset: cardJSON(-150000),
		Transactions: []factory.TransactionJSON{
			expenseJSON("2024-02-10", 100000),
			expenseJSON("2024-03-02", 50000),
		},
		Today: "2024-03-10",
	}
	rec := doRequest(t, router, http.MethodPost, "/api/statements", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s := decode[StatementDTO](t, rec)
	assert.Equal(t, 100000.0, s.NextBill)
	assert.Equal(t, 50000.0, s.Unbilled)
	assert.Equal(t, 0.0, s.PastDue)

	assets, err := h.Store.ListAssets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assets, "nothing is persisted")
}

func TestComputeStatement_NonCardIsZero(t *testing.T) {
	_, router := setupTestHandler(t)

	req := StatementRequest{
		Asset:        factory.AssetJSON{ID: "checking", Name: "Checking", Type: "CHECKING", Balance: -5000},
		Transactions: []factory.TransactionJSON{expenseJSON("2024-03-02", 5000)},
	}
	rec := doRequest(t, router, http.MethodPost, "/api/statements", req)
	require.Equal(t, http.StatusOK, rec.Code)

	s := decode[StatementDTO](t, rec)
	assert.Zero(t, s.TotalDebt)
	assert.Zero(t, s.NextBill)
	assert.Empty(t, s.PaymentDate)
}

func TestSplitInstallment(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/installments/split", SplitInstallmentRequest{
		Total: 100000, Months: 3, InterestFree: true, StartDate: "2024-01-31",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SplitInstallmentResponse](t, rec)
	require.Len(t, resp.Portions, 3)
	assert.Equal(t, 33334.0, resp.Portions[0].Principal)
	assert.Equal(t, 33333.0, resp.Portions[1].Principal)
	assert.Equal(t, "2024-02-29", resp.Portions[1].Date)
	assert.Equal(t, 100000.0, resp.TotalPrincipal)
	assert.Zero(t, resp.TotalInterest)
}

func TestSplitInstallment_ZeroMonths(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/installments/split", SplitInstallmentRequest{
		Total: 100000, Months: 0, StartDate: "2024-01-31",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", decode[ErrorResponse](t, rec).Code)
}

func TestScheduleLoan(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/loans/schedule", LoanScheduleRequest{
		Principal: 1200000, AnnualRatePercent: 0, Months: 12,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s := decode[LoanScheduleDTO](t, rec)
	assert.Equal(t, 100000.0, s.MonthlyPayment)
	assert.Zero(t, s.TotalInterest)
	require.Len(t, s.Schedule, 12)
	assert.Zero(t, s.Schedule[11].Balance)

	rec = doRequest(t, router, http.MethodPost, "/api/loans/schedule", LoanScheduleRequest{
		Principal: 1200000, AnnualRatePercent: 5, Months: 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/loans/schedule", LoanScheduleRequest{
		Principal: 1000000, AnnualRatePercent: 1000000, Months: 120,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestTransactions_TermCeiling(t *testing.T) {
	// GIVEN: An installment purchase with a term far beyond the ceiling
	// WHEN: Appending it
	// THEN: Rejected before it reaches the ledger, so later statements
	//       never expand it

	h, router := setupTestHandler(t)
	seedCard(t, h, 0)

	rec := doRequest(t, router, http.MethodPost, "/api/assets/card-1/transactions", factory.TransactionJSON{
		Type: "EXPENSE", Date: "2024-03-01", Amount: 1000,
		Installment: &factory.InstallmentJSON{TotalMonths: 1000000000},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	txs, err := h.Store.LoadTransactions(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestBillStatus(t *testing.T) {
	// GIVEN: Two bills in March, today 2024-03-10
	// WHEN: Evaluating them
	// THEN: Sorted by due day; the one due on the 5th is overdue

	_, router := setupTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/bills/status", BillStatusRequest{
		Bills: []factory.BillJSON{
			{ID: "rent", Name: "Rent", Amount: 650000, DayOfMonth: 25, Type: "LIVING"},
			{ID: "tv", Name: "Streaming", Amount: 17000, DayOfMonth: 5},
		},
		Month: "2024-03-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[BillStatusResponse](t, rec)
	require.Len(t, resp.Bills, 2)
	assert.Equal(t, "tv", resp.Bills[0].ID)
	assert.Equal(t, "2024-03-05", resp.Bills[0].DueDate)
	assert.Equal(t, "OVERDUE", resp.Bills[0].Status)
	assert.Equal(t, "SUBSCRIPTION", resp.Bills[0].Type)
	assert.Equal(t, "UPCOMING", resp.Bills[1].Status)
	assert.Equal(t, 667000.0, resp.TotalMonthlyFixed)
}

func TestBillStatus_InvalidDay(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/bills/status", BillStatusRequest{
		Bills: []factory.BillJSON{{ID: "x", Name: "X", Amount: 1, DayOfMonth: 0}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
