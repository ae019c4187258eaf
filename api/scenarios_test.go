/*
scenarios_test.go - Tests for demo scenario loading

Tests for:
- Every scenario loads and yields consistent statements
- Asset balances follow the seeded transactions
- Reset and unknown scenario handling
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/billing"
	"github.com/warp/finance-engine/generic"
)

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	// GIVEN: Each registered scenario
	// WHEN: Loading it
	// THEN: Every card's statement buckets add up to its whole-unit debt

	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			h, _ := setupTestHandler(t)
			ctx := context.Background()

			require.NoError(t, h.SeedScenario(ctx, sc.ID))

			assets, err := h.Store.ListAssets(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, assets)

			cards := 0
			for _, asset := range assets {
				if asset.Type != generic.AssetCreditCard {
					continue
				}
				cards++
				txs, err := h.Ledger.Transactions(ctx, asset.ID)
				require.NoError(t, err)
				require.NotEmpty(t, txs)

				s := billing.StatementFor(asset, txs, testToday)
				assert.False(t, s.Window.IsZero(), asset.ID)
				assert.True(t, s.Outstanding().Equal(s.TotalDebt), asset.ID)
				assert.False(t, s.PastDue.IsNegative(), asset.ID)
			}
			assert.NotZero(t, cards)
		})
	}
}

func TestScenario_CardInstallments_BalancesFollowLedger(t *testing.T) {
	// GIVEN: The card-installments scenario
	// WHEN: Inspecting balances
	// THEN: Card debt = charges - payments; checking = opening + salary - payment

	h, _ := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.SeedScenario(ctx, "card-installments"))

	card, err := h.Store.GetAsset(ctx, "card-main")
	require.NoError(t, err)
	charges := int64(1200000 + 1800000 + 48000 + 89000 + 12500 + 35000)
	assert.True(t, card.Balance.Equal(generic.NewMoney(-(charges - 450000))), card.Balance.String())

	checking, err := h.Store.GetAsset(ctx, "checking")
	require.NoError(t, err)
	assert.True(t, checking.Balance.Equal(generic.NewMoney(2500000+3200000-450000)), checking.Balance.String())

	txs, err := h.Ledger.Transactions(ctx, "card-main")
	require.NoError(t, err)
	assert.Len(t, billing.ActiveInstallments(txs, testToday), 2)
}

func TestScenario_LoadViaAPI(t *testing.T) {
	h, router := setupTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "multi-card"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "multi-card", decode[ScenarioDTO](t, rec).ID)

	rec = doRequest(t, router, http.MethodGet, "/api/assets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AssetDTO](t, rec), 3)

	rec = doRequest(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assets, err := h.Store.ListAssets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assets)

	rec = doRequest(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())
}

func TestScenario_Unknown(t *testing.T) {
	h, router := setupTestHandler(t)

	assert.ErrorIs(t, h.SeedScenario(context.Background(), "nope"), ErrUnknownScenario)

	rec := doRequest(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_ListScenarios(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := doRequest(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	listed := decode[[]ScenarioDTO](t, rec)
	require.Len(t, listed, len(scenarioLoaders))
	for _, sc := range listed {
		assert.Contains(t, scenarioLoaders, sc.ID)
	}
}

func TestSeed_DayClampsIntoMonth(t *testing.T) {
	s := newSeed(nil, generic.NewTimePoint(2024, 3, 31))

	assert.Equal(t, "2024-02-29", s.day(-1, 31))
	assert.Equal(t, "2024-01-15", s.day(-2, 15))
	assert.Equal(t, "2024-04-30", s.day(1, 31))
}
