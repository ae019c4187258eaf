/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	cards, accounts and transactions. Dates are relative to the handler's
	"today", so every scenario shows a live billing cycle whenever it is
	loaded.

AVAILABLE SCENARIOS:

	card-installments: One card with interest-free and interest-bearing
	                   installments, paid from a checking account
	mid-month-cycle:   Card whose usage window starts on the 15th, with
	                   charges on both sides of the cycle boundary
	multi-card:        Two cards with different cycles plus recurring
	                   living costs on a checking account

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create assets via factory presets
 3. Add transactions; asset balances follow from them
 4. Save assets and append the ledger in one store transaction

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "card-installments"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: xxxScenario(s *seed)
 3. Register it in 'scenarioLoaders'

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler dependencies
  - factory/presets.go: Asset and transaction JSON presets
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/finance-engine/factory"
	"github.com/warp/finance-engine/generic"
)

// ErrUnknownScenario is returned when a scenario ID is not registered.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "card-installments",
		Name:        "Card With Installments",
		Description: "Interest-free and interest-bearing installments on one card, paid from checking",
	},
	{
		ID:          "mid-month-cycle",
		Name:        "Mid-Month Cycle",
		Description: "Usage window from the 15th, charges on both sides of the boundary",
	},
	{
		ID:          "multi-card",
		Name:        "Multiple Cards",
		Description: "Two cards on different cycles plus living costs on checking",
	},
}

var scenarioLoaders = map[string]func(s *seed){
	"card-installments": cardInstallmentsScenario,
	"mid-month-cycle":   midMonthCycleScenario,
	"multi-card":        multiCardScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.SeedScenario(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// SeedScenario resets the store and loads the scenario as of h.Now().
func (h *Handler) SeedScenario(ctx context.Context, id string) error {
	loader, ok := scenarioLoaders[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}
	h.setCurrentScenario("")

	s := newSeed(h.Factory, h.Now().Date())
	loader(s)
	if s.err != nil {
		return fmt.Errorf("building scenario %s: %w", id, s.err)
	}

	err := generic.Atomically(ctx, h.Store, func(ws generic.WritableStore) error {
		for _, asset := range s.finalAssets() {
			if err := ws.SaveAsset(ctx, asset); err != nil {
				return err
			}
		}
		return generic.NewLedger(ws).Append(ctx, s.txs...)
	})
	if err != nil {
		return fmt.Errorf("saving scenario %s: %w", id, err)
	}

	h.setCurrentScenario(id)
	h.Log.WithField("scenario", id).WithField("transactions", len(s.txs)).Info("scenario loaded")
	return nil
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func cardInstallmentsScenario(s *seed) {
	s.asset(factory.CheckingJSON("checking", "Salary Account", 2500000))
	s.asset(withAPR(factory.CreditCardJSON("card-main", "Everyday Card", 1, 14, 3000000), 15.9))

	s.income("checking", s.day(-1, 25), 3200000, "Salary")

	// Interest-free TV two months ago, interest-bearing laptop last month
	s.installment("card-main", s.day(-2, 12), 1200000, 6, true)
	s.installment("card-main", s.day(-1, 3), 1800000, 12, false)

	s.expense("card-main", s.day(-1, 8), 48000, "Food", "Dinner")
	s.expense("card-main", s.day(-1, 20), 89000, "Shopping", "Shoes")
	s.expense("card-main", s.day(0, 1), 12500, "Food", "Lunch")
	s.expense("card-main", s.day(0, 2), 35000, "Transport", "Taxi")

	s.transfer("checking", "card-main", s.day(-1, 14), 450000, "Card payment")
}

func midMonthCycleScenario(s *seed) {
	s.asset(factory.CheckingJSON("checking", "Salary Account", 1800000))
	s.asset(factory.CreditCardJSON("card-15", "Mid-Month Card", 15, 5, 2000000))

	s.expense("card-15", s.day(-2, 16), 64000, "Shopping", "Groceries")
	s.expense("card-15", s.day(-1, 14), 22000, "Food", "Cafe")
	s.expense("card-15", s.day(-1, 15), 130000, "Health", "Dentist")
	s.expense("card-15", s.day(-1, 28), 41000, "Food", "Dinner")
	s.expense("card-15", s.day(0, 1), 9000, "Transport", "Bus pass top-up")
	s.installment("card-15", s.day(-1, 20), 600000, 3, true)

	s.transfer("checking", "card-15", s.day(-1, 5), 64000, "Card payment")
}

func multiCardScenario(s *seed) {
	s.asset(factory.CheckingJSON("checking", "Salary Account", 4000000))
	s.asset(withAPR(factory.CreditCardJSON("card-a", "Travel Card", 1, 14, 5000000), 18.5))
	s.asset(factory.CreditCardJSON("card-b", "Shopping Card", 15, 5, 1500000))

	s.income("checking", s.day(-1, 25), 3500000, "Salary")
	s.expense("checking", s.day(0, 1), 650000, "Living", "Rent")
	s.expense("checking", s.day(0, 1), 17000, "Subscription", "Streaming")

	s.expense("card-a", s.day(-1, 9), 420000, "Travel", "Flight")
	s.expense("card-a", s.day(0, 2), 96000, "Travel", "Hotel deposit")
	s.installment("card-a", s.day(-3, 5), 2400000, 24, false)

	s.expense("card-b", s.day(-1, 18), 57000, "Shopping", "Books")
	s.installment("card-b", s.day(-1, 22), 900000, 3, true)

	s.transfer("checking", "card-a", s.day(-1, 14), 380000, "Card payment")
	s.transfer("checking", "card-b", s.day(-1, 5), 120000, "Card payment")
}

// =============================================================================
// SEED BUILDER
// =============================================================================

// seed collects a scenario's assets and transactions. Asset balances start
// at the preset value and move with every transaction, the way the account
// owner's books would. The first error sticks and later calls are no-ops.
type seed struct {
	factory *factory.AssetFactory
	today   generic.TimePoint

	order    []generic.AssetID
	assets   map[generic.AssetID]generic.Asset
	balances map[generic.AssetID]generic.Money
	txs      []generic.Transaction
	err      error
}

func newSeed(f *factory.AssetFactory, today generic.TimePoint) *seed {
	return &seed{
		factory:  f,
		today:    today,
		assets:   make(map[generic.AssetID]generic.Asset),
		balances: make(map[generic.AssetID]generic.Money),
	}
}

// day returns the given day of the month offset from today, clamped into
// that month.
func (s *seed) day(monthOffset, day int) string {
	first := generic.StartOfMonth(s.today.Year(), s.today.Month()).AddMonths(monthOffset)
	return generic.NewClampedDate(first.Year(), first.Month(), day).String()
}

func (s *seed) asset(jsonStr string) {
	if s.err != nil {
		return
	}
	asset, err := s.factory.ParseAsset(jsonStr)
	if err != nil {
		s.err = err
		return
	}
	s.order = append(s.order, asset.ID)
	s.assets[asset.ID] = asset
	s.balances[asset.ID] = asset.Balance
}

func (s *seed) expense(assetID, date string, amount float64, category, memo string) {
	s.add(factory.TransactionJSON{
		AssetID: assetID, Type: string(generic.TxExpense), Date: date,
		Amount: amount, Category: category, Memo: memo,
	})
}

func (s *seed) income(assetID, date string, amount float64, category string) {
	s.add(factory.TransactionJSON{
		AssetID: assetID, Type: string(generic.TxIncome), Date: date,
		Amount: amount, Category: category,
	})
}

func (s *seed) transfer(from, to, date string, amount float64, memo string) {
	s.add(factory.TransactionJSON{
		AssetID: from, ToAssetID: to, Type: string(generic.TxTransfer), Date: date,
		Amount: amount, Memo: memo,
	})
}

func (s *seed) installment(assetID, date string, amount float64, months int, interestFree bool) {
	if s.err != nil {
		return
	}
	tx, err := s.factory.ParseTransaction(factory.InstallmentPurchaseJSON(assetID, date, amount, months, interestFree))
	if err != nil {
		s.err = err
		return
	}
	tx.Category = "Installment"
	s.book(tx)
}

func (s *seed) add(tj factory.TransactionJSON) {
	if s.err != nil {
		return
	}
	tx, err := s.factory.TransactionFromJSON(tj)
	if err != nil {
		s.err = err
		return
	}
	s.book(tx)
}

func (s *seed) book(tx generic.Transaction) {
	if _, ok := s.assets[tx.AssetID]; !ok {
		s.err = fmt.Errorf("%w: %s", generic.ErrAssetNotFound, tx.AssetID)
		return
	}
	switch tx.Type {
	case generic.TxIncome:
		s.balances[tx.AssetID] = s.balances[tx.AssetID].Add(tx.Amount)
	case generic.TxExpense:
		s.balances[tx.AssetID] = s.balances[tx.AssetID].Sub(tx.Amount)
	case generic.TxTransfer:
		s.balances[tx.AssetID] = s.balances[tx.AssetID].Sub(tx.Amount)
		if _, ok := s.assets[tx.ToAssetID]; ok {
			s.balances[tx.ToAssetID] = s.balances[tx.ToAssetID].Add(tx.Amount)
		}
	}
	s.txs = append(s.txs, tx)
}

// finalAssets returns the assets in declaration order with their booked
// balances.
func (s *seed) finalAssets() []generic.Asset {
	out := make([]generic.Asset, 0, len(s.order))
	for _, id := range s.order {
		asset := s.assets[id]
		asset.Balance = s.balances[id]
		out = append(out, asset)
	}
	return out
}

// withAPR adds an APR to a credit card preset.
func withAPR(cardJSON string, apr float64) string {
	var aj factory.AssetJSON
	if err := json.Unmarshal([]byte(cardJSON), &aj); err != nil || aj.Credit == nil {
		return cardJSON
	}
	aj.Credit.APR = apr
	b, _ := json.MarshalIndent(aj, "", "  ")
	return string(b)
}
