/*
handlers.go - HTTP API handlers for the finance engine

PURPOSE:
  Exposes the derivation engine via REST API. Handles HTTP request/response
  and JSON serialization, loads snapshots from the store and delegates every
  calculation to billing/, loan/ and recurring/.

ENDPOINTS:
  Assets:
    GET    /api/assets                        List all assets
    POST   /api/assets                        Register an asset snapshot
    GET    /api/assets/{id}                   Get asset details

  Transactions:
    GET    /api/assets/{id}/transactions      Transaction history
    POST   /api/assets/{id}/transactions      Append a transaction

  Derivations (stored data):
    GET    /api/assets/{id}/statement         Past due / next bill / unbilled
    GET    /api/assets/{id}/installments      Active installment purchases
    GET    /api/assets/{id}/trend             Balance trend
    GET    /api/assets/{id}/snapshots         Scheduler snapshots

  Derivations (stateless, request body only):
    POST   /api/statements                    Statement for a posted snapshot
    POST   /api/installments/split            Split a purchase
    POST   /api/loans/schedule                Amortization schedule
    POST   /api/bills/status                  Recurring bill status

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario
    POST   /api/scenarios/reset               Clear all data

"TODAY":
  Every derivation takes the evaluation date from the "today" query or body
  field (YYYY-MM-DD). Only when it is absent does the handler read the
  clock, through Handler.Now.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid arguments
  - 404: Asset not found
  - 409: Conflict (duplicate idempotency key)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/finance-engine/billing"
	"github.com/warp/finance-engine/factory"
	"github.com/warp/finance-engine/generic"
	"github.com/warp/finance-engine/loan"
	"github.com/warp/finance-engine/recurring"
	"github.com/warp/finance-engine/store/sqlite"
)

const defaultTrendPoints = 30

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Ledger  generic.Ledger
	Factory *factory.AssetFactory
	Log     logrus.FieldLogger

	// Now supplies "today" when a request does not name one.
	Now func() generic.TimePoint

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log logrus.FieldLogger) *Handler {
	return &Handler{
		Store:   store,
		Ledger:  generic.NewLedger(store),
		Factory: factory.NewAssetFactory(),
		Log:     log,
		Now:     generic.Today,
	}
}

// =============================================================================
// ASSET HANDLERS
// =============================================================================

// ListAssets returns all assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Store.ListAssets(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list assets", err)
		return
	}

	dtos := make([]AssetDTO, len(assets))
	for i, a := range assets {
		dtos[i] = h.toAssetDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAsset returns a single asset.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.Store.GetAsset(r.Context(), assetIDParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get asset", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toAssetDTO(asset))
}

// CreateAsset registers or replaces an asset snapshot.
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req factory.AssetJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	asset, err := h.Factory.AssetFromJSON(req)
	if err != nil {
		h.writeDomainError(w, "Invalid asset", err)
		return
	}
	if err := h.Store.SaveAsset(r.Context(), asset); err != nil {
		h.writeDomainError(w, "Failed to save asset", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toAssetDTO(asset))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns the asset's transaction history.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := assetIDParam(r)
	if _, err := h.Store.GetAsset(ctx, id); err != nil {
		h.writeDomainError(w, "Failed to get asset", err)
		return
	}

	txs, err := h.Ledger.Transactions(ctx, id)
	if err != nil {
		h.writeDomainError(w, "Failed to load transactions", err)
		return
	}

	dtos := make([]factory.TransactionJSON, len(txs))
	for i, tx := range txs {
		dtos[i] = h.Factory.ToTransactionJSON(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransaction appends a transaction to the asset's ledger. Existing
// transactions are never edited; corrections are new entries.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := assetIDParam(r)

	var req factory.TransactionJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AssetID == "" {
		req.AssetID = string(id)
	}
	if req.AssetID != string(id) {
		writeError(w, http.StatusBadRequest, "asset_id does not match the URL", nil)
		return
	}

	if _, err := h.Store.GetAsset(ctx, id); err != nil {
		h.writeDomainError(w, "Failed to get asset", err)
		return
	}

	tx, err := h.Factory.TransactionFromJSON(req)
	if err != nil {
		h.writeDomainError(w, "Invalid transaction", err)
		return
	}

	if err := h.Ledger.Append(ctx, tx); err != nil {
		h.writeDomainError(w, "Failed to append transaction", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"asset_id": tx.AssetID,
		"tx_id":    tx.ID,
		"type":     tx.Type,
	}).Info("transaction appended")

	writeJSON(w, http.StatusCreated, h.Factory.ToTransactionJSON(tx))
}

// =============================================================================
// DERIVATION HANDLERS (stored data)
// =============================================================================

// GetStatement derives the asset's current statement.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	today, ok := h.todayParam(w, r.URL.Query().Get("today"))
	if !ok {
		return
	}

	asset, txs, err := h.loadAsset(r, assetIDParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to load asset", err)
		return
	}

	statement := billing.StatementFor(asset, txs, today)
	writeJSON(w, http.StatusOK, toStatementDTO(statement, today))
}

// GetInstallments lists the asset's running installment purchases.
func (h *Handler) GetInstallments(w http.ResponseWriter, r *http.Request) {
	today, ok := h.todayParam(w, r.URL.Query().Get("today"))
	if !ok {
		return
	}

	asset, txs, err := h.loadAsset(r, assetIDParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to load asset", err)
		return
	}

	var charges []generic.Transaction
	for _, tx := range txs {
		if tx.IsChargeOn(asset.ID) {
			charges = append(charges, tx)
		}
	}

	active := billing.ActiveInstallments(charges, today)
	dtos := make([]InstallmentProgressDTO, len(active))
	for i, p := range active {
		dtos[i] = InstallmentProgressDTO{
			Transaction:   h.Factory.ToTransactionJSON(p.Transaction),
			CurrentMonth:  p.CurrentMonth,
			TotalMonths:   p.TotalMonths,
			Percent:       p.Percent,
			MonthlyAmount: p.MonthlyAmount.Float64(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTrend replays the asset's balance over its most recent transactions.
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today, ok := h.todayParam(w, r.URL.Query().Get("today"))
	if !ok {
		return
	}

	limit := defaultTrendPoints
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	asset, err := h.Store.GetAsset(ctx, assetIDParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get asset", err)
		return
	}

	points, err := h.Ledger.BalanceTrend(ctx, asset, today, limit)
	if err != nil {
		h.writeDomainError(w, "Failed to compute balance trend", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalancePointDTOs(points))
}

// ListSnapshots returns the statement snapshots taken for the asset.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := assetIDParam(r)
	if _, err := h.Store.GetAsset(ctx, id); err != nil {
		h.writeDomainError(w, "Failed to get asset", err)
		return
	}

	records, err := h.Store.ListSnapshots(ctx, string(id))
	if err != nil {
		h.writeDomainError(w, "Failed to list snapshots", err)
		return
	}

	dtos := make([]SnapshotDTO, len(records))
	for i, rec := range records {
		dtos[i] = toSnapshotDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DERIVATION HANDLERS (stateless)
// =============================================================================

// ComputeStatement derives a statement from the posted asset and
// transactions. Nothing is read from or written to the store.
func (h *Handler) ComputeStatement(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	today, ok := h.todayParam(w, req.Today)
	if !ok {
		return
	}

	asset, err := h.Factory.AssetFromJSON(req.Asset)
	if err != nil {
		h.writeDomainError(w, "Invalid asset", err)
		return
	}

	txs := make([]generic.Transaction, 0, len(req.Transactions))
	for _, tj := range req.Transactions {
		if tj.AssetID == "" {
			tj.AssetID = string(asset.ID)
		}
		tx, err := h.Factory.TransactionFromJSON(tj)
		if err != nil {
			h.writeDomainError(w, "Invalid transaction", err)
			return
		}
		txs = append(txs, tx)
	}

	writeJSON(w, http.StatusOK, toStatementDTO(billing.StatementFor(asset, txs, today), today))
}

// SplitInstallment expands a purchase into monthly portions.
func (h *Handler) SplitInstallment(w http.ResponseWriter, r *http.Request) {
	var req SplitInstallmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}

	portions, err := billing.SplitInstallment(
		generic.NewMoneyFromFloat(req.Total),
		req.Months,
		req.InterestFree,
		decimal.NewFromFloat(req.APR),
		start,
	)
	if err != nil {
		h.writeDomainError(w, "Cannot split installment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPortionDTOs(portions))
}

// ScheduleLoan builds an amortization schedule.
func (h *Handler) ScheduleLoan(w http.ResponseWriter, r *http.Request) {
	var req LoanScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	schedule, err := loan.Amortize(
		generic.NewMoneyFromFloat(req.Principal),
		decimal.NewFromFloat(req.AnnualRatePercent),
		req.Months,
	)
	if err != nil {
		h.writeDomainError(w, "Cannot amortize loan", err)
		return
	}
	if req.Round {
		schedule = schedule.Rounded()
	}
	writeJSON(w, http.StatusOK, toLoanScheduleDTO(schedule))
}

// BillStatus evaluates recurring bills for a month.
func (h *Handler) BillStatus(w http.ResponseWriter, r *http.Request) {
	var req BillStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	today, ok := h.todayParam(w, req.Today)
	if !ok {
		return
	}
	month := today
	if req.Month != "" {
		m, err := generic.ParseDate(req.Month)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM-DD)", err)
			return
		}
		month = m
	}

	bills := make([]recurring.Bill, 0, len(req.Bills))
	for _, bj := range req.Bills {
		b, err := h.Factory.BillFromJSON(bj)
		if err != nil {
			h.writeDomainError(w, "Invalid bill", err)
			return
		}
		bills = append(bills, b)
	}

	resp := BillStatusResponse{
		Bills:             make([]BillStatusDTO, 0, len(bills)),
		TotalMonthlyFixed: recurring.TotalMonthlyFixed(bills).Float64(),
	}
	for _, b := range recurring.SortByDueDate(bills) {
		resp.Bills = append(resp.Bills, BillStatusDTO{
			BillJSON: factory.BillJSON{
				ID:         b.ID,
				Name:       b.Name,
				Amount:     b.Amount.Float64(),
				DayOfMonth: b.DayOfMonth,
				Category:   b.Category,
				Type:       string(b.Type),
			},
			DueDate: recurring.DueDate(b, month).String(),
			Status:  string(recurring.Status(b, month, today)),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func assetIDParam(r *http.Request) generic.AssetID {
	return generic.AssetID(chi.URLParam(r, "id"))
}

// loadAsset fetches the asset snapshot and its transactions.
func (h *Handler) loadAsset(r *http.Request, id generic.AssetID) (generic.Asset, []generic.Transaction, error) {
	asset, err := h.Store.GetAsset(r.Context(), id)
	if err != nil {
		return generic.Asset{}, nil, err
	}
	txs, err := h.Ledger.Transactions(r.Context(), id)
	if err != nil {
		return generic.Asset{}, nil, err
	}
	return asset, txs, nil
}

// todayParam parses an optional YYYY-MM-DD date, defaulting to Now. On a
// malformed value it writes a 400 and returns false.
func (h *Handler) todayParam(w http.ResponseWriter, s string) (generic.TimePoint, bool) {
	if s == "" {
		return h.Now().Date(), true
	}
	today, err := generic.ParseDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today format (use YYYY-MM-DD)", err)
		return generic.TimePoint{}, false
	}
	return today, true
}

func (h *Handler) toAssetDTO(a generic.Asset) AssetDTO {
	return AssetDTO{
		AssetJSON: h.Factory.ToAssetJSON(a),
		Debt:      a.Debt().Float64(),
	}
}

// writeDomainError maps engine and store errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Asset not found", err)
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		resp := ErrorResponse{Error: message, Code: "invalid_argument", Details: err.Error()}
		var argErr *generic.InvalidArgumentError
		if errors.As(err, &argErr) {
			resp.Details = map[string]any{"field": argErr.Field, "reason": argErr.Reason}
		}
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		h.Log.WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
