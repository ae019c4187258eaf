/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Assets:
    AssetDTO (wraps factory.AssetJSON)

  Transactions:
    factory.TransactionJSON is used directly for requests and responses

  Derivations:
    StatementDTO, StatementRequest
    SplitInstallmentRequest, PortionDTO, SplitInstallmentResponse
    InstallmentProgressDTO, BalancePointDTO
    LoanScheduleRequest, LoanScheduleDTO
    BillStatusRequest, BillStatusResponse

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

MONEY:
  Amounts leave the API as JSON numbers. The engine computes in decimal and
  only converts at this boundary.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/asset.go: AssetJSON, TransactionJSON, BillJSON
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/finance-engine/billing"
	"github.com/warp/finance-engine/factory"
	"github.com/warp/finance-engine/generic"
	"github.com/warp/finance-engine/loan"
	"github.com/warp/finance-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AssetDTO represents an asset in API responses.
type AssetDTO struct {
	factory.AssetJSON
	Debt float64 `json:"debt"`
}

// StatementDTO is a statement as rendered to clients.
type StatementDTO struct {
	AssetID       string  `json:"asset_id"`
	AsOf          string  `json:"as_of"`
	TotalDebt     float64 `json:"total_debt"`
	PastDue       float64 `json:"past_due"`
	NextBill      float64 `json:"next_bill"`
	Unbilled      float64 `json:"unbilled"`
	PaymentDate   string  `json:"payment_date,omitempty"`
	UsageStart    string  `json:"usage_start,omitempty"`
	UsageEnd      string  `json:"usage_end,omitempty"`
	BillingPeriod string  `json:"billing_period,omitempty"` // "M/D ~ M/D"
	Utilization   *int    `json:"utilization,omitempty"`
}

// StatementRequest computes a statement without touching the store.
type StatementRequest struct {
	Asset        factory.AssetJSON         `json:"asset"`
	Transactions []factory.TransactionJSON `json:"transactions"`
	Today        string                    `json:"today,omitempty"`
}

// SplitInstallmentRequest is the request to split a purchase.
type SplitInstallmentRequest struct {
	Total        float64 `json:"total"`
	Months       int     `json:"months"`
	InterestFree bool    `json:"interest_free"`
	APR          float64 `json:"apr,omitempty"`
	StartDate    string  `json:"start_date"`
}

// PortionDTO is one month of a split purchase.
type PortionDTO struct {
	Month     int     `json:"month"` // 1-based
	Date      string  `json:"date"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Total     float64 `json:"total"`
}

// SplitInstallmentResponse wraps the portions with their totals.
type SplitInstallmentResponse struct {
	Portions       []PortionDTO `json:"portions"`
	TotalPrincipal float64      `json:"total_principal"`
	TotalInterest  float64      `json:"total_interest"`
}

// InstallmentProgressDTO reports how far a purchase has run.
type InstallmentProgressDTO struct {
	Transaction   factory.TransactionJSON `json:"transaction"`
	CurrentMonth  int                     `json:"current_month"`
	TotalMonths   int                     `json:"total_months"`
	Percent       int                     `json:"percent"`
	MonthlyAmount float64                 `json:"monthly_amount"`
}

// BalancePointDTO is one point of the balance trend.
type BalancePointDTO struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

// LoanScheduleRequest is the request to amortize a loan.
type LoanScheduleRequest struct {
	Principal         float64 `json:"principal"`
	AnnualRatePercent float64 `json:"annual_rate_percent"`
	Months            int     `json:"months"`
	Round             bool    `json:"round,omitempty"` // whole units for display
}

// LoanEntryDTO is one period of a loan schedule.
type LoanEntryDTO struct {
	Month     int     `json:"month"`
	Payment   float64 `json:"payment"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

// LoanScheduleDTO is an amortization schedule.
type LoanScheduleDTO struct {
	MonthlyPayment float64        `json:"monthly_payment"`
	TotalInterest  float64        `json:"total_interest"`
	TotalPaid      float64        `json:"total_paid"`
	Schedule       []LoanEntryDTO `json:"schedule"`
}

// BillStatusRequest evaluates recurring bills for a month.
type BillStatusRequest struct {
	Bills []factory.BillJSON `json:"bills"`
	Month string             `json:"month"` // any date inside the month
	Today string             `json:"today,omitempty"`
}

// BillStatusDTO is a bill with its due date and status.
type BillStatusDTO struct {
	factory.BillJSON
	DueDate string `json:"due_date"`
	Status  string `json:"status"`
}

// BillStatusResponse lists bills ordered by due day.
type BillStatusResponse struct {
	Bills             []BillStatusDTO `json:"bills"`
	TotalMonthlyFixed float64         `json:"total_monthly_fixed"`
}

// SnapshotDTO is a stored statement snapshot.
type SnapshotDTO struct {
	ID          string          `json:"id"`
	AssetID     string          `json:"asset_id"`
	PaymentDate string          `json:"payment_date"`
	UsageStart  string          `json:"usage_start"`
	UsageEnd    string          `json:"usage_end"`
	Statement   json.RawMessage `json:"statement"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toStatementDTO(s billing.Statement, asOf generic.TimePoint) StatementDTO {
	dto := StatementDTO{
		AssetID:     string(s.AssetID),
		AsOf:        asOf.Date().String(),
		TotalDebt:   s.TotalDebt.Float64(),
		PastDue:     s.PastDue.Float64(),
		NextBill:    s.NextBill.Float64(),
		Unbilled:    s.Unbilled.Float64(),
		Utilization: s.Utilization,
	}
	if !s.Window.IsZero() {
		dto.PaymentDate = s.PaymentDate.Date().String()
		dto.UsageStart = s.Window.UsageStart.Date().String()
		dto.UsageEnd = s.Window.UsageEnd.Date().String()
		dto.BillingPeriod = s.Window.Label()
	}
	return dto
}

func toPortionDTOs(portions []billing.Portion) SplitInstallmentResponse {
	resp := SplitInstallmentResponse{Portions: make([]PortionDTO, len(portions))}
	principal := generic.ZeroMoney()
	interest := generic.ZeroMoney()
	for i, p := range portions {
		resp.Portions[i] = PortionDTO{
			Month:     p.Index + 1,
			Date:      p.Date.String(),
			Principal: p.Principal.Float64(),
			Interest:  p.Interest.Round().Float64(),
			Total:     p.Total().Round().Float64(),
		}
		principal = principal.Add(p.Principal)
		interest = interest.Add(p.Interest)
	}
	resp.TotalPrincipal = principal.Float64()
	resp.TotalInterest = interest.Round().Float64()
	return resp
}

func toLoanScheduleDTO(s loan.Schedule) LoanScheduleDTO {
	dto := LoanScheduleDTO{
		MonthlyPayment: s.MonthlyPayment.Float64(),
		TotalInterest:  s.TotalInterest.Float64(),
		TotalPaid:      s.TotalPaid().Float64(),
		Schedule:       make([]LoanEntryDTO, len(s.Entries)),
	}
	for i, e := range s.Entries {
		dto.Schedule[i] = LoanEntryDTO{
			Month:     e.Month,
			Payment:   e.Payment.Float64(),
			Principal: e.Principal.Float64(),
			Interest:  e.Interest.Float64(),
			Balance:   e.Balance.Float64(),
		}
	}
	return dto
}

func toBalancePointDTOs(points []generic.BalancePoint) []BalancePointDTO {
	dtos := make([]BalancePointDTO, len(points))
	for i, p := range points {
		dtos[i] = BalancePointDTO{Date: p.Date.String(), Balance: p.Balance.Float64()}
	}
	return dtos
}

func toSnapshotDTO(rec sqlite.SnapshotRecord) SnapshotDTO {
	dto := SnapshotDTO{
		ID:          rec.ID,
		AssetID:     rec.AssetID,
		PaymentDate: rec.PaymentDate,
		UsageStart:  rec.UsageStart,
		UsageEnd:    rec.UsageEnd,
		Statement:   json.RawMessage(rec.StatementJSON),
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return dto
}
