package billing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/generic"
)

var (
	hundred         = decimal.NewFromInt(100)
	monthsPerYearPc = decimal.NewFromInt(1200) // percent per year -> fraction per month
)

// Portion is one monthly charge of an installment purchase.
type Portion struct {
	Index     int // 0-based month offset from the purchase
	Date      generic.TimePoint
	Principal generic.Money
	Interest  generic.Money
}

// Total is the amount billed for the portion.
func (p Portion) Total() generic.Money {
	return p.Principal.Add(p.Interest)
}

// SplitInstallment expands a purchase into one portion per month.
//
// Principal is split by floor division and the remainder goes entirely to
// the first month, so the principals always sum to total. When the purchase
// bears interest, month i is charged simple interest on the straight-line
// remaining principal: (total - monthly*i) * apr/100/12. Portion i is dated
// start + i months with the day-of-month clamped.
//
// Returns ErrInvalidArgument when months is outside 1..MaxTermMonths or
// total is negative.
func SplitInstallment(total generic.Money, months int, interestFree bool, apr decimal.Decimal, start generic.TimePoint) ([]Portion, error) {
	if months < 1 {
		return nil, generic.InvalidArgument("totalMonths", months, "must be at least 1")
	}
	if months > generic.MaxTermMonths {
		return nil, generic.InvalidArgument("totalMonths", months, fmt.Sprintf("must not exceed %d", generic.MaxTermMonths))
	}
	if total.IsNegative() {
		return nil, generic.InvalidArgument("totalPrincipal", total, "must not be negative")
	}

	n := decimal.NewFromInt(int64(months))
	monthly, _ := total.Value.QuoRem(n, 0)
	remainder := total.Value.Sub(monthly.Mul(n))

	chargeInterest := !interestFree && apr.IsPositive()
	monthlyRate := apr.Div(monthsPerYearPc)

	portions := make([]Portion, months)
	for i := 0; i < months; i++ {
		principal := monthly
		if i == 0 {
			principal = principal.Add(remainder)
		}

		interest := decimal.Zero
		if chargeInterest {
			outstanding := total.Value.Sub(monthly.Mul(decimal.NewFromInt(int64(i))))
			interest = outstanding.Mul(monthlyRate)
		}

		portions[i] = Portion{
			Index:     i,
			Date:      start.AddMonths(i),
			Principal: generic.NewMoneyFromDecimal(principal),
			Interest:  generic.NewMoneyFromDecimal(interest),
		}
	}
	return portions, nil
}

// =============================================================================
// INSTALLMENT PROGRESS
// =============================================================================

// Progress reports how far an installment purchase has run as of a date.
type Progress struct {
	Transaction   generic.Transaction
	CurrentMonth  int // 1..TotalMonths
	TotalMonths   int
	Percent       int
	MonthlyAmount generic.Money // rounded principal per month
}

// InstallmentProgress counts the month the purchase is in as of today. The
// purchase month is month 1; the count never exceeds TotalMonths and never
// drops below 1 for purchases dated in the future.
func InstallmentProgress(tx generic.Transaction, today generic.TimePoint) (Progress, bool) {
	if !tx.Installment.IsMultiMonth() {
		return Progress{}, false
	}
	total := tx.Installment.TotalMonths

	current := generic.MonthsBetween(tx.Date, today) + 1
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	percent := decimal.NewFromInt(int64(current)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).IntPart()

	return Progress{
		Transaction:   tx,
		CurrentMonth:  current,
		TotalMonths:   total,
		Percent:       int(percent),
		MonthlyAmount: tx.Amount.Div(decimal.NewFromInt(int64(total))).Round(),
	}, true
}

// ActiveInstallments returns progress for every multi-month purchase whose
// last portion month has not passed yet, newest purchase first.
func ActiveInstallments(txs []generic.Transaction, today generic.TimePoint) []Progress {
	var active []Progress
	for _, tx := range txs {
		p, ok := InstallmentProgress(tx, today)
		if !ok {
			continue
		}
		if generic.MonthsBetween(tx.Date, today) >= p.TotalMonths {
			continue
		}
		active = append(active, p)
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Transaction.Date.After(active[j].Transaction.Date)
	})
	return active
}
