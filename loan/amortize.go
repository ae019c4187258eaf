/*
Package loan builds fixed-payment amortization schedules.

PURPOSE:
  Given a principal, an annual rate and a term, produce the monthly payment
  and a period-by-period split of each payment into interest and principal.
  The amortizer is independent of billing cycles and card statements.

FORMULA:
  r = annualRatePercent / 100 / 12
  M = P * r * (1+r)^n / ((1+r)^n - 1)

  A zero rate degenerates to M = P / n with no interest.

PRECISION:
  (1+r)^n is evaluated in float64; every monetary step after that runs on
  decimal.Decimal. The last period takes whatever balance remains as its
  principal, so the schedule always ends at exactly zero and the principal
  portions sum to P.

SEE ALSO:
  - billing/installment.go: Card installment splitting (simple interest)
*/
package loan

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/generic"
)

var monthsPerYearPc = decimal.NewFromInt(1200)

// Entry is one period of a schedule.
type Entry struct {
	Month     int // 1..N
	Payment   generic.Money
	Principal generic.Money
	Interest  generic.Money
	Balance   generic.Money // remaining after this payment
}

// Schedule is the full amortization of a loan.
type Schedule struct {
	MonthlyPayment generic.Money
	TotalInterest  generic.Money
	Entries        []Entry
}

// Amortize computes the schedule for principal repaid over months at
// annualRatePercent.
//
// Returns ErrInvalidArgument when months is outside 1..MaxTermMonths, when
// principal or rate is negative, or when the rate compounded over the term
// overflows float64.
func Amortize(principal generic.Money, annualRatePercent decimal.Decimal, months int) (Schedule, error) {
	if months <= 0 {
		return Schedule{}, generic.InvalidArgument("months", months, "must be positive")
	}
	if months > generic.MaxTermMonths {
		return Schedule{}, generic.InvalidArgument("months", months, fmt.Sprintf("must not exceed %d", generic.MaxTermMonths))
	}
	if principal.IsNegative() {
		return Schedule{}, generic.InvalidArgument("principal", principal, "must not be negative")
	}
	if annualRatePercent.IsNegative() {
		return Schedule{}, generic.InvalidArgument("annualRatePercent", annualRatePercent, "must not be negative")
	}

	n := decimal.NewFromInt(int64(months))
	rate := annualRatePercent.Div(monthsPerYearPc)

	var payment decimal.Decimal
	if rate.IsZero() {
		payment = principal.Value.Div(n)
	} else {
		growth := math.Pow(1+rate.InexactFloat64(), float64(months))
		if math.IsInf(growth, 0) || math.IsNaN(growth) {
			return Schedule{}, generic.InvalidArgument("annualRatePercent", annualRatePercent, "too large for the term")
		}
		factor := decimal.NewFromFloat(growth)
		payment = principal.Value.Mul(rate).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
	}

	entries := make([]Entry, 0, months)
	balance := principal.Value
	totalInterest := decimal.Zero

	for month := 1; month <= months; month++ {
		interest := balance.Mul(rate)
		principalPart := payment.Sub(interest)

		if month == months || principalPart.GreaterThan(balance) {
			principalPart = balance
		}
		balance = balance.Sub(principalPart)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		totalInterest = totalInterest.Add(interest)

		entries = append(entries, Entry{
			Month:     month,
			Payment:   generic.NewMoneyFromDecimal(principalPart.Add(interest)),
			Principal: generic.NewMoneyFromDecimal(principalPart),
			Interest:  generic.NewMoneyFromDecimal(interest),
			Balance:   generic.NewMoneyFromDecimal(balance),
		})
	}

	return Schedule{
		MonthlyPayment: generic.NewMoneyFromDecimal(payment),
		TotalInterest:  generic.NewMoneyFromDecimal(totalInterest),
		Entries:        entries,
	}, nil
}

// Rounded returns a copy with every amount rounded to whole units, for
// presentation. The final balance stays zero.
func (s Schedule) Rounded() Schedule {
	out := Schedule{
		MonthlyPayment: s.MonthlyPayment.Round(),
		TotalInterest:  s.TotalInterest.Round(),
		Entries:        make([]Entry, len(s.Entries)),
	}
	for i, e := range s.Entries {
		out.Entries[i] = Entry{
			Month:     e.Month,
			Payment:   e.Payment.Round(),
			Principal: e.Principal.Round(),
			Interest:  e.Interest.Round(),
			Balance:   e.Balance.Round(),
		}
	}
	return out
}

// TotalPaid is the sum of all payments.
func (s Schedule) TotalPaid() generic.Money {
	total := generic.ZeroMoney()
	for _, e := range s.Entries {
		total = total.Add(e.Payment)
	}
	return total
}
