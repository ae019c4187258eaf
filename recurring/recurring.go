// Package recurring evaluates fixed monthly bills (subscriptions, insurance,
// rent, card payments) against an injected "today".
package recurring

import (
	"sort"

	"github.com/warp/finance-engine/generic"
)

type BillType string

const (
	BillSubscription BillType = "SUBSCRIPTION"
	BillInsurance    BillType = "INSURANCE"
	BillInstallment  BillType = "INSTALLMENT"
	BillLiving       BillType = "LIVING"
	BillCardPayment  BillType = "CARD_PAYMENT"
)

// Valid reports whether t is one of the known bill types.
func (t BillType) Valid() bool {
	switch t {
	case BillSubscription, BillInsurance, BillInstallment, BillLiving, BillCardPayment:
		return true
	}
	return false
}

// Bill is a charge expected on the same day every month.
type Bill struct {
	ID         string
	Name       string
	Amount     generic.Money
	DayOfMonth int // 1..31, clamped to the month's last day
	Category   string
	Type       BillType
}

type BillStatus string

const (
	StatusUpcoming BillStatus = "UPCOMING"
	StatusOverdue  BillStatus = "OVERDUE"
)

// DueDate returns the bill's due date in the month containing month.
func DueDate(bill Bill, month generic.TimePoint) generic.TimePoint {
	return generic.NewClampedDate(month.Year(), month.Month(), bill.DayOfMonth)
}

// Status reports whether the bill for the given month is still upcoming or
// overdue as of today. Months after today's month are always upcoming; a
// bill turns overdue once today is past its due date.
func Status(bill Bill, month, today generic.TimePoint) BillStatus {
	if generic.MonthsBetween(today, month) > 0 {
		return StatusUpcoming
	}
	if today.Date().After(DueDate(bill, month)) {
		return StatusOverdue
	}
	return StatusUpcoming
}

// TotalMonthlyFixed sums the amounts of all bills.
func TotalMonthlyFixed(bills []Bill) generic.Money {
	total := generic.ZeroMoney()
	for _, b := range bills {
		total = total.Add(b.Amount)
	}
	return total
}

// SortByDueDate returns a copy of bills ordered by day of month.
func SortByDueDate(bills []Bill) []Bill {
	sorted := make([]Bill, len(bills))
	copy(sorted, bills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DayOfMonth < sorted[j].DayOfMonth
	})
	return sorted
}
