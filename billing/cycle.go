// Package billing derives credit card statement state: the current usage
// window, installment portions and the past-due / next-bill / unbilled
// split of outstanding debt. Every function is pure and takes "today" as a
// parameter.
package billing

import (
	"fmt"
	"time"

	"github.com/warp/finance-engine/generic"
)

// minGraceDays is the shortest gap accepted between the end of a usage
// window and its payment date. Shorter gaps move the window back a month.
const minGraceDays = 10

// Window is the usage range billed on PaymentDate. UsageStart is
// start-of-day and UsageEnd end-of-day, so both bounds are inclusive.
type Window struct {
	UsageStart  generic.TimePoint
	UsageEnd    generic.TimePoint
	PaymentDate generic.TimePoint
}

// IsZero reports whether the window is the empty default.
func (w Window) IsZero() bool {
	return w.UsageStart.IsZero() && w.UsageEnd.IsZero() && w.PaymentDate.IsZero()
}

// Usage returns the usage range as a period.
func (w Window) Usage() generic.Period {
	return generic.Period{Start: w.UsageStart, End: w.UsageEnd}
}

// Contains reports whether t falls inside [UsageStart, UsageEnd].
func (w Window) Contains(t generic.TimePoint) bool {
	return w.Usage().Contains(t)
}

// Label renders the usage range as "M/D ~ M/D".
func (w Window) Label() string {
	if w.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d/%d ~ %d/%d",
		int(w.UsageStart.Month()), w.UsageStart.Day(),
		int(w.UsageEnd.Month()), w.UsageEnd.Day())
}

// ResolveWindow computes the usage window whose statement is paid on the
// next payment date on or after today.
//
// Day values beyond a month's length clamp to its last day, and values
// outside 1..31 are clamped into that range first, so every input yields a
// window with UsageStart <= UsageEnd < PaymentDate.
func ResolveWindow(today generic.TimePoint, usageStartDay, paymentDay int) Window {
	usageStartDay = clampDay(usageStartDay)
	paymentDay = clampDay(paymentDay)

	payment := generic.NewClampedDate(today.Year(), today.Month(), paymentDay)
	if today.Day() > paymentDay {
		payment = generic.NewClampedDate(today.Year(), today.Month()+1, paymentDay)
	}

	// The usage window ends the day before usageStartDay of some anchor
	// month, starting from the payment month. Each step back re-clamps
	// usageStartDay in the earlier month rather than shifting usageEnd, so
	// the window always ends right before the next one starts (day 31 in
	// February 2023 ends on the 27th because the next window opens on the
	// 28th).
	anchorYear, anchorMonth := payment.Year(), payment.Month()
	usageEnd := dayBefore(anchorYear, anchorMonth, usageStartDay)
	if !usageEnd.Before(payment) {
		anchorMonth--
		usageEnd = dayBefore(anchorYear, anchorMonth, usageStartDay)
	}
	if generic.DaysBetween(usageEnd, payment) < minGraceDays {
		anchorMonth--
		usageEnd = dayBefore(anchorYear, anchorMonth, usageStartDay)
	}

	startYear, startMonth := usageEnd.Year(), usageEnd.Month()
	if usageStartDay > usageEnd.Day() {
		startMonth--
	}
	usageStart := generic.NewClampedDate(startYear, startMonth, usageStartDay)

	return Window{
		UsageStart:  usageStart.StartOfDay(),
		UsageEnd:    usageEnd.EndOfDay(),
		PaymentDate: payment,
	}
}

// dayBefore returns the day preceding usageStartDay (clamped) in the given
// month. For usageStartDay 1 that is the last day of the previous month.
func dayBefore(year int, month time.Month, usageStartDay int) generic.TimePoint {
	return generic.NewClampedDate(year, month, usageStartDay).AddDays(-1)
}

func clampDay(day int) int {
	if day < 1 {
		return 1
	}
	if day > 31 {
		return 31
	}
	return day
}
