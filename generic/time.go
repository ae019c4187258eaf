package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Calendar date or exact instant
// =============================================================================

type TimePoint struct {
	Time        time.Time
	Granularity Granularity
}

type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityHour
	GranularityMinute
	GranularityInstant
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Granularity: GranularityDay}
}

// NewClampedDate builds a date, clamping day into the month. Day 31 in
// February yields the last day of February; days below 1 yield the 1st.
func NewClampedDate(year int, month time.Month, day int) TimePoint {
	// Normalize month overflow first so year/month are canonical.
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := DaysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewTimePoint(first.Year(), first.Month(), day)
}

func FromTime(t time.Time) TimePoint {
	t = t.UTC()
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, err
	}
	return FromTime(t), nil
}

// Today reads the wall clock. Only outer layers (HTTP, scheduler) call it;
// engine functions take "today" as a parameter.
func Today() TimePoint {
	return FromTime(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	switch tp.Granularity {
	case GranularityDay:
		return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityHour:
		return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), tp.Time.Hour(), 0, 0, 0, time.UTC)
	default:
		return tp.Time
	}
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	return TimePoint{Time: tp.Time.AddDate(0, 0, n), Granularity: tp.Granularity}
}

// AddMonths moves n calendar months, keeping the day-of-month where the
// target month has it and clamping to its last day otherwise
// (Jan 31 + 1 month = Feb 28/29, never Mar 2/3).
func (tp TimePoint) AddMonths(n int) TimePoint {
	y, m, d := tp.Time.Date()
	target := NewClampedDate(y, m+time.Month(n), d)
	h, mi, s := tp.Time.Clock()
	t := time.Date(target.Year(), target.Month(), target.Day(), h, mi, s, tp.Time.Nanosecond(), time.UTC)
	return TimePoint{Time: t, Granularity: tp.Granularity}
}

func (tp TimePoint) AddYears(n int) TimePoint { return tp.AddMonths(12 * n) }

// StartOfDay returns 00:00:00 of the same date as an exact instant.
func (tp TimePoint) StartOfDay() TimePoint {
	y, m, d := tp.Time.Date()
	return TimePoint{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Granularity: GranularityInstant}
}

// EndOfDay returns the last representable instant of the same date.
func (tp TimePoint) EndOfDay() TimePoint {
	y, m, d := tp.Time.Date()
	return TimePoint{Time: time.Date(y, m, d, 23, 59, 59, 999999999, time.UTC), Granularity: GranularityInstant}
}

// Date drops the time of day.
func (tp TimePoint) Date() TimePoint {
	return NewTimePoint(tp.Year(), tp.Month(), tp.Day())
}

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	switch tp.Granularity {
	case GranularityDay:
		return tp.Time.Format(DateLayout)
	case GranularityHour:
		return tp.Time.Format("2006-01-02 15:00")
	default:
		return tp.Time.Format(time.RFC3339Nano)
	}
}

// =============================================================================
// TIME UTILITIES
// =============================================================================
// Note: Period type is defined in period.go to avoid duplication

// DaysBetween counts whole calendar days from -> to, ignoring time of day.
func DaysBetween(from, to TimePoint) int {
	return int(to.Date().Time.Sub(from.Date().Time).Hours() / 24)
}

// MonthsBetween counts calendar month boundaries from -> to.
func MonthsBetween(from, to TimePoint) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return NewClampedDate(year, month, 31)
}
