package store

import (
	"fmt"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	yearMonthLayout = "2006-01"
)

// Date is a calendar day in local time, formatted YYYY-MM-DD. The zero value
// is the empty string and means "unset" in filters.
type Date string

// DateOf returns the local calendar day containing t.
func DateOf(t time.Time) Date {
	return Date(t.In(time.Local).Format(dateLayout))
}

// Today returns the current local calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return "", fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool { return d == "" }

// Start returns local midnight at the beginning of d.
func (d Date) Start() time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// End returns local midnight at the beginning of the following day.
func (d Date) End() time.Time {
	s := d.Start()
	return time.Date(s.Year(), s.Month(), s.Day()+1, 0, 0, 0, 0, time.Local)
}

// AddDays returns the day n days after d (before, for negative n).
func (d Date) AddDays(n int) Date {
	s := d.Start()
	return DateOf(time.Date(s.Year(), s.Month(), s.Day()+n, 12, 0, 0, 0, time.Local))
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d < o }

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return d > o }

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf returns the month containing d.
func YearMonthOf(d Date) YearMonth {
	s := d.Start()
	return YearMonth{Year: s.Year(), Month: s.Month()}
}

// ParseYearMonth parses a YYYY-MM string.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(yearMonthLayout, s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parsing month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// First returns the first day of the month.
func (ym YearMonth) First() Date {
	return DateOf(time.Date(ym.Year, ym.Month, 1, 12, 0, 0, 0, time.Local))
}

// Last returns the last day of the month.
func (ym YearMonth) Last() Date {
	return DateOf(time.Date(ym.Year, ym.Month+1, 0, 12, 0, 0, 0, time.Local))
}

// Days returns the number of days in the month.
func (ym YearMonth) Days() int {
	return time.Date(ym.Year, ym.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
