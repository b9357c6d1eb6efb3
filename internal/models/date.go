package models

import (
	"fmt"
	"time"
)

// Date is a UTC calendar day used as the block aggregation key. A single
// comparable composite type is used everywhere instead of mixing nested
// integer/string keys.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf normalizes t to UTC and truncates it to a calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// String formats the day as ISO 8601 (YYYY-MM-DD).
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Prefix formats the day as a storage key path segment (YYYY/MM/DD).
func (d Date) Prefix() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, int(d.Month), d.Day)
}
