// Package clock provides the time source used by selection, scheduling and
// guess scoring. Core packages never call time.Now directly.
package clock

import "time"

// Clock reports the current instant and calendar day in UTC.
type Clock interface {
	UtcNow() time.Time
	TodayUtc() time.Time
}

// Real reads the system clock. Use only at process entry points.
type Real struct{}

// UtcNow returns the current system time in UTC.
func (Real) UtcNow() time.Time { return time.Now().UTC() }

// TodayUtc returns the current UTC calendar day at midnight.
func (r Real) TodayUtc() time.Time { return Day(r.UtcNow()) }

// Fixed always reports the same instant.
type Fixed struct {
	T time.Time
}

// UtcNow returns the fixed instant in UTC.
func (c Fixed) UtcNow() time.Time { return c.T.UTC() }

// TodayUtc returns the UTC day of the fixed instant.
func (c Fixed) TodayUtc() time.Time { return Day(c.T) }

// Func wraps a function as a Clock, handy for tests that advance time.
type Func func() time.Time

// UtcNow calls the wrapped function.
func (f Func) UtcNow() time.Time { return f().UTC() }

// TodayUtc returns the UTC day of the wrapped function's instant.
func (f Func) TodayUtc() time.Time { return Day(f()) }

// NewReal returns a Clock backed by the system time.
func NewReal() Clock { return Real{} }

// NewFixed returns a Clock frozen at t.
func NewFixed(t time.Time) Clock { return Fixed{T: t} }

// NewFunc returns a Clock backed by fn.
func NewFunc(fn func() time.Time) Clock { return Func(fn) }

// Day truncates t to midnight of its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
// The result is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
