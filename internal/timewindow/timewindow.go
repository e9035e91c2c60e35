// Package timewindow holds the date arithmetic and ordering rules shared by
// the aggregation paths. All display and windowing is anchored to the
// school's local zone, America/Denver.
package timewindow

import (
	"cmp"
	"slices"
	"time"
	_ "time/tzdata"
)

// Zone is the IANA name of the reference time zone.
const Zone = "America/Denver"

// DefaultDays is the look-ahead used when a caller does not pick one.
const DefaultDays = 7

var denver = mustLoad(Zone)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("timewindow: loading " + name + ": " + err.Error())
	}
	return loc
}

// Location returns the reference time zone.
func Location() *time.Location { return denver }

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Window is the interval between Start and End.
type Window struct {
	Start time.Time
	End   time.Time
}

// Next returns the window from now through now+days.
func Next(now time.Time, days int) Window {
	return Window{Start: now, End: now.Add(time.Duration(days) * 24 * time.Hour)}
}

// Contains reports whether Start <= t <= End. A nil time is never contained.
func (w Window) Contains(t *time.Time) bool {
	if t == nil {
		return false
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// IsWithin reports whether now <= t <= now+days.
func IsWithin(now time.Time, t *time.Time, days int) bool {
	return Next(now, days).Contains(t)
}

// Undated is shown in place of a missing timestamp.
const Undated = "TBD"

// FormatDisplay renders t like "Mon, Jan 2, 3:04 PM" in the reference zone.
func FormatDisplay(t *time.Time) string {
	if t == nil {
		return Undated
	}
	return t.In(denver).Format("Mon, Jan 2, 3:04 PM")
}

// FormatDay renders t like "Mon, Jan 2" in the reference zone.
func FormatDay(t *time.Time) string {
	if t == nil {
		return Undated
	}
	return t.In(denver).Format("Mon, Jan 2")
}

// FormatISO renders t as RFC 3339 with the reference zone's offset.
func FormatISO(t time.Time) string {
	return t.In(denver).Format(time.RFC3339)
}

// SortByDue orders items by ascending due time. Items without a due time
// sort last; ties keep their input order.
func SortByDue[T any](items []T, due func(T) *time.Time) {
	slices.SortStableFunc(items, func(a, b T) int {
		return compareAsc(due(a), due(b))
	})
}

// MostRecent returns up to n items with a non-nil timestamp, newest first.
// Ties keep their input order. The input slice is not modified.
func MostRecent[T any](items []T, at func(T) *time.Time, n int) []T {
	var out []T
	for _, it := range items {
		if at(it) != nil {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(a, b T) int {
		return at(b).Compare(*at(a))
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func compareAsc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(a.UnixNano(), b.UnixNano())
}
