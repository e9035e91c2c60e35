package timewindow

import (
	"testing"
	"time"
)

func ptr(t time.Time) *time.Time { return &t }

func TestIsWithin(t *testing.T) {
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    *time.Time
		want bool
	}{
		{"nil", nil, false},
		{"now", ptr(now), true},
		{"past", ptr(now.Add(-time.Minute)), false},
		{"inside", ptr(now.Add(72 * time.Hour)), true},
		{"end inclusive", ptr(now.Add(7 * 24 * time.Hour)), true},
		{"beyond", ptr(now.Add(8 * 24 * time.Hour)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWithin(now, tt.t, 7); got != tt.want {
				t.Errorf("IsWithin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDisplay(t *testing.T) {
	// 2025-03-05T06:59:00Z is 11:59 PM MST on Tuesday Mar 4.
	ts := time.Date(2025, 3, 5, 6, 59, 0, 0, time.UTC)
	if got := FormatDisplay(&ts); got != "Tue, Mar 4, 11:59 PM" {
		t.Errorf("FormatDisplay = %q", got)
	}
	if got := FormatDay(&ts); got != "Tue, Mar 4" {
		t.Errorf("FormatDay = %q", got)
	}
	if got := FormatDisplay(nil); got != "TBD" {
		t.Errorf("FormatDisplay(nil) = %q", got)
	}
}

func TestFormatISOUsesDaylightOffset(t *testing.T) {
	summer := time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC)
	if got := FormatISO(summer); got != "2025-07-01T12:00:00-06:00" {
		t.Errorf("FormatISO(summer) = %q", got)
	}
	winter := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)
	if got := FormatISO(winter); got != "2025-01-01T11:00:00-07:00" {
		t.Errorf("FormatISO(winter) = %q", got)
	}
}

type item struct {
	name string
	at   *time.Time
}

func TestSortByDue(t *testing.T) {
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	items := []item{
		{"none", nil},
		{"later", ptr(base.Add(48 * time.Hour))},
		{"first-tie", ptr(base.Add(24 * time.Hour))},
		{"second-tie", ptr(base.Add(24 * time.Hour))},
	}
	SortByDue(items, func(i item) *time.Time { return i.at })

	want := []string{"first-tie", "second-tie", "later", "none"}
	for i, w := range want {
		if items[i].name != w {
			t.Errorf("items[%d] = %q, want %q", i, items[i].name, w)
		}
	}
}

func TestMostRecent(t *testing.T) {
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	items := []item{
		{"a", ptr(base)},
		{"b", nil},
		{"c", ptr(base.Add(3 * time.Hour))},
		{"d", ptr(base.Add(time.Hour))},
		{"e", ptr(base.Add(2 * time.Hour))},
	}
	got := MostRecent(items, func(i item) *time.Time { return i.at }, 3)
	want := []string{"c", "e", "d"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].name != w {
			t.Errorf("got[%d] = %q, want %q", i, got[i].name, w)
		}
	}
	if items[0].name != "a" {
		t.Error("input slice was reordered")
	}
}
