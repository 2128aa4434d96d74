/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package stats

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

const dayLayout = "2006-01-02"

var zonedLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}

// zone-less inputs take the caller's location
var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", dayLayout}

// ParseDate parses an ISO-8601 date or timestamp. Values without zone
// information are interpreted in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, l := range zonedLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	for _, l := range localLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Window selects log entries by date. Both bounds are inclusive; a zero bound
// is open.
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// MaxWindowDays caps the span of a bounded window.
const MaxWindowDays = 3660

// LastDays is the window of the last days calendar days before now.
func LastDays(now time.Time, days int) Window {
	return Window{Start: now.AddDate(0, 0, -days), Location: now.Location()}
}

// Between spans the calendar days from start through end in loc.
func Between(start, end time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	w := Window{Location: loc}
	if !start.IsZero() {
		w.Start = dayStart(start.In(loc))
	}
	if !end.IsZero() {
		w.End = dayStart(end.In(loc)).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		return Window{}, fmt.Errorf("%w: end %s before start %s", domain.ErrInvalidWindow, end.Format(dayLayout), start.Format(dayLayout))
	}
	if !w.Start.IsZero() && !w.End.IsZero() && w.Start.AddDate(0, 0, MaxWindowDays).Before(w.End) {
		return Window{}, fmt.Errorf("%w: range exceeds %d days", domain.ErrInvalidWindow, MaxWindowDays)
	}
	return w, nil
}

func (w Window) Unbounded() bool { return w.Start.IsZero() && w.End.IsZero() }

func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

func (w Window) loc() *time.Location {
	if w.Location != nil {
		return w.Location
	}
	if !w.Start.IsZero() {
		return w.Start.Location()
	}
	return time.Local
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekStart returns midnight of the Monday of t's week.
func weekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return dayStart(t).AddDate(0, 0, -(weekday - 1))
}

func Round2(v float64) float64 { return math.Round(v*100) / 100 }
func Round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
