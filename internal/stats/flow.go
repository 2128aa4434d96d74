/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package stats

import (
	"time"

	"github.com/rs/zerolog"
)

type FlowPoint struct {
	Date       string `json:"date"`
	Todo       int    `json:"todo"`
	InProgress int    `json:"in_progress"`
	Done       int    `json:"done"`
	Total      int    `json:"total"`
}

type flowIssue struct {
	created    time.Time
	hasCreated bool
	closed     bool
	entries    []datedEntry
}

// CumulativeFlow counts issues per day of w into todo, in progress and done.
// Closed issues are done. Otherwise an issue with hours logged between the
// window start and the end of the day is in progress, else todo. Issues created after the day are left
// out of that day. An open window start falls back to the earliest known
// issue or entry date, an open end to now.
func CumulativeFlow(rows []Row, w Window, now time.Time, log zerolog.Logger) []FlowPoint {
	loc := w.loc()
	var issues []flowIssue
	var earliest time.Time
	seen := func(t time.Time) {
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	for _, r := range rows {
		isu, ok := r.Issue()
		if !ok {
			continue
		}
		fi := flowIssue{closed: isu.Closed(), entries: parseEntries(isu, loc, log)}
		if isu.CreatedAt != "" {
			if t, err := ParseDate(isu.CreatedAt, loc); err == nil {
				fi.created, fi.hasCreated = t, true
				seen(t)
			} else {
				log.Warn().Err(err).Str("issue", isu.ID()).Msg("ignoring bad creation date")
			}
		}
		for _, e := range fi.entries {
			seen(e.at)
		}
		issues = append(issues, fi)
	}

	first := w.Start
	if first.IsZero() {
		first = earliest
	}
	if first.IsZero() {
		first = now
	}
	last := w.End
	if last.IsZero() {
		last = now
	}
	first, last = dayStart(first.In(loc)), dayStart(last.In(loc))

	var out []FlowPoint
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		end := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		p := FlowPoint{Date: day.Format(dayLayout)}
		for _, fi := range issues {
			if fi.hasCreated && fi.created.After(end) {
				continue
			}
			p.Total++
			switch {
			case fi.closed:
				p.Done++
			case loggedBetween(fi.entries, w.Start, end) > 0:
				p.InProgress++
			default:
				p.Todo++
			}
		}
		out = append(out, p)
	}
	return out
}
