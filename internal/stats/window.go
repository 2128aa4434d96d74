/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package stats

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

// windowedHours sums the issue's entries that fall into w, per user. Only
// users with a positive in-window total are returned. Entries whose date
// cannot be parsed are skipped.
func windowedHours(isu *domain.Issue, w Window, log zerolog.Logger) (float64, map[string]float64) {
	byUser := map[string]float64{}
	var total float64
	loc := w.loc()
	for _, u := range isu.Users() {
		var sum float64
		for _, e := range isu.Entries(u) {
			if !w.Unbounded() {
				at, err := ParseDate(e.Date, loc)
				if err != nil {
					log.Warn().Err(err).Str("issue", isu.ID()).Str("user", u).Msg("skipping time entry with bad date")
					continue
				}
				if !w.Contains(at) {
					continue
				}
			}
			sum += e.Hours
		}
		if sum > 0 {
			byUser[u] = sum
			total += sum
		}
	}
	return total, byUser
}

// FilterByWindow flattens the tree like Flatten but re-derives spent hours
// and shares from the entries inside w. An epic's spent hours are the sum of
// its children's windowed hours and its shares are the hours-weighted
// average of theirs. Estimates stay lifetime values.
func FilterByWindow(root domain.WorkItem, users, labels []string, w Window, log zerolog.Logger) []Row {
	var rows []Row
	var visit func(domain.WorkItem) int
	visit = func(it domain.WorkItem) int {
		idx := len(rows)
		rows = append(rows, newRow(it, users, labels))
		switch v := it.(type) {
		case *domain.Issue:
			total, byUser := windowedHours(v, w, log)
			rows[idx].Spent = total
			if total > 0 {
				for u, h := range byUser {
					rows[idx].Shares[u] = h / total
				}
			}
		case *domain.Epic:
			kids := make([]int, 0, len(v.Children()))
			for _, c := range v.Children() {
				kids = append(kids, visit(c))
			}
			var total float64
			for _, k := range kids {
				total += rows[k].Spent
			}
			rows[idx].Spent = total
			if total > 0 {
				for _, u := range users {
					var weighted float64
					for _, k := range kids {
						weighted += rows[k].Spent * rows[k].Shares[u]
					}
					rows[idx].Shares[u] = weighted / total
				}
			}
		}
		return idx
	}
	visit(root)
	return rows
}

// loggedBetween sums the entries dated in [start, end]. A zero start is
// open.
func loggedBetween(entries []datedEntry, start, end time.Time) float64 {
	var sum float64
	for _, e := range entries {
		if !start.IsZero() && e.at.Before(start) {
			continue
		}
		if !e.at.After(end) {
			sum += e.hours
		}
	}
	return sum
}

type datedEntry struct {
	at    time.Time
	hours float64
}

func parseEntries(isu *domain.Issue, loc *time.Location, log zerolog.Logger) []datedEntry {
	var out []datedEntry
	for _, u := range isu.Users() {
		for _, e := range isu.Entries(u) {
			at, err := ParseDate(e.Date, loc)
			if err != nil {
				log.Warn().Err(err).Str("issue", isu.ID()).Str("user", u).Msg("skipping time entry with bad date")
				continue
			}
			out = append(out, datedEntry{at: at, hours: e.Hours})
		}
	}
	return out
}
