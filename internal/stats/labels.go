/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package stats

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// LabelTimeline holds one cumulative series per target label, aligned with
// Dates.
type LabelTimeline struct {
	Dates  []string             `json:"dates"`
	Series map[string][]float64 `json:"series"`
}

// LabelTimelineOf splits every issue's hours evenly over the target labels it
// carries, buckets them by the issue's creation day and accumulates per label
// across the sorted days.
func LabelTimelineOf(rows []Row, targets []string, loc *time.Location, log zerolog.Logger) LabelTimeline {
	daily := map[string]map[string]float64{}
	for _, r := range rows {
		isu, ok := r.Issue()
		if !ok || r.Spent <= 0 {
			continue
		}
		matches := r.MatchingLabels(targets)
		if len(matches) == 0 {
			continue
		}
		created, err := ParseDate(r.CreatedAt, loc)
		if err != nil {
			log.Debug().Err(err).Str("issue", isu.ID()).Msg("label timeline: no creation day")
			continue
		}
		day := created.In(loc).Format(dayLayout)
		if daily[day] == nil {
			daily[day] = map[string]float64{}
		}
		part := r.Spent / float64(len(matches))
		for _, l := range matches {
			daily[day][l] += part
		}
	}

	tl := LabelTimeline{Dates: make([]string, 0, len(daily)), Series: make(map[string][]float64, len(targets))}
	for d := range daily {
		tl.Dates = append(tl.Dates, d)
	}
	sort.Strings(tl.Dates)
	for _, l := range targets {
		series := make([]float64, len(tl.Dates))
		var run float64
		for i, d := range tl.Dates {
			run += daily[d][l]
			series[i] = run
		}
		tl.Series[l] = series
	}
	return tl
}

// Matrix is total hours per user and target label.
type Matrix struct {
	Users  []string                      `json:"users"`
	Labels []string                      `json:"labels"`
	Hours  map[string]map[string]float64 `json:"hours"`
}

// UserLabelMatrix sums hours*share per user, divided evenly over each issue's
// matching target labels.
func UserLabelMatrix(rows []Row, users, targets []string) Matrix {
	m := Matrix{Users: users, Labels: targets, Hours: make(map[string]map[string]float64, len(users))}
	for _, u := range users {
		m.Hours[u] = make(map[string]float64, len(targets))
		for _, l := range targets {
			m.Hours[u][l] = 0
		}
	}
	for _, r := range issueRows(rows) {
		matches := r.MatchingLabels(targets)
		if len(matches) == 0 || r.Spent == 0 {
			continue
		}
		for _, u := range users {
			part := r.Spent * r.Shares[u] / float64(len(matches))
			for _, l := range matches {
				m.Hours[u][l] += part
			}
		}
	}
	return m
}
