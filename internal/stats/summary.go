/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package stats

import (
	"time"

	"github.com/rs/zerolog"
)

type LabelStat struct {
	Count int     `json:"count"`
	Hours float64 `json:"hours"`
}

type Summary struct {
	TotalSpent     float64              `json:"total_spent"`
	TotalEstimated float64              `json:"total_estimated"`
	UserHours      map[string]float64   `json:"user_stats"`
	LabelStats     map[string]LabelStat `json:"label_stats"`
}

// Summarize totals the issue rows. Per-user hours are spent*share.
func Summarize(rows []Row, users, labels []string) Summary {
	s := Summary{UserHours: make(map[string]float64, len(users)), LabelStats: make(map[string]LabelStat, len(labels))}
	issues := issueRows(rows)
	for _, r := range issues {
		s.TotalSpent += r.Spent
		s.TotalEstimated += r.Estimate
	}
	for _, u := range users {
		var sum float64
		for _, r := range issues {
			sum += r.Spent * r.Shares[u]
		}
		s.UserHours[u] = sum
	}
	for _, l := range labels {
		var st LabelStat
		for _, r := range issues {
			if r.Labels[l] {
				st.Count++
				st.Hours += r.Spent
			}
		}
		s.LabelStats[l] = st
	}
	return s
}

// Input is everything Compute needs for one dashboard block.
type Input struct {
	Rows    []Row
	Users   []string
	Labels  []string
	Targets []string
	Window  Window
	Now     time.Time
	Log     zerolog.Logger
}

// Stats is the statistics block exposed to the dashboard.
type Stats struct {
	Summary
	CumulativeFlow  []FlowPoint   `json:"cumulative_flow"`
	CreatedByWeek   []WeekBucket  `json:"created_by_week"`
	LabelTimeline   LabelTimeline `json:"label_timeline"`
	UserLabelMatrix Matrix        `json:"user_label_matrix"`
}

// Compute runs every aggregation over in.Rows and rounds the hour figures
// for output.
func Compute(in Input) Stats {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	st := Stats{
		Summary:         Summarize(in.Rows, in.Users, in.Labels),
		CumulativeFlow:  CumulativeFlow(in.Rows, in.Window, in.Now, in.Log),
		CreatedByWeek:   CreationByWeek(in.Rows, in.Users, in.Window, in.Log),
		LabelTimeline:   LabelTimelineOf(in.Rows, in.Targets, in.Window.loc(), in.Log),
		UserLabelMatrix: UserLabelMatrix(in.Rows, in.Users, in.Targets),
	}
	st.round()
	return st
}

func (st *Stats) round() {
	st.TotalSpent = Round2(st.TotalSpent)
	st.TotalEstimated = Round2(st.TotalEstimated)
	for u, h := range st.UserHours {
		st.UserHours[u] = Round2(h)
	}
	for l, ls := range st.LabelStats {
		ls.Hours = Round2(ls.Hours)
		st.LabelStats[l] = ls
	}
	for _, series := range st.LabelTimeline.Series {
		for i := range series {
			series[i] = Round2(series[i])
		}
	}
	for _, byLabel := range st.UserLabelMatrix.Hours {
		for l, h := range byLabel {
			byLabel[l] = Round2(h)
		}
	}
}
