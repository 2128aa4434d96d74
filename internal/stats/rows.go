/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package stats

import (
	"encoding/json"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

// Row is the flat view of one tree node. Values keep full precision; the
// JSON form is rounded.
type Row struct {
	Kind      domain.Kind
	Title     string
	ID        string
	ParentID  string
	Spent     float64
	Estimate  float64
	CreatedAt string
	State     domain.State
	Shares    map[string]float64
	Labels    map[string]bool

	item domain.WorkItem
}

// Issue returns the issue behind the row, if it is one.
func (r Row) Issue() (*domain.Issue, bool) {
	isu, ok := r.item.(*domain.Issue)
	return isu, ok
}

// MatchingLabels returns the members of targets the row is tagged with.
func (r Row) MatchingLabels(targets []string) []string {
	var out []string
	for _, t := range targets {
		if r.Labels[t] {
			out = append(out, t)
		}
	}
	return out
}

// MarshalJSON writes one column per user and per label next to the fixed
// columns. Fixed columns win on name clashes.
func (r Row) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Shares)+len(r.Labels)+8)
	for u, s := range r.Shares {
		m[u] = Round4(s)
	}
	for l, v := range r.Labels {
		m[l] = v
	}
	m["type"] = r.Kind
	m["title"] = r.Title
	m["id"] = r.ID
	if r.ParentID == "" {
		m["parent_id"] = nil
	} else {
		m["parent_id"] = r.ParentID
	}
	m["spent_hours"] = Round2(r.Spent)
	m["estimate_hours"] = Round2(r.Estimate)
	if r.CreatedAt == "" {
		m["created_at"] = nil
	} else {
		m["created_at"] = r.CreatedAt
	}
	if r.State == "" {
		m["state"] = nil
	} else {
		m["state"] = r.State
	}
	return json.Marshal(m)
}

// Flatten turns the accumulated tree into rows in pre-order using lifetime
// values. Every row carries a share for each of users and a flag for each of
// labels; epics get zero shares and false flags.
func Flatten(root domain.WorkItem, users, labels []string) []Row {
	var rows []Row
	domain.Walk(root, func(w domain.WorkItem) {
		row := newRow(w, users, labels)
		row.Spent = w.HoursSpent()
		if isu, ok := w.(*domain.Issue); ok {
			pct := isu.PercentagesByTime()
			for _, u := range users {
				row.Shares[u] = pct[u]
			}
		}
		rows = append(rows, row)
	})
	return rows
}

func newRow(w domain.WorkItem, users, labels []string) Row {
	row := Row{
		Kind:     w.Kind(),
		Title:    w.Title(),
		ID:       w.ID(),
		ParentID: domain.ParentID(w),
		Estimate: w.HoursEstimate(),
		Shares:   make(map[string]float64, len(users)),
		Labels:   make(map[string]bool, len(labels)),
		item:     w,
	}
	for _, u := range users {
		row.Shares[u] = 0
	}
	switch it := w.(type) {
	case *domain.Issue:
		row.CreatedAt = it.CreatedAt
		row.State = it.State
		for _, l := range labels {
			row.Labels[l] = it.HasLabel(l)
		}
	case *domain.Epic:
		for _, l := range labels {
			row.Labels[l] = false
		}
	}
	return row
}

func issueRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if _, ok := r.Issue(); ok {
			out = append(out, r)
		}
	}
	return out
}
