/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

type State string

const (
	StateOpened State = "opened"
	StateClosed State = "closed"
)

// TimeEntry is one logged amount of time. Date is kept as received from the
// source and only parsed by the aggregations that need it.
type TimeEntry struct {
	Hours float64 `json:"hours"`
	Date  string  `json:"date"`
}

// Issue is a leaf work item carrying per-user time entries and labels.
type Issue struct {
	node

	CreatedAt string // ISO-8601, "" when unknown
	State     State

	userTimes map[string][]TimeEntry
	users     []string
	labels    []string
}

func NewIssue(id, title string) *Issue {
	return &Issue{
		node:      node{id: id, title: title},
		State:     StateOpened,
		userTimes: map[string][]TimeEntry{},
		labels:    []string{},
	}
}

func (i *Issue) Kind() Kind { return KindIssue }

// SetHours sets the source totals of the issue.
func (i *Issue) SetHours(estimate, spent float64) {
	i.hoursEstimate = estimate
	i.hoursSpent = spent
}

// Accumulate returns the source values unchanged.
func (i *Issue) Accumulate() (float64, float64) {
	return i.hoursEstimate, i.hoursSpent
}

// RecordTime appends an entry for user. Neither hours nor date are validated.
func (i *Issue) RecordTime(hours float64, user, date string) {
	if _, ok := i.userTimes[user]; !ok {
		i.users = append(i.users, user)
	}
	i.userTimes[user] = append(i.userTimes[user], TimeEntry{Hours: hours, Date: date})
}

// Users returns the users with entries in first-logged order.
func (i *Issue) Users() []string { return i.users }

// Entries returns the entries of user in log order.
func (i *Issue) Entries(user string) []TimeEntry { return i.userTimes[user] }

func (i *Issue) TotalTimeForUser(user string) float64 {
	var sum float64
	for _, e := range i.userTimes[user] {
		sum += e.Hours
	}
	return sum
}

// LoggedHours is the sum over all entries. It may differ from HoursSpent,
// which comes from the source's own total.
func (i *Issue) LoggedHours() float64 {
	var sum float64
	for _, u := range i.users {
		sum += i.TotalTimeForUser(u)
	}
	return sum
}

// PercentagesByTime returns each user's share of the logged hours. The
// denominator is the sum of the entries, not HoursSpent. An issue without
// entries yields an empty map; entries summing to zero yield zero shares.
func (i *Issue) PercentagesByTime() map[string]float64 {
	out := make(map[string]float64, len(i.users))
	if len(i.users) == 0 {
		return out
	}
	total := i.LoggedHours()
	for _, u := range i.users {
		if total > 0 {
			out[u] = i.TotalTimeForUser(u) / total
		} else {
			out[u] = 0
		}
	}
	return out
}

// AddLabel appends label. Duplicates are kept.
func (i *Issue) AddLabel(label string) { i.labels = append(i.labels, label) }

func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.labels {
		if l == label {
			return true
		}
	}
	return false
}

func (i *Issue) Labels() []string { return i.labels }

func (i *Issue) Closed() bool { return i.State == StateClosed }
