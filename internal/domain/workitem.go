/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

// Kind tags a work item for serialization. Code paths dispatch on the
// concrete type, not on this value.
type Kind string

const (
	KindEpic  Kind = "epic"
	KindIssue Kind = "issue"
)

// WorkItem is a node of the epic tree. It is implemented only by *Epic and
// *Issue.
type WorkItem interface {
	ID() string
	Title() string
	Kind() Kind
	Parent() WorkItem
	Children() []WorkItem
	HoursEstimate() float64
	HoursSpent() float64
	// Accumulate resolves the item's totals bottom-up and returns them.
	Accumulate() (estimate, spent float64)

	base() *node
}

type node struct {
	id            string
	title         string
	parent        WorkItem
	children      []WorkItem
	hoursEstimate float64
	hoursSpent    float64
}

func (n *node) ID() string             { return n.id }
func (n *node) Title() string          { return n.title }
func (n *node) Parent() WorkItem       { return n.parent }
func (n *node) HoursEstimate() float64 { return n.hoursEstimate }
func (n *node) HoursSpent() float64    { return n.hoursSpent }
func (n *node) base() *node            { return n }

// Children returns the attached children in attach order. The slice must
// not be modified.
func (n *node) Children() []WorkItem { return n.children }

// SameItem reports whether a and b carry the same id. Items without an id
// are never equal, not even to themselves.
func SameItem(a, b WorkItem) bool {
	if a == nil || b == nil {
		return false
	}
	if a.ID() == "" || b.ID() == "" {
		return false
	}
	return a.ID() == b.ID()
}

// ParentID returns the id of the item's parent or "" for the root.
func ParentID(w WorkItem) string {
	if p := w.Parent(); p != nil {
		return p.ID()
	}
	return ""
}

// Walk visits w and its descendants in pre-order.
func Walk(w WorkItem, fn func(WorkItem)) {
	fn(w)
	for _, c := range w.Children() {
		Walk(c, fn)
	}
}
