/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

// Epic is a pure container. Its totals are always the sum of its children.
type Epic struct {
	node
}

func NewEpic(id, title string) *Epic {
	return &Epic{node: node{id: id, title: title}}
}

func (e *Epic) Kind() Kind { return KindEpic }

// Attach appends child unless a child with the same id is already present.
// It reports whether the child was added. Cycles are not detected here.
func (e *Epic) Attach(child WorkItem) bool {
	for _, c := range e.children {
		if SameItem(c, child) {
			return false
		}
	}
	child.base().parent = e
	e.children = append(e.children, child)
	return true
}

// Accumulate derives the epic's totals from its children on every call, so
// repeated calls on the same tree are stable.
func (e *Epic) Accumulate() (float64, float64) {
	var est, spent float64
	for _, c := range e.children {
		ce, cs := c.Accumulate()
		est += ce
		spent += cs
	}
	e.hoursEstimate = est
	e.hoursSpent = spent
	return est, spent
}
