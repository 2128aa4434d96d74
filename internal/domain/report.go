/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

// Report is a generated text summary of one statistics window.
type Report struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	SnapshotID string    `json:"snapshot_id"`
	Days       int       `json:"days"`
	Model      string    `json:"model"`
	Text       string    `json:"text"`
}

// JobRun records one refresh or report run.
type JobRun struct {
	ID         int64      `json:"id"`
	Kind       string     `json:"kind"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	EpicRootID string     `json:"epic_root_id"`
	Items      int        `json:"items"`
	Success    bool       `json:"success"`
	Error      string     `json:"error"`
}

// SnapshotRecord is the archived form of one refresh.
type SnapshotRecord struct {
	ID         string          `json:"id"`
	LoadedAt   time.Time       `json:"loaded_at"`
	EpicRootID string          `json:"epic_root_id"`
	Issues     []SnapshotIssue `json:"issues"`
}

type SnapshotIssue struct {
	ID       string  `json:"id"`
	ParentID string  `json:"parent_id"`
	Title    string  `json:"title"`
	State    State   `json:"state"`
	Spent    float64 `json:"spent_hours"`
	Estimate float64 `json:"estimate_hours"`
}

// SnapshotTotal sums one archived snapshot.
type SnapshotTotal struct {
	ID       string    `json:"id"`
	LoadedAt time.Time `json:"loaded_at"`
	Issues   int       `json:"issues"`
	Spent    float64   `json:"spent_hours"`
	Estimate float64   `json:"estimate_hours"`
}
