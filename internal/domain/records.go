/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

// EpicRecord is what a fetch returns for one epic.
type EpicRecord struct {
	ID       string
	Title    string
	ChildIDs []string
	Issues   []IssueRecord
}

type IssueRecord struct {
	ID                string
	Title             string
	CreatedAt         string
	State             string
	EstimateSeconds   float64
	TotalSpentSeconds float64
	Labels            []string
	Timelogs          []TimelogRecord
}

type TimelogRecord struct {
	Hours    float64
	SpentAt  string
	UserName string
}
