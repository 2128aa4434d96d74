/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package stats

import (
	"sort"

	"github.com/rs/zerolog"
)

// UnknownUser collects issues without a positive share.
const UnknownUser = "unknown"

type WeekBucket struct {
	Week   string         `json:"week"`
	Counts map[string]int `json:"counts"`
}

// TopContributor returns the user with the strictly greatest share. Users
// are scanned in sorted order, so a tie goes to the first name.
func TopContributor(shares map[string]float64, users []string) string {
	sorted := append([]string(nil), users...)
	sort.Strings(sorted)
	best, bestShare := UnknownUser, 0.0
	for _, u := range sorted {
		if s := shares[u]; s > bestShare {
			best, bestShare = u, s
		}
	}
	return best
}

// CreationByWeek counts issues by the Monday of the week they were created
// in, each attributed to its top contributor. With a bounded window only
// issues created inside it are counted. Weeks without a named contributor
// are dropped.
func CreationByWeek(rows []Row, users []string, w Window, log zerolog.Logger) []WeekBucket {
	loc := w.loc()
	buckets := map[string]map[string]int{}
	for _, r := range rows {
		isu, ok := r.Issue()
		if !ok || r.CreatedAt == "" {
			continue
		}
		created, err := ParseDate(r.CreatedAt, loc)
		if err != nil {
			log.Warn().Err(err).Str("issue", isu.ID()).Msg("ignoring bad creation date")
			continue
		}
		if !w.Unbounded() && !w.Contains(created) {
			continue
		}
		week := weekStart(created.In(loc)).Format(dayLayout)
		if buckets[week] == nil {
			buckets[week] = map[string]int{}
		}
		buckets[week][TopContributor(r.Shares, users)]++
	}

	out := make([]WeekBucket, 0, len(buckets))
	for week, counts := range buckets {
		named := false
		for u, n := range counts {
			if u != UnknownUser && n > 0 {
				named = true
				break
			}
		}
		if named {
			out = append(out, WeekBucket{Week: week, Counts: counts})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out
}
