/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

// Fetcher loads one epic with its issues and child epic ids.
type Fetcher interface {
	FetchEpic(ctx context.Context, groupPath, epicID string) (*domain.EpicRecord, error)
}

// BuildResult is a freshly built tree plus the users and labels seen on its
// issues, both sorted.
type BuildResult struct {
	Root   *domain.Epic
	Users  []string
	Labels []string
	Issues int
}

type treeBuilder struct {
	src       Fetcher
	groupPath string
	log       zerolog.Logger
	visited   map[string]bool
	users     map[string]struct{}
	labels    map[string]struct{}
	issues    int
}

// BuildTree fetches rootID and its descendants and assembles the epic tree.
// Any fetch error aborts the build.
func BuildTree(ctx context.Context, src Fetcher, groupPath, rootID string, log zerolog.Logger) (*BuildResult, error) {
	b := &treeBuilder{
		src:       src,
		groupPath: groupPath,
		log:       log,
		visited:   map[string]bool{},
		users:     map[string]struct{}{},
		labels:    map[string]struct{}{},
	}
	root, err := b.epic(ctx, rootID)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Root: root, Users: sortedKeys(b.users), Labels: sortedKeys(b.labels), Issues: b.issues}, nil
}

func (b *treeBuilder) epic(ctx context.Context, id string) (*domain.Epic, error) {
	if b.visited[id] {
		return nil, fmt.Errorf("%w: epic %s reached twice", domain.ErrCycle, id)
	}
	b.visited[id] = true
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := b.src.FetchEpic(ctx, b.groupPath, id)
	if err != nil {
		return nil, fmt.Errorf("fetch epic %s: %w", id, err)
	}
	b.log.Info().Str("epic", rec.ID).Str("title", rec.Title).Int("issues", len(rec.Issues)).Msg("processing epic")

	epic := domain.NewEpic(rec.ID, rec.Title)
	for _, ir := range rec.Issues {
		if !epic.Attach(b.issue(ir)) {
			b.log.Debug().Str("epic", rec.ID).Str("issue", ir.ID).Msg("duplicate issue skipped")
			continue
		}
		b.register(ir)
	}
	for _, childID := range rec.ChildIDs {
		child, err := b.epic(ctx, childID)
		if err != nil {
			return nil, err
		}
		epic.Attach(child)
	}
	return epic, nil
}

func (b *treeBuilder) issue(ir domain.IssueRecord) *domain.Issue {
	isu := domain.NewIssue(ir.ID, ir.Title)
	isu.SetHours(ir.EstimateSeconds/3600, ir.TotalSpentSeconds/3600)
	isu.CreatedAt = ir.CreatedAt
	if strings.EqualFold(ir.State, string(domain.StateClosed)) {
		isu.State = domain.StateClosed
	}
	for _, tl := range ir.Timelogs {
		isu.RecordTime(tl.Hours, tl.UserName, tl.SpentAt)
	}
	for _, l := range ir.Labels {
		isu.AddLabel(l)
	}
	return isu
}

// register adds an attached issue's users and labels to the build totals.
func (b *treeBuilder) register(ir domain.IssueRecord) {
	for _, tl := range ir.Timelogs {
		b.users[tl.UserName] = struct{}{}
	}
	for _, l := range ir.Labels {
		b.labels[l] = struct{}{}
	}
	b.issues++
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
