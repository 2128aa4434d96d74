package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

type fakeFetcher struct {
	mu    sync.Mutex
	epics map[string]*domain.EpicRecord
	errs  map[string]error
	calls int
}

func (f *fakeFetcher) FetchEpic(ctx context.Context, groupPath, epicID string) (*domain.EpicRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[epicID]; err != nil {
		return nil, err
	}
	rec, ok := f.epics[epicID]
	if !ok {
		return nil, errors.New("epic not found")
	}
	return rec, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// sampleFetcher serves Root(1) with issues A(2) and B(3) and the child epic
// Sub(10) holding issue C(11).
func sampleFetcher() *fakeFetcher {
	return &fakeFetcher{epics: map[string]*domain.EpicRecord{
		"1": {
			ID: "1", Title: "Root", ChildIDs: []string{"10"},
			Issues: []domain.IssueRecord{
				{
					ID: "2", Title: "Fix login for U1", CreatedAt: "2025-09-30T08:00:00Z", State: "opened",
					EstimateSeconds: 4 * 3600, TotalSpentSeconds: 3 * 3600, Labels: []string{"Bug"},
					Timelogs: []domain.TimelogRecord{{Hours: 3, SpentAt: "2025-10-01T10:00:00Z", UserName: "U1"}},
				},
				{ID: "3", Title: "B", CreatedAt: "2025-10-02T08:00:00Z", State: "opened"},
			},
		},
		"10": {
			ID: "10", Title: "Sub",
			Issues: []domain.IssueRecord{
				{
					ID: "11", Title: "C", CreatedAt: "2025-10-03T08:00:00Z", State: "CLOSED",
					TotalSpentSeconds: 3 * 3600, Labels: []string{"Feature", "Bug"},
					Timelogs: []domain.TimelogRecord{
						{Hours: 2, SpentAt: "2025-10-04T09:00:00Z", UserName: "U2"},
						{Hours: 1, SpentAt: "2025-10-04T11:00:00Z", UserName: "U1"},
					},
				},
			},
		},
	}}
}

func TestBuildTree_AssemblesHierarchy(t *testing.T) {
	res, err := BuildTree(context.Background(), sampleFetcher(), "grp", "1", zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"U1", "U2"}, res.Users)
	assert.Equal(t, []string{"Bug", "Feature"}, res.Labels)
	assert.Equal(t, 3, res.Issues)

	root := res.Root
	require.Len(t, root.Children(), 3)
	assert.Equal(t, "2", root.Children()[0].ID())
	assert.Equal(t, "3", root.Children()[1].ID())
	sub := root.Children()[2]
	assert.Equal(t, domain.KindEpic, sub.Kind())
	assert.Equal(t, "1", domain.ParentID(sub))

	c, ok := sub.Children()[0].(*domain.Issue)
	require.True(t, ok)
	assert.True(t, c.Closed())
	assert.Equal(t, 3.0, c.HoursSpent())
	assert.Equal(t, []string{"U2", "U1"}, c.Users())

	a := root.Children()[0].(*domain.Issue)
	assert.Equal(t, 4.0, a.HoursEstimate())
	assert.Equal(t, "2025-09-30T08:00:00Z", a.CreatedAt)

	_, spent := root.Accumulate()
	assert.Equal(t, 6.0, spent)
}

func TestBuildTree_FetchErrorAborts(t *testing.T) {
	f := sampleFetcher()
	boom := errors.New("status=500")
	f.errs = map[string]error{"10": boom}

	_, err := BuildTree(context.Background(), f, "grp", "1", zerolog.Nop())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fetch epic 10")
}

func TestBuildTree_DetectsCycle(t *testing.T) {
	f := sampleFetcher()
	f.epics["10"].ChildIDs = []string{"1"}

	_, err := BuildTree(context.Background(), f, "grp", "1", zerolog.Nop())
	require.ErrorIs(t, err, domain.ErrCycle)
}

func TestBuildTree_SkipsDuplicateIssue(t *testing.T) {
	f := sampleFetcher()
	f.epics["1"].Issues = append(f.epics["1"].Issues, domain.IssueRecord{ID: "2", Title: "A again"})

	res, err := BuildTree(context.Background(), f, "grp", "1", zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, res.Root.Children(), 3)
	assert.Equal(t, "Fix login for U1", res.Root.Children()[0].Title())
}

func TestBuildTree_DuplicateIssueAddsNoColumns(t *testing.T) {
	f := sampleFetcher()
	f.epics["1"].Issues = append(f.epics["1"].Issues, domain.IssueRecord{
		ID: "2", Title: "A again", Labels: []string{"Docs"},
		Timelogs: []domain.TimelogRecord{{Hours: 1, SpentAt: "2025-10-02T10:00:00Z", UserName: "Ghost"}},
	})

	res, err := BuildTree(context.Background(), f, "grp", "1", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, res.Users)
	assert.Equal(t, []string{"Bug", "Feature"}, res.Labels)
	assert.Equal(t, 3, res.Issues)
}

func TestBuildTree_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := sampleFetcher()

	_, err := BuildTree(ctx, f, "grp", "1", zerolog.Nop())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.Calls())
}
