package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

// openTestRepo connects to TEST_DB_DSN and skips when it is not set.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	d, err := Open(context.Background(), config.Config{DBDSN: dsn}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(d.Close)
	require.NoError(t, d.Migrate(context.Background()))
	return NewRepository(d, zerolog.Nop())
}

func TestRepository_JobRuns(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	id, err := r.StartJobRun(ctx, "refresh", "42")
	require.NoError(t, err)
	require.NoError(t, r.FinishJobRun(ctx, id, 12, true, ""))

	lr, err := r.GetLastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, lr)
	assert.Equal(t, id, lr.ID)
	assert.Equal(t, "refresh", lr.Kind)
	assert.Equal(t, 12, lr.Items)
	assert.True(t, lr.Success)
	assert.NotNil(t, lr.FinishedAt)
}

func TestRepository_Reports(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	id, err := r.SaveReport(ctx, domain.Report{CreatedAt: time.Now(), SnapshotID: "s1", Days: 7, Model: "m", Text: "quiet week"})
	require.NoError(t, err)
	rep, err := r.LatestReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, rep.ID)
	assert.Equal(t, "quiet week", rep.Text)
}

func TestRepository_SnapshotHistory(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	snapID := "test-" + time.Now().Format("150405.000000000")
	require.NoError(t, r.SaveSnapshot(ctx, domain.SnapshotRecord{
		ID: snapID, LoadedAt: time.Now().Add(time.Hour), EpicRootID: "42",
		Issues: []domain.SnapshotIssue{
			{ID: "2", ParentID: "1", Title: "A", State: domain.StateOpened, Spent: 3, Estimate: 4},
			{ID: "3", ParentID: "1", Title: "B", State: domain.StateClosed, Spent: 1.5},
		},
	}))
	hist, err := r.SnapshotHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, snapID, hist[0].ID)
	assert.Equal(t, 2, hist[0].Issues)
	assert.Equal(t, 4.5, hist[0].Spent)
}

func TestRepository_AdvisoryLock(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	ok, err := r.TryAdvisoryLock(ctx, 4242001)
	require.NoError(t, err)
	require.True(t, ok)

	other := NewRepository(r.db, zerolog.Nop())
	ok, err = other.TryAdvisoryLock(ctx, 4242001)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.AdvisoryUnlock(ctx, 4242001))
	assert.Error(t, r.AdvisoryUnlock(ctx, 4242001))
}
