package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_TZ", "UTC")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("GROUP_FULL_PATH", "my-org/my-team")
	t.Setenv("EPIC_ROOT_ID", "42")
	t.Setenv("GITLAB_TOKEN", "")
	t.Setenv("TOKEN", "glpat-x")
	t.Setenv("TARGET_LABELS", " Bug , UI,,")
	t.Setenv("TELEGRAM_CHAT_IDS", "1, x, 2")
	t.Setenv("OPENAI_TIMEOUT", "5s")
	t.Setenv("REPORT_DAYS", "nope")

	cfg := Load()
	assert.Equal(t, "my-org/my-team", cfg.GroupPath)
	assert.Equal(t, "42", cfg.EpicRootID)
	assert.Equal(t, "glpat-x", cfg.GitLabToken)
	assert.Equal(t, []string{"Bug", "UI"}, cfg.TargetLabels)
	assert.Equal(t, []int64{1, 2}, cfg.TelegramChatIDs)
	assert.Equal(t, 5*time.Second, cfg.OpenAITimeout)
	assert.Equal(t, 7, cfg.ReportDays)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_TOMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timetool.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[gitlab]
group_path = "org/team"
epic_root_id = "7"
target_labels = ["Frontend", "Backend"]

[schedule]
report_days = 14
report_cron = "0 8 * * FRI"

[telegram]
chat_ids = [100, 200]
`), 0o600))
	t.Setenv("APP_TZ", "UTC")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GROUP_FULL_PATH", "env/group")

	cfg := Load()
	assert.Equal(t, "org/team", cfg.GroupPath)
	assert.Equal(t, "7", cfg.EpicRootID)
	assert.Equal(t, []string{"Frontend", "Backend"}, cfg.TargetLabels)
	assert.Equal(t, 14, cfg.ReportDays)
	assert.Equal(t, "0 8 * * FRI", cfg.ReportCron)
	assert.Equal(t, []int64{100, 200}, cfg.TelegramChatIDs)
}

func TestValidate_ReportsMissingSettings(t *testing.T) {
	err := Config{GroupPath: "g"}.Validate()
	require.ErrorIs(t, err, domain.ErrMissingConfig)
	assert.Contains(t, err.Error(), "EPIC_ROOT_ID")
	assert.Contains(t, err.Error(), "GITLAB_TOKEN")
	assert.NotContains(t, err.Error(), "GROUP_FULL_PATH")
}
