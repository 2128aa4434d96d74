package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
)

func TestNewWithWriter_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.Config{AppEnv: "prod"}, &buf)
	l.Info().Str("epic", "42").Msg("refresh done")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "42", line["epic"])
	assert.Equal(t, "refresh done", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewWithWriter_ConsoleInDev(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.Config{AppEnv: "dev"}, &buf)
	l.Warn().Msg("bad date")
	assert.Contains(t, buf.String(), "bad date")
	assert.False(t, json.Valid(buf.Bytes()))
}
