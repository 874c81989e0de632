package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentgate/internal/catalog"
	"agentgate/internal/config"
)

func TestExecuteUnknownCommand(t *testing.T) {
	err := Execute(context.Background(), []string{"launch"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "launch"`)
}

func TestServeRejectsBadPortOverride(t *testing.T) {
	t.Setenv("AGENTGATE_API_KEY", "k")

	err := Execute(context.Background(), []string{"serve", "--port", "-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port override")
}

func TestPrintCatalog(t *testing.T) {
	cat, err := catalog.New([]config.ModelConfig{
		{ID: "alfred-butler", OwnedBy: "agentgate"},
		{ID: "agentgate-agent", OwnedBy: "agentgate"},
	}, time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printCatalog(&buf, cat))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "alfred-butler"))
	assert.True(t, strings.HasPrefix(lines[2], "agentgate-agent"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
