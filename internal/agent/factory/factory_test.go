package factory

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentgate/internal/agent/claude"
	"agentgate/internal/agent/openai"
	"agentgate/internal/config"
)

func TestNewSelectsBackendByStyle(t *testing.T) {
	cfg := config.Defaults().Agent
	cfg.APIKey = "k"

	a, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &openai.Agent{}, a)
	assert.Equal(t, "alfred", a.Name())

	cfg.APIStyle = config.APIStyleClaude
	a, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &claude.Agent{}, a)

	cfg.APIStyle = "bedrock"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestNewHTTPClientHasNoOverallTimeout(t *testing.T) {
	client := newHTTPClient(0)
	assert.Zero(t, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, defaultHeaderTimeout, transport.ResponseHeaderTimeout)

	client = newHTTPClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, client.Transport.(*http.Transport).ResponseHeaderTimeout)
}
