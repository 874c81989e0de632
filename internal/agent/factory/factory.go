package factory

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"agentgate/internal/agent"
	"agentgate/internal/agent/claude"
	"agentgate/internal/agent/openai"
	"agentgate/internal/config"
)

const (
	defaultHeaderTimeout   = 60 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// New constructs the configured backend agent.
func New(cfg config.AgentConfig) (agent.Agent, error) {
	client := newHTTPClient(cfg.Timeout)

	switch cfg.APIStyle {
	case config.APIStyleOpenAI:
		a, err := openai.New(cfg, client)
		if err != nil {
			return nil, fmt.Errorf("initialise openai agent: %w", err)
		}
		return a, nil
	case config.APIStyleClaude:
		a, err := claude.New(cfg, client)
		if err != nil {
			return nil, fmt.Errorf("initialise claude agent: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported agent api_style %q", cfg.APIStyle)
	}
}

// newHTTPClient has no overall timeout so streamed answers are not cut off;
// the header timeout bounds how long a backend may take to start answering.
func newHTTPClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = defaultHeaderTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
	}

	return &http.Client{
		Transport: transport,
	}
}
