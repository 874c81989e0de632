package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	APIStyleOpenAI = "openai"
	APIStyleClaude = "claude"
)

const defaultPersona = `You are Alfred, a courteous and discreet butler.
Answer with formal but warm British English, offer practical advice,
and allow yourself the occasional dry remark.`

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Agent   AgentConfig   `yaml:"agent"`
	Models  []ModelConfig `yaml:"models"`
	Service ServiceConfig `yaml:"service"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServiceConfig is the static metadata served on the root endpoint.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// AgentConfig captures how to reach the backend agent.
type AgentConfig struct {
	Name        string        `yaml:"name"`
	APIStyle    string        `yaml:"api_style"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	Persona     string        `yaml:"persona"`
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Headers     Headers       `yaml:"headers"`
}

// Headers contains additional HTTP headers to send with a backend request.
type Headers map[string]string

// ModelConfig describes a model identifier published in the catalog.
type ModelConfig struct {
	ID      string `yaml:"id"`
	OwnedBy string `yaml:"owned_by"`
}

// Defaults returns the configuration used before any file or env override.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8000},
		Log:    LogConfig{Level: "info", Format: "text"},
		Agent: AgentConfig{
			Name:      "alfred",
			APIStyle:  APIStyleOpenAI,
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "AGENTGATE_API_KEY",
			Model:     "gpt-4o-mini",
			Persona:   defaultPersona,
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
		},
		Models: []ModelConfig{
			{ID: "alfred-butler", OwnedBy: "agentgate"},
			{ID: "agentgate-agent", OwnedBy: "agentgate"},
		},
		Service: ServiceConfig{Name: "agentgate", Version: "1.0.0"},
	}
}

// Load reads YAML configuration from disk on top of the defaults, applies
// environment overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Agent.APIKey == "" && cfg.Agent.APIKeyEnv != "" {
		cfg.Agent.APIKey = os.Getenv(cfg.Agent.APIKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("AGENTGATE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGENTGATE_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("AGENTGATE_BASE_URL"); v != "" {
		cfg.Agent.BaseURL = v
	}
	if v := os.Getenv("AGENTGATE_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	if v := os.Getenv("AGENTGATE_API_STYLE"); v != "" {
		cfg.Agent.APIStyle = v
	}
	return nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q must be one of \"text\" or \"json\"", c.Log.Format)
	}

	if err := validateAgent(c.Agent); err != nil {
		return err
	}

	if len(c.Models) == 0 {
		return errors.New("models: at least one model must be configured")
	}
	seen := make(map[string]struct{}, len(c.Models))
	for _, model := range c.Models {
		if strings.TrimSpace(model.ID) == "" {
			return errors.New("models: model id must not be empty")
		}
		if _, dup := seen[model.ID]; dup {
			return fmt.Errorf("models: duplicate model id %q", model.ID)
		}
		seen[model.ID] = struct{}{}
	}

	return nil
}

func validateAgent(agent AgentConfig) error {
	if err := validateAPIStyle(agent.APIStyle); err != nil {
		return err
	}
	if strings.TrimSpace(agent.APIKey) == "" {
		return errors.New("agent: api_key must be provided (directly or via api_key_env)")
	}
	if strings.TrimSpace(agent.BaseURL) == "" {
		return errors.New("agent: base_url must be provided")
	}
	if strings.TrimSpace(agent.Model) == "" {
		return errors.New("agent: model must be provided")
	}
	if agent.Temperature != nil && (*agent.Temperature < 0 || *agent.Temperature > 2) {
		return fmt.Errorf("agent: temperature %v must be between 0 and 2", *agent.Temperature)
	}
	if agent.MaxTokens < 0 {
		return fmt.Errorf("agent: max_tokens %d must not be negative", agent.MaxTokens)
	}
	if agent.APIStyle == APIStyleClaude && agent.MaxTokens == 0 {
		return errors.New("agent: claude api_style requires a positive max_tokens")
	}
	if agent.Timeout < 0 {
		return fmt.Errorf("agent: timeout %s must not be negative", agent.Timeout)
	}

	for headerKey := range agent.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("agent: header %q is not a valid canonical HTTP header", headerKey)
		}
	}
	return nil
}

func validateAPIStyle(style string) error {
	switch style {
	case APIStyleOpenAI, APIStyleClaude:
		return nil
	default:
		return fmt.Errorf("agent: api_style %q must be one of %q or %q", style, APIStyleOpenAI, APIStyleClaude)
	}
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
