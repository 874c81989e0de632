package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"agentgate/internal/agent/factory"
	"agentgate/internal/catalog"
	"agentgate/internal/chat"
	"agentgate/internal/config"
	"agentgate/internal/server"
)

const serveUsage = `Usage:
  agentgate serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to YAML configuration file (defaults and env only when omitted)
  --port   int      Override server port from configuration`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	slog.SetDefault(newLogger(cfg.Log, os.Stderr))

	cat, err := catalog.New(cfg.Models, time.Now())
	if err != nil {
		return err
	}

	backend, err := factory.New(cfg.Agent)
	if err != nil {
		return err
	}
	slog.Info("agent configured",
		"agent", backend.Name(),
		"api_style", cfg.Agent.APIStyle,
		"base_url", cfg.Agent.BaseURL,
		"model", cfg.Agent.Model,
	)

	srv, err := server.New(cfg, cat, chat.NewService(backend))
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
