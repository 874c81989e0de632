package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"agentgate/internal/catalog"
	"agentgate/internal/config"
)

const modelsUsage = `Usage:
  agentgate models [--config <path>]

Flags:
  --config string   Path to YAML configuration file`

func listModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, modelsUsage)
	}

	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse models flags: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	cat, err := catalog.New(cfg.Models, time.Now())
	if err != nil {
		return err
	}

	return printCatalog(os.Stdout, cat)
}

func printCatalog(w io.Writer, cat *catalog.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOWNED BY")
	for _, info := range cat.List() {
		fmt.Fprintf(tw, "%s\t%s\n", info.ID, info.OwnedBy)
	}
	return tw.Flush()
}
