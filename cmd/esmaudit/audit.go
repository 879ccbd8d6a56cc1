package main

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/esmaudit/internal/output"
	"github.com/panbanda/esmaudit/internal/progress"
	"github.com/panbanda/esmaudit/pkg/analyzer/walker"
	"github.com/panbanda/esmaudit/pkg/config"
	"github.com/panbanda/esmaudit/pkg/manifest"
	"github.com/panbanda/esmaudit/pkg/resolver"
)

func auditCmd() *cli.Command {
	return &cli.Command{
		Name:      "audit",
		Usage:     "Count module system usage across installed dependencies",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Concurrent workers (0 = 2x CPU count)",
			},
			&cli.BoolFlag{
				Name:  "include-dev",
				Usage: "Also traverse devDependencies",
			},
			&cli.BoolFlag{
				Name:  "list-packages",
				Usage: "List every package visited",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable the progress spinner",
			},
		},
		Action: runAuditCmd,
	}
}

func runAuditCmd(c *cli.Context) error {
	dir := "."
	if c.Args().Len() > 0 {
		dir = c.Args().First()
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path %s: %w", dir, err)
	}

	cfg, err := loadConfig(c, absDir)
	if err != nil {
		return err
	}
	if err := applyAuditFlags(c, cfg); err != nil {
		return err
	}

	verbose := c.Bool("verbose")
	logger := newLogger(c.App.ErrWriter, verbose)

	roots, err := manifest.Load(absDir, manifestOptions(cfg))
	if err != nil {
		return err
	}
	logger.Debug("loaded manifest", "dir", absDir, "dependencies", len(roots))

	res, err := resolver.New(resolverOptions(cfg))
	if err != nil {
		return err
	}

	var tracker *progress.Tracker
	var onProgress func()
	if cfg.Output.Progress {
		tracker = progress.NewSpinner(c.App.ErrWriter, "Walking dependencies...")
		onProgress = tracker.Tick
	}

	w, err := walker.New(res, walkerOptions(cfg, logger, onProgress))
	if err != nil {
		return err
	}

	basePath := filepath.Join(absDir, filepath.FromSlash(cfg.Walk.Entry))
	result, err := w.Traverse(c.Context, roots, basePath)
	if tracker != nil {
		if err != nil {
			tracker.FinishError(err)
		} else {
			tracker.FinishSuccess()
		}
	}
	if err != nil {
		return fmt.Errorf("traversal failed: %w", err)
	}
	logger.Debug("traversal finished", "stats", result.Stats.String())

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(output.NewAudit(result, output.AuditOptions{
		ListPackages: c.Bool("list-packages"),
		ListFailures: verbose,
	}))
}

// loadConfig reads --config when given, otherwise the first config file in dir.
func loadConfig(c *cli.Context, dir string) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault(dir)
}

// applyAuditFlags overrides config values with explicitly set flags.
func applyAuditFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("format") {
		cfg.Output.Format = string(output.ParseFormat(c.String("format")))
	}
	if c.IsSet("workers") {
		cfg.Walk.Workers = c.Int("workers")
	}
	if c.Bool("include-dev") {
		cfg.Manifest.IncludeDev = true
	}
	if c.Bool("no-progress") {
		cfg.Output.Progress = false
	}
	return cfg.Validate()
}

func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := output.ParseFormat(cfg.Output.Format)
	if path := c.String("output"); path != "" {
		return output.NewFormatter(format, path, false)
	}
	return output.NewWriterFormatter(c.App.Writer, format, cfg.Output.Color), nil
}
