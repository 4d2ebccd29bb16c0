package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"heartguard/config"
	"heartguard/logging"
	"heartguard/registry"
)

var (
	version = "v0.0.1-default"
	commit  = ""

	cfg    = config.Default()
	logger = zap.NewNop()

	// loader and models are built from the resolved config in setup. models
	// is the process-wide set: every command reads artifacts through it once.
	loader *registry.Loader
	models *registry.Cache

	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to the YAML config file (optional)",
		Sources: cli.EnvVars("HEARTGUARD_CONFIG"),
	}

	modelsDirFlag = &cli.StringFlag{
		Name:  "models-dir",
		Usage: "Directory holding the model artifacts (optional, defaults to the executable's directory)",
	}

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "heartguard: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "heartguard",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Usage:   "Heart disease risk consensus over a fixed set of classifiers",
		Flags: []cli.Flag{
			configFlag,
			modelsDirFlag,
			debugFlag,
		},
		Commands: []*cli.Command{
			serveCmd,
			predictCmd,
			batchCmd,
			modelsCmd,
		},
		Before: setup,
		After: func(ctx context.Context, cmd *cli.Command) error {
			logger.Sync()
			return nil
		},
	}
}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	c, err := config.Load(cmd.String(configFlag.Name))
	if err != nil {
		return ctx, fmt.Errorf("loading config: %w", err)
	}
	if dir := cmd.String(modelsDirFlag.Name); dir != "" {
		c.Models.Dir = dir
	}
	if cmd.Bool(debugFlag.Name) {
		c.Log.Level = "debug"
	}

	l, err := logging.New(c.Log)
	if err != nil {
		return ctx, fmt.Errorf("initializing logger: %w", err)
	}
	cfg, logger = c, l
	loader = newLoader()
	models = registry.NewCache(loader)
	return ctx, nil
}

// newLoader resolves the artifact directory from config, falling back to the
// directory of the executable.
func newLoader() *registry.Loader {
	dir := cfg.Models.Dir
	if dir == "" {
		dir = registry.ResourceDir()
	}
	return registry.NewLoader(dir, cfg.Models.Files, logger)
}

func closeModels(set *registry.Set) {
	if err := set.Close(); err != nil {
		logger.Warn("releasing models", zap.Error(err))
	}
}
