// Command verimux converts MPEG-TS recordings to MP4 and proves the
// result faithful: every stream is decoded and fingerprinted against
// the source, with a one-shot audio re-encode fallback when the copied
// audio does not verify.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/verimux/verimux/internal/check"
	"github.com/verimux/verimux/internal/config"
	"github.com/verimux/verimux/internal/convert"
	"github.com/verimux/verimux/internal/display"
	"github.com/verimux/verimux/internal/ffmpeg"
	"github.com/verimux/verimux/internal/fingerprint"
	"github.com/verimux/verimux/internal/integrity"
	"github.com/verimux/verimux/internal/logging"
	"github.com/verimux/verimux/internal/pipeline"
	"github.com/verimux/verimux/internal/probe"
)

// version and commit are set at build time via -ldflags.
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

func main() {
	app := &cli.App{
		Name:      "verimux",
		Usage:     "convert TS recordings to MP4 with decoded-content verification",
		Version:   fmt.Sprintf("%s (%s)", version, commit),
		ArgsUsage: "<input file or directory>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "destination `DIR`", Required: true},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config `FILE`"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "parallel conversions"},
			&cli.StringFlag{Name: "audio-encoder", Usage: "auto, aac, or libfdk_aac"},
			&cli.StringFlag{Name: "ss", Usage: "trim start (`TIME`, ffmpeg syntax)"},
			&cli.StringFlag{Name: "to", Usage: "trim end (`TIME`, ffmpeg syntax)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "reconvert even when the output exists"},
			&cli.BoolFlag{Name: "watch", Usage: "keep watching the input directory for new recordings"},
			&cli.StringFlag{Name: "cache-dir", Usage: "fingerprint cache `DIR` (empty disables the cache)"},
			&cli.StringFlag{Name: "log-file", Usage: "also log to `FILE` with rotation"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored output"},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "diagnose the local ffmpeg installation",
				Action: func(c *cli.Context) error {
					cfg := config.Default()
					cfg.NoColor = c.Bool("no-color")
					log := logging.New(&cfg)
					check.Run(c.Context, log)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "verimux: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	log := logging.New(cfg)
	display.PrintBanner(cfg.NoColor)
	log.Info().Str("version", version).Str("in", cfg.Input).Str("out", cfg.OutputDir).Msg("verimux")

	if err := validatePaths(cfg); err != nil {
		return err
	}
	if err := check.Deps(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache *fingerprint.Cache
	if cfg.CacheDir != "" {
		cache, err = fingerprint.OpenCache(cfg.CacheDir, log)
		if err != nil {
			return fmt.Errorf("open fingerprint cache: %w", err)
		}
		defer cache.Close()
	}

	tool := &ffmpeg.Runner{Log: log}
	prober := &probe.Prober{Log: log}
	hasher := &fingerprint.Hasher{Decoder: tool, Cache: cache, Log: log}

	runner := &pipeline.Runner{
		Cfg: cfg,
		Converter: &convert.Orchestrator{
			Prober:       prober,
			Tool:         tool,
			Checker:      &integrity.Checker{Hasher: hasher, Log: log},
			Metrics:      tool,
			AudioEncoder: cfg.AudioEncoder,
			Log:          log,
		},
		Log: log,
	}

	stats := runner.Run(ctx)
	if !stats.OK() {
		return cli.Exit(fmt.Sprintf("%d file(s) failed verification, %d aborted on errors",
			stats.Failed, stats.Errored), 1)
	}
	return nil
}

// buildConfig layers defaults, the optional YAML file, and CLI flags,
// in that order.
func buildConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		if err := config.Load(path, &cfg); err != nil {
			return nil, err
		}
	}

	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one input path, got %d", c.NArg())
	}
	cfg.Input = c.Args().First()
	cfg.OutputDir = c.String("output")
	cfg.Start = c.String("ss")
	cfg.To = c.String("to")

	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("audio-encoder") {
		cfg.AudioEncoder = c.String("audio-encoder")
	}
	if c.IsSet("force") {
		cfg.SkipExisting = !c.Bool("force")
	}
	if c.IsSet("watch") {
		cfg.Watch = c.Bool("watch")
	}
	if c.IsSet("cache-dir") {
		cfg.CacheDir = c.String("cache-dir")
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Bool("verbose")
	}
	if c.IsSet("no-color") {
		cfg.NoColor = c.Bool("no-color")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validatePaths resolves input and output and rejects an output
// directory nested inside the input tree, which would make discovery
// pick up the tool's own results.
func validatePaths(cfg *config.Config) error {
	inputAbs, err := absPath(cfg.Input)
	if err != nil {
		return fmt.Errorf("input not found: %s", cfg.Input)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}
	outputAbs, err := absPath(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("cannot resolve output path: %s", cfg.OutputDir)
	}
	return cfg.ValidatePaths(inputAbs, outputAbs)
}

// absPath returns the absolute path with symlinks resolved, for
// comparing the input and output hierarchies.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
