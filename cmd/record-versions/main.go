// Package main provides the record-versions command line tool and
// maintenance daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/txn2/record-versions/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

const usage = `Usage: record-versions [-config path] [-log-level level] <command> [flags]

Commands:
  migrate   apply database migrations
  serve     run the maintenance scheduler with health and metrics endpoints
  purge     delete expired versions (-all deletes every version)
  list      list the versions of a record
  compare   render the differences between two versions of a record
  restore   restore a version of a record
  audit     list recent changes across all tables
  version   print the version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalOptions struct {
	configPath string
	logLevel   string
}

// command runs one subcommand against a started platform.
type command func(ctx context.Context, p *platform.Platform, args []string, out io.Writer) error

var commands = map[string]command{
	"migrate": runMigrate,
	"serve":   runServe,
	"purge":   runPurge,
	"list":    runList,
	"compare": runCompare,
	"restore": runRestore,
	"audit":   runAudit,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := globalOptions{}
	fs := flag.NewFlagSet("record-versions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.StringVar(&opts.configPath, "config", envOr("RECORD_VERSIONS_CONFIG", "config.yaml"), "Path to configuration file")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("no command given")
	}
	name, cmdArgs := rest[0], rest[1:]

	if name == "version" {
		_, err := fmt.Fprintf(stdout, "record-versions version %s\n", Version)
		return err
	}
	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command: %s", name)
	}

	logger, err := newLogger(stderr, opts.logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	p, err := loadPlatform(ctx, opts.configPath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	return cmd(ctx, p, cmdArgs, stdout)
}

func loadPlatform(ctx context.Context, path string, logger *slog.Logger) (*platform.Platform, error) {
	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := platform.New(ctx, platform.WithConfig(cfg), platform.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating platform: %w", err)
	}
	return p, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
