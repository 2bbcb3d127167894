// Command ssrdiff compares the markup a server delivers with the document a
// browser renders from it, flagging elements hydration added or lost.
//
// Usage:
//
//	ssrdiff serve [--mcp]
//	ssrdiff compare <url> [--target id] [--highlight] [--raw] [--no-rewrite] [--out-dir dir]
//	ssrdiff normalize --base <url> [file|-]
//	ssrdiff diff <rendered-file> <reference-file>
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/ssrdiff/internal/config"
)

var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ssrdiff:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "ssrdiff",
		Short:         "Compare server-rendered HTML with the live hydrated DOM",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("SSRDIFF_CONFIG"), "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newCompareCmd(opts),
		newNormalizeCmd(),
		newDiffCmd(),
	)
	return root
}

// load reads the configuration, applies the --log-level override and
// installs the JSON logger on stderr.
func (o *rootOptions) load(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return nil, nil, err
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	logger := newLogger(stderr, cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
