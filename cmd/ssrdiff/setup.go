package main

import (
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/ssrdiff/capture"
	"github.com/hazyhaar/ssrdiff/compare"
	"github.com/hazyhaar/ssrdiff/dbopen"
	"github.com/hazyhaar/ssrdiff/history"
	"github.com/hazyhaar/ssrdiff/internal/config"
)

func captureConfig(cfg *config.Config) capture.Config {
	b := cfg.Browser
	return capture.Config{
		Backend:          b.Backend,
		Remote:           b.Remote,
		Headful:          b.Mode == "headful",
		ExecPath:         b.ExecPath,
		MemoryLimit:      b.MemoryLimit,
		RecycleInterval:  b.RecycleInterval,
		ResourceBlocking: b.ResourceBlocking,
		XvfbDisplay:      b.XvfbDisplay,
		Timeout:          b.Timeout,
		Settle:           b.Settle,
		FetchTimeout:     cfg.Fetch.Timeout,
		UserAgent:        cfg.Fetch.UserAgent,
		MaxBytes:         cfg.Fetch.MaxBytes,
		BlockPrivate:     cfg.Fetch.BlockPrivate,
	}
}

func defaultOptions(cfg *config.Config) compare.Options {
	c := cfg.Compare
	return compare.Options{
		Rewrite:   c.Rewrite,
		Highlight: c.Highlight,
		Sanitize:  c.Sanitize,
		Minify:    c.Minify,
	}
}

// stack is everything a comparison needs, built from configuration.
type stack struct {
	capturer *capture.Capturer
	store    *history.Store
	service  *compare.Service
}

func newStack(cfg *config.Config, logger *slog.Logger) (*stack, error) {
	st := &stack{capturer: capture.New(captureConfig(cfg), capture.WithLogger(logger))}

	opts := []compare.Option{
		compare.WithDefaults(defaultOptions(cfg)),
		compare.WithLogger(logger),
	}
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path,
			dbopen.WithBusyTimeout(int(cfg.History.BusyTimeout.Milliseconds())))
		if err != nil {
			st.capturer.Close()
			return nil, err
		}
		st.store = store
		opts = append(opts, compare.WithHistory(store))
	}
	st.service = compare.NewService(st.capturer, opts...)
	return st, nil
}

func (s *stack) Close() {
	s.capturer.Close()
	if s.store != nil {
		s.store.Close()
	}
}
