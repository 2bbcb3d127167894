// Package devtools is the chromedp extraction backend. It drives Chrome over
// the DevTools protocol directly, without Rod, and serves the same
// REQUEST_RENDERED_DOM exchange as the Rod backend.
package devtools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/hazyhaar/ssrdiff/capture/exchange"
)

// Config configures the chromedp backend.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = allocate a local Chrome.
	RemoteURL string
	ExecPath  string
	Headful   bool

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	Timeout time.Duration
	Settle  time.Duration
	Logger  *slog.Logger
}

// Backend owns one chromedp allocator and browser context.
type Backend struct {
	cfg Config

	mu          sync.Mutex
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	closed      bool
}

// New creates a Backend. Chrome starts on Start or on first use.
func New(cfg Config) *Backend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Backend{cfg: cfg}
}

// Start allocates Chrome and opens the browser context.
func (b *Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.startLocked(ctx)
	return err
}

func (b *Backend) startLocked(ctx context.Context) (context.Context, error) {
	if b.closed {
		return nil, fmt.Errorf("devtools: backend is closed")
	}
	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	base := context.WithoutCancel(ctx)
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if b.cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, b.cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", !b.cfg.Headful),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("ignore-certificate-errors", true),
		)
		if b.cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, opts...)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			b.cfg.Logger.Debug("devtools: " + fmt.Sprintf(format, args...))
		}),
	)
	// The first Run on a browser context launches or connects.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("devtools: start: %w", err)
	}

	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.cancel = cancel
	b.cfg.Logger.Info("devtools: browser ready", "remote", b.cfg.RemoteURL != "")
	return browserCtx, nil
}

// Close shuts the browser context and allocator down.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	return nil
}

// Extract performs one REQUEST_RENDERED_DOM round trip.
func (b *Backend) Extract(ctx context.Context, req exchange.Request) exchange.Response {
	if msg := req.Validate(); msg != "" {
		return exchange.Failure(msg)
	}

	resp := exchange.Run(ctx, b.cfg.Timeout, func(ctx context.Context) (string, error) {
		b.mu.Lock()
		browserCtx, err := b.startLocked(ctx)
		b.mu.Unlock()
		if err != nil {
			return "", err
		}

		attach, open := req.Destination()
		var opts []chromedp.ContextOption
		if attach != "" {
			opts = append(opts, chromedp.WithTargetID(target.ID(attach)))
		}
		tabCtx, cancel := chromedp.NewContext(browserCtx, opts...)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		var actions []chromedp.Action
		if attach == "" {
			if len(b.cfg.ResourceBlocking) > 0 {
				blockResources(tabCtx, b.cfg.ResourceBlocking, b.cfg.Logger)
				actions = append(actions, fetch.Enable())
			}
			actions = append(actions,
				chromedp.Navigate(open),
				chromedp.WaitReady("body", chromedp.ByQuery),
			)
		}
		if b.cfg.Settle > 0 {
			actions = append(actions, chromedp.Sleep(b.cfg.Settle))
		}
		var dom string
		actions = append(actions, chromedp.Evaluate(`document.documentElement.outerHTML`, &dom))

		if err := chromedp.Run(tabCtx, actions...); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("devtools: extract: %w", err)
		}
		return dom, nil
	})

	if resp.Error != "" {
		b.cfg.Logger.Warn("devtools: extraction failed",
			"target", req.Target, "url", req.URL, "error", resp.Error)
	}
	return resp
}

// blockResources fails paused requests of the listed types and continues
// the rest. fetch.Enable must run on the same tab for events to arrive.
func blockResources(tabCtx context.Context, types []string, log *slog.Logger) {
	block := blockSet(types)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(tabCtx)
			if c == nil || c.Target == nil {
				return
			}
			exec := cdp.WithExecutor(tabCtx, c.Target)
			var err error
			if block[e.ResourceType] {
				err = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(exec)
			} else {
				err = fetch.ContinueRequest(e.RequestID).Do(exec)
			}
			if err != nil {
				log.Debug("devtools: request interception", "request", e.RequestID, "error", err)
			}
		}()
	})
}

func blockSet(types []string) map[network.ResourceType]bool {
	names := map[string]network.ResourceType{
		"images":      network.ResourceTypeImage,
		"fonts":       network.ResourceTypeFont,
		"media":       network.ResourceTypeMedia,
		"stylesheets": network.ResourceTypeStylesheet,
	}
	out := make(map[network.ResourceType]bool, len(types))
	for _, t := range types {
		if rt, ok := names[strings.ToLower(t)]; ok {
			out[rt] = true
		}
	}
	return out
}
