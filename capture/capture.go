// Package capture acquires the two markups a comparison needs: the reference
// document as delivered by the server (plain HTTP GET, no credentials) and the
// rendered document serialised by a live browser after scripts have run.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/ssrdiff/capture/exchange"
	"github.com/hazyhaar/ssrdiff/capture/internal/browser"
	"github.com/hazyhaar/ssrdiff/capture/internal/devtools"
	"github.com/hazyhaar/ssrdiff/capture/internal/fetcher"
	"github.com/hazyhaar/ssrdiff/snapshot"
)

// Extractor serves REQUEST_RENDERED_DOM exchanges. Extract must always
// return exactly one Response and honour ctx.
type Extractor interface {
	Extract(ctx context.Context, req exchange.Request) exchange.Response
	Close() error
}

// Starter is implemented by extractors that can launch their browser ahead
// of the first request.
type Starter interface {
	Start(ctx context.Context) error
}

// Backends.
const (
	BackendRod      = "rod"
	BackendChromedp = "chromedp"
)

// Config configures both acquisition paths.
type Config struct {
	Backend          string
	Remote           string
	Headful          bool
	ExecPath         string
	MemoryLimit      int64
	RecycleInterval  time.Duration
	ResourceBlocking []string
	XvfbDisplay      string
	Timeout          time.Duration
	Settle           time.Duration

	FetchTimeout time.Duration
	UserAgent    string
	MaxBytes     int64
	BlockPrivate bool
}

// Page is a fetched reference document.
type Page struct {
	Snapshot snapshot.Snapshot
	Status   int
	// Shell flags a client-rendered shell: most of the page will come from
	// hydration and a large diff is expected.
	Shell bool
}

// Acquired holds both sides of one acquisition. A side that failed carries
// its error label and an empty snapshot.
type Acquired struct {
	URL          string
	Target       string
	Reference    snapshot.Snapshot
	Rendered     snapshot.Snapshot
	ReferenceErr string
	RenderedErr  string
	Shell        bool
	Duration     time.Duration
}

// Capturer binds a reference fetcher and a rendered-DOM extractor.
type Capturer struct {
	cfg     Config
	logger  *slog.Logger
	fetcher *fetcher.Fetcher
	client  *http.Client

	mu        sync.Mutex
	extractor Extractor
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithExtractor replaces the browser backend.
func WithExtractor(e Extractor) Option {
	return func(c *Capturer) { c.extractor = e }
}

// WithHTTPClient sets the client used for reference fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Capturer) { c.client = hc }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capturer) { c.logger = l }
}

// New creates a Capturer. The browser backend is created lazily unless one
// is supplied with WithExtractor.
func New(cfg Config, opts ...Option) *Capturer {
	c := &Capturer{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}

	fopts := []fetcher.Option{fetcher.WithLogger(c.logger)}
	if c.client != nil {
		fopts = append(fopts, fetcher.WithClient(c.client))
	}
	if cfg.FetchTimeout > 0 {
		fopts = append(fopts, fetcher.WithTimeout(cfg.FetchTimeout))
	}
	if cfg.UserAgent != "" {
		fopts = append(fopts, fetcher.WithUserAgent(cfg.UserAgent))
	}
	if cfg.MaxBytes > 0 {
		fopts = append(fopts, fetcher.WithMaxBytes(cfg.MaxBytes))
	}
	if cfg.BlockPrivate {
		fopts = append(fopts, fetcher.WithPrivateBlocked())
	}
	c.fetcher = fetcher.New(fopts...)
	return c
}

// Start launches the browser now instead of on the first extraction.
func (c *Capturer) Start(ctx context.Context) error {
	if s, ok := c.backend().(Starter); ok {
		return s.Start(ctx)
	}
	return nil
}

// Close releases the browser backend.
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.extractor == nil {
		return nil
	}
	err := c.extractor.Close()
	c.extractor = nil
	return err
}

func (c *Capturer) backend() Extractor {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.extractor != nil {
		return c.extractor
	}
	switch c.cfg.Backend {
	case BackendChromedp:
		c.extractor = devtools.New(devtools.Config{
			RemoteURL:        c.cfg.Remote,
			ExecPath:         c.cfg.ExecPath,
			Headful:          c.cfg.Headful,
			ResourceBlocking: c.cfg.ResourceBlocking,
			Timeout:          c.cfg.Timeout,
			Settle:           c.cfg.Settle,
			Logger:           c.logger,
		})
	default:
		mode := browser.ModeHeadless
		if c.cfg.Headful {
			mode = browser.ModeHeadful
		}
		c.extractor = browser.NewManager(browser.Config{
			RemoteURL:        c.cfg.Remote,
			ExecPath:         c.cfg.ExecPath,
			Mode:             mode,
			MemoryLimit:      c.cfg.MemoryLimit,
			RecycleInterval:  c.cfg.RecycleInterval,
			ResourceBlocking: c.cfg.ResourceBlocking,
			XvfbDisplay:      c.cfg.XvfbDisplay,
			Timeout:          c.cfg.Timeout,
			Settle:           c.cfg.Settle,
			Logger:           c.logger,
		})
	}
	return c.extractor
}

// Reference fetches the server-delivered markup of pageURL.
func (c *Capturer) Reference(ctx context.Context, pageURL string) (*Page, error) {
	res, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return &Page{Snapshot: res.Snapshot, Status: res.StatusCode, Shell: res.Shell}, nil
}

// Rendered obtains the live serialised DOM through one exchange. The error,
// if any, is the Response's error label.
func (c *Capturer) Rendered(ctx context.Context, pageURL, target string) (snapshot.Snapshot, error) {
	resp := c.backend().Extract(ctx, exchange.NewRequest(target, pageURL))
	if !resp.OK() {
		msg := resp.Error
		if msg == "" {
			msg = exchange.ErrNoResponse
		}
		return snapshot.Snapshot{}, errors.New(msg)
	}
	return snapshot.New(snapshot.KindRendered, pageURL, []byte(resp.DOM)), nil
}

// Both acquires reference and rendered markup concurrently. A failure on one
// side never cancels the other; each is recorded in Acquired.
func (c *Capturer) Both(ctx context.Context, pageURL, target string) *Acquired {
	start := time.Now()
	out := &Acquired{URL: pageURL, Target: target}

	var g errgroup.Group
	g.Go(func() error {
		if pageURL == "" {
			out.ReferenceErr = "No URL provided"
			return nil
		}
		page, err := c.Reference(ctx, pageURL)
		if err != nil {
			out.ReferenceErr = err.Error()
			return nil
		}
		out.Reference, out.Shell = page.Snapshot, page.Shell
		return nil
	})
	g.Go(func() error {
		snap, err := c.Rendered(ctx, pageURL, target)
		if err != nil {
			out.RenderedErr = err.Error()
			return nil
		}
		out.Rendered = snap
		return nil
	})
	g.Wait() // sides record their own failures
	out.Duration = time.Since(start)

	c.logger.Info("capture: acquired",
		"url", pageURL, "target", target,
		"reference_size", len(out.Reference.HTML), "rendered_size", len(out.Rendered.HTML),
		"reference_error", out.ReferenceErr, "rendered_error", out.RenderedErr,
		"shell", out.Shell, "duration", out.Duration)
	return out
}

// String summarises an acquisition for logs and CLI output.
func (a *Acquired) String() string {
	return fmt.Sprintf("%s reference=%dB rendered=%dB", a.URL, len(a.Reference.HTML), len(a.Rendered.HTML))
}
