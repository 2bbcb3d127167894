// Package fetcher obtains the reference markup: a single credential-less
// HTTP GET of the page URL, exactly what the server delivers before any
// script runs.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/ssrdiff/snapshot"
)

// ErrTooLarge is returned when the body exceeds the configured cap. A
// truncated document is never returned.
var ErrTooLarge = errors.New("fetcher: body too large")

// Result is the outcome of a reference fetch.
type Result struct {
	Snapshot   snapshot.Snapshot
	StatusCode int
	ETag       string
	LastMod    string
	// Shell is true when the markup looks like a client-rendered shell
	// (empty mount point, almost no text): most of the page comes from
	// hydration and a large diff is expected.
	Shell bool
}

// Fetcher performs HTTP GETs and produces reference Snapshots.
type Fetcher struct {
	client       *http.Client
	ua           string
	maxBytes     int64
	blockPrivate bool
	logger       *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client. Its cookie jar, if any, is dropped so
// no credentials are ever sent.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		cp := *c
		cp.Jar = nil
		f.client = &cp
	}
}

// WithTimeout sets the overall request timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.Timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithMaxBytes caps the body read. Default: 10 MiB.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// WithPrivateBlocked refuses URLs, and redirects, that resolve to private
// or loopback addresses. Off by default: local dev servers are the common
// comparison target.
func WithPrivateBlocked() Option {
	return func(f *Fetcher) { f.blockPrivate = true }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		ua:       "Mozilla/5.0 (compatible; ssrdiff/1.0)",
		maxBytes: 10 << 20,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.blockPrivate {
		cp := *f.client
		cp.CheckRedirect = guardRedirect(cp.CheckRedirect)
		f.client = &cp
	}
	return f
}

// Fetch GETs pageURL. Any non-2xx status is an error labelled "HTTP <code>".
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	if f.blockPrivate {
		if err := CheckURL(pageURL); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, f.maxBytes)
	}

	res := &Result{
		Snapshot:   snapshot.New(snapshot.KindReference, pageURL, body),
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("ETag"),
		LastMod:    resp.Header.Get("Last-Modified"),
		Shell:      IsShell(body),
	}

	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "shell", res.Shell)

	return res, nil
}
