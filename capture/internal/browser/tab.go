package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page opened or attached for one extraction.
type Tab struct {
	Page    *rod.Page
	PageURL string
	// owned tabs were opened by us and are closed with the Tab; attached
	// tabs belong to the user and are left open.
	owned  bool
	router *rod.HijackRouter
}

// OpenTab creates a new stealth tab, applies resource blocking and navigates
// to pageURL, waiting for the load event.
func OpenTab(ctx context.Context, b *rod.Browser, cfg Config, pageURL string) (*Tab, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t := &Tab{
		Page:    page,
		PageURL: pageURL,
		owned:   true,
		router:  applyResourceBlocking(page, cfg.ResourceBlocking),
	}

	if err := page.Context(ctx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		cfg.Logger.Warn("browser: wait load", "url", pageURL, "error", err)
	}
	return t, nil
}

// AttachTab binds to an already open tab by its CDP target ID. The page is
// serialised as it currently is; no navigation happens.
func AttachTab(ctx context.Context, b *rod.Browser, targetID string) (*Tab, error) {
	page, err := b.Context(ctx).PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("browser: attach %s: %w", targetID, err)
	}
	t := &Tab{Page: page}
	if info, err := page.Info(); err == nil {
		t.PageURL = info.URL
	}
	return t, nil
}

// Settle waits d, or until ctx is done.
func (t *Tab) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetFullDOM serialises the complete live DOM as outer HTML.
func (t *Tab) GetFullDOM(ctx context.Context) ([]byte, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Close releases the tab. Attached tabs are only detached from.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
		t.router = nil
	}
	if t.owned && t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
