package browser

import (
	"context"
	"fmt"

	"github.com/hazyhaar/ssrdiff/capture/exchange"
)

// Extract performs one REQUEST_RENDERED_DOM round trip: it attaches to the
// tab the request names, or opens its URL in a fresh tab, and returns the
// serialised document element. The exchange always terminates, with the DOM
// or with a labelled error, within the configured timeout.
func (m *Manager) Extract(ctx context.Context, req exchange.Request) exchange.Response {
	if msg := req.Validate(); msg != "" {
		return exchange.Failure(msg)
	}
	log := m.cfg.Logger.With("target", req.Target, "url", req.URL)

	resp := exchange.Run(ctx, m.cfg.Timeout, func(ctx context.Context) (string, error) {
		b, err := m.acquire(ctx)
		if err != nil {
			return "", err
		}
		defer m.release()

		var tab *Tab
		if attach, open := req.Destination(); attach != "" {
			tab, err = AttachTab(ctx, b, attach)
		} else {
			tab, err = OpenTab(ctx, b, m.cfg, open)
		}
		if err != nil {
			return "", err
		}
		defer tab.Close()

		if err := tab.Settle(ctx, m.cfg.Settle); err != nil {
			return "", err
		}
		dom, err := tab.GetFullDOM(ctx)
		if err != nil {
			return "", fmt.Errorf("browser: serialise %s: %w", tab.PageURL, err)
		}
		return string(dom), nil
	})

	if resp.Error != "" {
		log.Warn("browser: extraction failed", "error", resp.Error)
	} else {
		log.Debug("browser: extracted", "size", len(resp.DOM))
	}
	return resp
}
