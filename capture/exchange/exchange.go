// Package exchange defines the request/response contract used to obtain a
// live document's serialised markup from a browser context, and Run, which
// turns a blocking extraction into exactly one terminal Response.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RequestRenderedDOM is the only request type.
const RequestRenderedDOM = "REQUEST_RENDERED_DOM"

// Labelled failures carried in Response.Error.
const (
	ErrNoTarget   = "No target provided"
	ErrNoResponse = "No response from content script"
	ErrTimeout    = "timed out waiting for rendered DOM"
	ErrCancelled  = "extraction cancelled"
)

// Request asks for the rendered markup of one browser context. Target names
// an existing context (a CDP target ID); URL opens a fresh one. At least one
// must be set.
type Request struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
	URL    string `json:"url,omitempty"`
}

// NewRequest builds a REQUEST_RENDERED_DOM request.
func NewRequest(target, url string) Request {
	return Request{Type: RequestRenderedDOM, Target: target, URL: url}
}

// Validate returns the labelled error for an unusable request, or "".
func (r Request) Validate() string {
	if r.Type != "" && r.Type != RequestRenderedDOM {
		return fmt.Sprintf("unsupported request type %q", r.Type)
	}
	if r.Target == "" && r.URL == "" {
		return ErrNoTarget
	}
	return ""
}

// Destination splits the request into a tab to attach to or a URL to open.
// A Target containing "://" is a page URL, used when URL is empty; any other
// Target is a CDP target ID and wins over URL.
func (r Request) Destination() (attach, open string) {
	switch {
	case r.Target != "" && !strings.Contains(r.Target, "://"):
		return r.Target, ""
	case r.URL != "":
		return "", r.URL
	}
	return "", r.Target
}

// Response carries either the extracted markup or an error string.
type Response struct {
	DOM   string `json:"dom,omitempty"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the response carries markup.
func (r Response) OK() bool { return r.Error == "" && r.DOM != "" }

// Failure builds the Response for a labelled error.
func Failure(label string) Response {
	return Response{Error: label}
}

// ExtractFunc performs one extraction. It must honour ctx cancellation.
type ExtractFunc func(ctx context.Context) (string, error)

// Run performs a single round trip: fn is called once with a context bounded
// by timeout (0 means no extra bound) and its outcome is mapped to one
// Response. An empty DOM is reported as ErrNoResponse. If fn ignores
// cancellation, Run still returns when the deadline passes; the late result
// is discarded.
func Run(ctx context.Context, timeout time.Duration, fn ExtractFunc) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		dom string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		dom, err := fn(ctx)
		done <- outcome{dom, err}
	}()

	select {
	case o := <-done:
		switch {
		case o.err != nil && ctx.Err() != nil:
			return ctxFailure(ctx)
		case o.err != nil:
			return Failure(o.err.Error())
		case o.dom == "":
			return Failure(ErrNoResponse)
		}
		return Response{DOM: o.dom}
	case <-ctx.Done():
		return ctxFailure(ctx)
	}
}

func ctxFailure(ctx context.Context) Response {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Failure(ErrTimeout)
	}
	return Failure(ErrCancelled)
}
