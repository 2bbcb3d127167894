// Package compare turns two acquired markups into the two display panels of
// a hydration audit: optional URL rewriting, optional structural highlight,
// display sanitizing, and a summary of what was flagged.
package compare

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/ssrdiff/kit"
	"github.com/hazyhaar/ssrdiff/rewrite"
	"github.com/hazyhaar/ssrdiff/structdiff"
)

// Panel titles.
const (
	ReferenceTitle = "SSR (Original)"
	RenderedTitle  = "Rendered (Live)"
)

// Input is what the pipeline consumes: both markups, or the label of the
// acquisition failure that replaced them.
type Input struct {
	URL          string
	Target       string
	Reference    string
	Rendered     string
	ReferenceErr string
	RenderedErr  string
	Options      Options
}

// Panel is one side of the comparison page. Exactly one of Markup and Error
// is meaningful: a panel that failed to acquire shows only its error.
type Panel struct {
	Title  string `json:"title"`
	Markup string `json:"markup,omitempty"`
	Error  string `json:"error,omitempty"`
	// Raw panels are shown as text instead of a rendered frame.
	Raw bool `json:"raw"`
}

// Failed reports whether the panel carries an acquisition error.
func (p Panel) Failed() bool { return p.Error != "" }

// Report is the pipeline output.
type Report struct {
	ID        string  `json:"id,omitempty"`
	URL       string  `json:"url"`
	Target    string  `json:"target,omitempty"`
	BaseURL   string  `json:"base_url"`
	Reference Panel   `json:"reference"`
	Rendered  Panel   `json:"rendered"`
	Added     int     `json:"added"`
	Missing   int     `json:"missing"`
	Compared  bool    `json:"compared"`
	Shell     bool    `json:"shell"`
	Options   Options `json:"options"`
	// Hashes of the acquired markup, before any display transformation.
	ReferenceHash string    `json:"reference_hash,omitempty"`
	RenderedHash  string    `json:"rendered_hash,omitempty"`
	Duration      int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Pipeline applies the display transformations. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	logger *slog.Logger
}

// NewPipeline creates a Pipeline. A nil logger uses slog.Default.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger}
}

// Run builds the report panels. The core transformations are never invoked
// for a panel whose acquisition failed, and the diff only runs when both
// panels are present and non-empty.
func (p *Pipeline) Run(ctx context.Context, in Input) *Report {
	opts := in.Options
	rep := &Report{
		URL:       in.URL,
		Target:    in.Target,
		BaseURL:   rewrite.BaseURL(in.URL),
		Reference: Panel{Title: ReferenceTitle, Error: in.ReferenceErr, Raw: opts.Raw},
		Rendered:  Panel{Title: RenderedTitle, Error: in.RenderedErr, Raw: opts.Raw},
		Options:   opts,
		CreatedAt: time.Now().UTC(),
	}
	ref, ren := in.Reference, in.Rendered
	refOK, renOK := in.ReferenceErr == "", in.RenderedErr == ""

	switch {
	case opts.Raw:
		if opts.Minify {
			ref, ren = Minify(ref), Minify(ren)
		}

	default:
		if opts.Rewrite && rep.BaseURL != "" {
			if refOK {
				ref = rewrite.NormalizeOrOriginal(ref, rep.BaseURL)
			}
			if renOK {
				ren = rewrite.NormalizeOrOriginal(ren, rep.BaseURL)
			}
		}

		if opts.Highlight && refOK && renOK && ref != "" && ren != "" {
			res := structdiff.DiffOrOriginal(ren, ref)
			rep.Added, rep.Missing, rep.Compared = res.Added, res.Missing, res.Compared
			ren = structdiff.InjectMarkerStyle(res.Rendered, structdiff.Added)
			ref = structdiff.InjectMarkerStyle(res.Reference, structdiff.Missing)
		}

		if opts.Sanitize {
			if refOK {
				ref = Sanitize(ref)
			}
			if renOK {
				ren = Sanitize(ren)
			}
		}
	}

	if refOK {
		rep.Reference.Markup = ref
	}
	if renOK {
		rep.Rendered.Markup = ren
	}

	p.logger.Debug("compare: panels built",
		"url", in.URL, "request_id", kit.GetRequestID(ctx), "trace_id", kit.GetTraceID(ctx),
		"raw", opts.Raw, "rewrite", opts.Rewrite, "highlight", opts.Highlight,
		"added", rep.Added, "missing", rep.Missing, "compared", rep.Compared)
	return rep
}
