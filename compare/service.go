package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hazyhaar/ssrdiff/capture"
	"github.com/hazyhaar/ssrdiff/history"
	"github.com/hazyhaar/ssrdiff/idgen"
	"github.com/hazyhaar/ssrdiff/kit"
	"github.com/hazyhaar/ssrdiff/rewrite"
	"github.com/hazyhaar/ssrdiff/snapshot"
	"github.com/hazyhaar/ssrdiff/structdiff"
)

// ErrInvalid wraps request validation failures.
var ErrInvalid = errors.New("compare: invalid request")

// Acquirer obtains both markups of a page. *capture.Capturer implements it.
type Acquirer interface {
	Both(ctx context.Context, pageURL, target string) *capture.Acquired
}

// Recorder persists comparison summaries. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	ForPage(ctx context.Context, pageURL string, limit int) ([]history.Entry, error)
}

// CompareRequest asks for a full comparison of one page.
type CompareRequest struct {
	URL    string `json:"url" validate:"required,http_url"`
	Target string `json:"target,omitempty" validate:"omitempty,max=256"`
	// Options defaults to the service defaults when nil.
	Options *Options `json:"options,omitempty"`
}

// NormalizeRequest rewrites relative references of Markup against Base, or
// against the base derived from PageURL when Base is empty. With neither the
// markup is returned unchanged.
type NormalizeRequest struct {
	Markup  string `json:"markup" validate:"required"`
	Base    string `json:"base,omitempty" validate:"omitempty,url"`
	PageURL string `json:"page_url,omitempty" validate:"omitempty,url"`
}

// NormalizeResponse carries the rewritten markup.
type NormalizeResponse struct {
	Markup string `json:"markup"`
	Base   string `json:"base"`
}

// DiffRequest compares two markups directly.
type DiffRequest struct {
	Rendered  string `json:"rendered" validate:"required"`
	Reference string `json:"reference" validate:"required"`
	// Style injects the marker style into each annotated head.
	Style bool `json:"style,omitempty"`
}

// Service is the comparison entry point shared by the HTTP, MCP and CLI
// surfaces.
type Service struct {
	acq      Acquirer
	pipeline *Pipeline
	history  Recorder
	defaults Options
	validate *validator.Validate
	newID    idgen.Generator
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHistory records a summary of every comparison.
func WithHistory(r Recorder) Option {
	return func(s *Service) { s.history = r }
}

// WithDefaults sets the options used when a request carries none.
func WithDefaults(o Options) Option {
	return func(s *Service) { s.defaults = o }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithIDGenerator sets the report ID generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Service) { s.newID = g }
}

// NewService creates a Service around an Acquirer.
func NewService(acq Acquirer, opts ...Option) *Service {
	s := &Service{
		acq:      acq,
		defaults: DefaultOptions(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		newID:    idgen.Prefixed("cmp_", idgen.Default),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.pipeline = NewPipeline(s.logger)
	return s
}

// Defaults returns the options applied to requests that carry none.
func (s *Service) Defaults() Options { return s.defaults }

// Compare acquires both markups of req.URL, builds the panels and records a
// summary. Acquisition failures are reported inside the panels, not as an
// error; only an invalid request fails.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (*Report, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	opts := s.defaults
	if req.Options != nil {
		opts = *req.Options
	}

	id := s.newID()
	ctx = kit.WithRequestID(ctx, id)

	acq := s.acq.Both(ctx, req.URL, req.Target)
	rep := s.pipeline.Run(ctx, Input{
		URL:          req.URL,
		Target:       req.Target,
		Reference:    acq.Reference.String(),
		Rendered:     acq.Rendered.String(),
		ReferenceErr: acq.ReferenceErr,
		RenderedErr:  acq.RenderedErr,
		Options:      opts,
	})
	rep.ID = id
	rep.Shell = acq.Shell
	rep.Duration = acq.Duration.Milliseconds()
	rep.ReferenceHash = acq.Reference.HTMLHash
	rep.RenderedHash = acq.Rendered.HTMLHash

	s.record(ctx, rep)
	return rep, nil
}

// Run builds panels from markups the caller already holds.
func (s *Service) Run(ctx context.Context, in Input) *Report {
	rep := s.pipeline.Run(ctx, in)
	rep.ID = s.newID()
	if in.ReferenceErr == "" {
		rep.ReferenceHash = snapshot.HashHTML([]byte(in.Reference))
	}
	if in.RenderedErr == "" {
		rep.RenderedHash = snapshot.HashHTML([]byte(in.Rendered))
	}
	return rep
}

// Normalize rewrites relative resource references.
func (s *Service) Normalize(_ context.Context, req NormalizeRequest) (*NormalizeResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	base := req.Base
	if base == "" {
		base = rewrite.BaseURL(req.PageURL)
	}
	out, err := rewrite.Normalize(req.Markup, base)
	if err != nil {
		return nil, err
	}
	return &NormalizeResponse{Markup: out, Base: base}, nil
}

// Diff annotates two markups.
func (s *Service) Diff(_ context.Context, req DiffRequest) (*structdiff.Result, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	res, err := structdiff.Diff(req.Rendered, req.Reference)
	if err != nil {
		return nil, err
	}
	if req.Style && res.Compared {
		res.Rendered = structdiff.InjectMarkerStyle(res.Rendered, structdiff.Added)
		res.Reference = structdiff.InjectMarkerStyle(res.Reference, structdiff.Missing)
	}
	return &res, nil
}

// History returns recent comparison summaries. Without a store it returns
// an empty list.
func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	return s.PageHistory(ctx, "", limit)
}

// PageHistory returns the comparisons of pageURL, newest first. An empty
// pageURL lists every page.
func (s *Service) PageHistory(ctx context.Context, pageURL string, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return []history.Entry{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	var (
		entries []history.Entry
		err     error
	)
	if pageURL == "" {
		entries, err = s.history.Recent(ctx, limit)
	} else {
		entries, err = s.history.ForPage(ctx, pageURL, limit)
	}
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return entries, nil
}

func (s *Service) record(ctx context.Context, rep *Report) {
	if s.history == nil {
		return
	}
	e := &history.Entry{
		ID:             rep.ID,
		PageURL:        rep.URL,
		Target:         rep.Target,
		BaseURL:        rep.BaseURL,
		Added:          rep.Added,
		Missing:        rep.Missing,
		Compared:       rep.Compared,
		Shell:          rep.Shell,
		ReferenceError: rep.Reference.Error,
		RenderedError:  rep.Rendered.Error,
		ReferenceHash:  rep.ReferenceHash,
		RenderedHash:   rep.RenderedHash,
		DurationMS:     rep.Duration,
		CreatedAt:      rep.CreatedAt.UnixMilli(),
	}
	if err := s.history.Record(ctx, e); err != nil {
		s.logger.Warn("compare: record history", "id", rep.ID, "error", err)
	}
}

func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
