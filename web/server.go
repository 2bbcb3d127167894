// Package web serves the comparison UI and its JSON API over chi.
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/ssrdiff/compare"
	"github.com/hazyhaar/ssrdiff/kit"
	"github.com/hazyhaar/ssrdiff/shield"
)

// Server holds the HTTP surface of a compare.Service.
type Server struct {
	svc          *compare.Service
	mcp          http.Handler
	maxBody      int64
	historyLimit int
	logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMCPHandler mounts h (an MCP streamable HTTP handler) on /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithMaxBody caps JSON request bodies. Default: 16 MiB.
func WithMaxBody(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// WithHistoryLimit sets how many comparisons the index page lists.
func WithHistoryLimit(n int) Option {
	return func(s *Server) { s.historyLimit = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(svc *compare.Service, opts ...Option) *Server {
	s := &Server{
		svc:          svc,
		maxBody:      16 << 20,
		historyLimit: 20,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultStack(s.maxBody) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", s.handleIndex)
	r.Get("/compare", s.handleCompare)

	r.Route("/api", func(r chi.Router) {
		r.Post("/compare", s.handleAPICompare)
		r.Post("/normalize", s.handleAPINormalize)
		r.Post("/diff", s.handleAPIDiff)
		r.Get("/history", s.handleAPIHistory)
	})

	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
		r.Handle("/mcp/*", s.mcp)
	}
	return r
}

type formView struct {
	URL     string
	Target  string
	Options compare.Options
}

type historyRow struct {
	When    string
	PageURL string
	Link    string
	Added   int
	Missing int
	Errors  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := struct {
		formView
		History []historyRow
	}{formView: formView{Options: s.svc.Defaults()}}

	entries, err := s.svc.History(r.Context(), s.historyLimit)
	if err != nil {
		shield.GetLogger(r.Context()).Warn("web: history", "error", err)
	}
	for _, e := range entries {
		var errs []string
		if e.ReferenceError != "" {
			errs = append(errs, "reference: "+e.ReferenceError)
		}
		if e.RenderedError != "" {
			errs = append(errs, "rendered: "+e.RenderedError)
		}
		view.History = append(view.History, historyRow{
			When:    time.UnixMilli(e.CreatedAt).UTC().Format(time.DateTime),
			PageURL: e.PageURL,
			Link:    "/compare?" + url.Values{"url": {e.PageURL}, "highlight": {"1"}}.Encode(),
			Added:   e.Added,
			Missing: e.Missing,
			Errors:  strings.Join(errs, "; "),
		})
	}

	render(w, r, indexTmpl, http.StatusOK, view)
}

// handleCompare renders the two-panel page. Without a url it shows the form.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	form := formView{
		URL:     strings.TrimSpace(q.Get("url")),
		Target:  strings.TrimSpace(q.Get("target")),
		Options: queryOptions(q, s.svc.Defaults()),
	}
	if form.URL == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	ctx := kit.WithTransport(r.Context(), "http")
	rep, err := s.svc.Compare(ctx, compare.CompareRequest{URL: form.URL, Target: form.Target, Options: &form.Options})
	if err != nil {
		rep = &compare.Report{
			URL:       form.URL,
			Reference: compare.Panel{Title: compare.ReferenceTitle, Error: err.Error()},
			Rendered:  compare.Panel{Title: compare.RenderedTitle, Error: err.Error()},
		}
	}

	view := struct {
		formView
		Report *compare.Report
		Panels []compare.Panel
	}{formView: form, Report: rep, Panels: []compare.Panel{rep.Reference, rep.Rendered}}

	status := http.StatusOK
	if errors.Is(err, compare.ErrInvalid) {
		status = http.StatusBadRequest
	}
	render(w, r, compareTmpl, status, view)
}

// queryOptions reads the display toggles. When the form marker "opts" is
// present an absent checkbox means false; otherwise absent toggles keep
// their defaults.
func queryOptions(q url.Values, def compare.Options) compare.Options {
	explicit := q.Has("opts")
	get := func(key string, d bool) bool {
		if !q.Has(key) {
			if explicit {
				return false
			}
			return d
		}
		return truthy(q.Get(key))
	}
	return compare.Options{
		Raw:       get("raw", def.Raw),
		Rewrite:   get("rewrite", def.Rewrite),
		Highlight: get("highlight", def.Highlight),
		Sanitize:  get("sanitize", def.Sanitize),
		Minify:    get("minify", def.Minify),
	}
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "", "on", "yes":
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (s *Server) handleAPICompare(w http.ResponseWriter, r *http.Request) {
	var req compare.CompareRequest
	if !decode(w, r, &req) {
		return
	}
	rep, err := s.svc.Compare(kit.WithTransport(r.Context(), "http"), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleAPINormalize(w http.ResponseWriter, r *http.Request) {
	var req compare.NormalizeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.svc.Normalize(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAPIDiff(w http.ResponseWriter, r *http.Request) {
	var req compare.DiffRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.svc.Diff(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	entries, err := s.svc.PageHistory(r.Context(), r.URL.Query().Get("url"), limit)
	if err != nil {
		shield.GetLogger(r.Context()).Error("web: history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func statusFor(err error) int {
	if errors.Is(err, compare.ErrInvalid) {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func render(w http.ResponseWriter, r *http.Request, t *template.Template, code int, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		shield.GetLogger(r.Context()).Error("web: render", "template", t.Name(), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	buf.WriteTo(w)
}
