package shield

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/ssrdiff/kit"
)

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultHeaders())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-src 'self'") || !strings.Contains(csp, "script-src 'self'") {
		t.Errorf("CSP: %q", csp)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options: %q", rec.Header().Get("X-Frame-Options"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff missing")
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet("/compare")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { method = r.Method }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("HEAD", "/", nil))
	if method != "GET" {
		t.Fatalf("method: got %q", method)
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("HEAD", "/compare?url=http://x.test/", nil))
	if method != "HEAD" {
		t.Fatalf("acquire path: got %q", method)
	}
}

func TestMaxBody(t *testing.T) {
	var readErr error
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"markup":"0123456789"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if readErr == nil {
		t.Fatal("expected body limit error for JSON")
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader("0123456789abcdef"))
	req.Header.Set("Content-Type", "text/plain")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if readErr != nil {
		t.Fatalf("text/plain should pass through: %v", readErr)
	}
}

func TestTraceID(t *testing.T) {
	var traceID string
	var hasLogger bool
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = kit.GetTraceID(r.Context())
		_, hasLogger = r.Context().Value(LoggerKey).(*slog.Logger)
	}), TraceID)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if len(traceID) != 8 {
		t.Fatalf("trace id: %q", traceID)
	}
	if rec.Header().Get("X-Trace-ID") != traceID {
		t.Errorf("header: %q", rec.Header().Get("X-Trace-ID"))
	}
	if !hasLogger {
		t.Error("no logger in context")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-ID", "upstream-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if traceID != "upstream-1" {
		t.Errorf("incoming trace id not reused: %q", traceID)
	}
}

func TestDefaultStack(t *testing.T) {
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}), DefaultStack(1024)...)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("HEAD", "/healthz", nil))
	if rec.Code != 200 || rec.Header().Get("X-Trace-ID") == "" || rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("code=%d headers=%v", rec.Code, rec.Header())
	}
}
