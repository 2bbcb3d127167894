package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/ssrdiff/capture"
	"github.com/hazyhaar/ssrdiff/compare"
	"github.com/hazyhaar/ssrdiff/dbopen"
	"github.com/hazyhaar/ssrdiff/history"
	"github.com/hazyhaar/ssrdiff/snapshot"
)

const (
	pageURL   = "https://example.com/a/b/page.html"
	reference = `<html><head><title>t</title></head><body><div><img src="c.png"></div></body></html>`
	rendered  = `<html><head><title>t</title></head><body><div><img src="c.png"><p>new</p></div></body></html>`
)

type fakeAcquirer struct {
	renderedErr string
}

func (f *fakeAcquirer) Both(_ context.Context, u, target string) *capture.Acquired {
	a := &capture.Acquired{
		URL:       u,
		Target:    target,
		Reference: snapshot.New(snapshot.KindReference, u, []byte(reference)),
	}
	if f.renderedErr != "" {
		a.RenderedErr = f.renderedErr
	} else {
		a.Rendered = snapshot.New(snapshot.KindRendered, u, []byte(rendered))
	}
	return a
}

func newServer(t *testing.T, acq compare.Acquirer, opts ...Option) *httptest.Server {
	t.Helper()
	store := history.New(dbopen.OpenMemory(t, dbopen.WithSchema(history.Schema)))
	svc := compare.NewService(acq, compare.WithHistory(store))
	srv := httptest.NewServer(New(svc, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, u string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", u, err)
	}
	return resp, string(body)
}

func postJSON(t *testing.T, u string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(u, "application/json", strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("POST %s: %v", u, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{})
	resp, body := get(t, srv.URL+"/healthz")
	if resp.StatusCode != 200 || !strings.Contains(body, `"ok"`) {
		t.Fatalf("healthz: %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Trace-ID") == "" {
		t.Error("trace header missing")
	}
}

func TestIndex(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{})
	resp, body := get(t, srv.URL+"/")
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if !strings.Contains(body, `action="/compare"`) {
		t.Error("form missing")
	}
	if !strings.Contains(body, `name="rewrite" value="1" checked`) {
		t.Error("rewrite should default to checked")
	}
}

func TestComparePage(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{})
	q := url.Values{"url": {pageURL}, "opts": {"1"}, "rewrite": {"1"}, "highlight": {"1"}}
	resp, body := get(t, srv.URL+"/compare?"+q.Encode())
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	for _, want := range []string{
		"SSR (Original)",
		"Rendered (Live)",
		`sandbox="allow-same-origin"`,
		"srcdoc=",
		"diff-added",
		"https://example.com/a/b/c.png",
		"1 added, 0 missing",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	// srcdoc content is attribute-escaped.
	if strings.Contains(body, `srcdoc="<html>`) {
		t.Error("srcdoc markup not escaped")
	}

	_, index := get(t, srv.URL+"/")
	if !strings.Contains(index, pageURL) {
		t.Error("comparison not listed in history")
	}
}

func TestComparePage_RawAndError(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{renderedErr: "timed out waiting for rendered DOM"})
	q := url.Values{"url": {pageURL}, "raw": {"1"}}
	_, body := get(t, srv.URL+"/compare?"+q.Encode())

	if !strings.Contains(body, "<pre>&lt;html&gt;") {
		t.Error("raw reference panel should be escaped text")
	}
	if !strings.Contains(body, "Error: timed out waiting for rendered DOM") {
		t.Error("rendered error missing")
	}
}

func TestComparePage_NoURLRedirects(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{})
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(srv.URL + "/compare")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestComparePage_InvalidURL(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{})
	resp, body := get(t, srv.URL+"/compare?url=javascript:alert(1)")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Error: compare: invalid request") {
		t.Error("validation error not shown")
	}
}

func TestAPICompare(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{})
	resp, out := postJSON(t, srv.URL+"/api/compare", map[string]any{
		"url":     pageURL,
		"options": map[string]any{"highlight": true},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d %v", resp.StatusCode, out)
	}
	if out["added"].(float64) != 1 || out["compared"] != true {
		t.Errorf("report: %v", out)
	}

	resp, out = postJSON(t, srv.URL+"/api/compare", map[string]any{"url": ""})
	if resp.StatusCode != 400 {
		t.Errorf("invalid: status %d %v", resp.StatusCode, out)
	}
}

func TestAPINormalizeAndDiff(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{})

	resp, out := postJSON(t, srv.URL+"/api/normalize", map[string]any{
		"markup": `<html><body><img src="../d.png"></body></html>`,
		"base":   "https://example.com/a/b/",
	})
	if resp.StatusCode != 200 || !strings.Contains(out["markup"].(string), "https://example.com/a/d.png") {
		t.Fatalf("normalize: %d %v", resp.StatusCode, out)
	}

	resp, out = postJSON(t, srv.URL+"/api/diff", map[string]any{
		"rendered":  `<html><body><span></span></body></html>`,
		"reference": `<html><body><p></p></body></html>`,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("diff: %d %v", resp.StatusCode, out)
	}
	if out["added"].(float64) != 1 || out["missing"].(float64) != 1 {
		t.Errorf("diff: %v", out)
	}
}

func TestAPI_BadBody(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{}, WithMaxBody(16))
	resp, err := http.Post(srv.URL+"/api/diff", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("bad json: %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, srv.URL+"/api/diff", map[string]any{"rendered": strings.Repeat("x", 64), "reference": "y"})
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized: %d", resp.StatusCode)
	}
}

func TestAPIHistory(t *testing.T) {
	srv := newServer(t, &fakeAcquirer{})
	postJSON(t, srv.URL+"/api/compare", map[string]any{"url": pageURL})

	resp, err := http.Get(srv.URL + "/api/history?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var entries []history.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].PageURL != pageURL {
		t.Fatalf("entries: %+v", entries)
	}

	resp, err = http.Get(srv.URL + "/api/history?url=" + url.QueryEscape("https://other.test/"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	entries = nil
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries for another page: %+v", entries)
	}
}

func TestMCPMount(t *testing.T) {
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	srv := newServer(t, &fakeAcquirer{}, WithMCPHandler(mcp))
	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestQueryOptions(t *testing.T) {
	def := compare.DefaultOptions()

	got := queryOptions(url.Values{}, def)
	if got != def {
		t.Errorf("no params: %+v", got)
	}
	got = queryOptions(url.Values{"highlight": {"true"}}, def)
	if !got.Highlight || !got.Rewrite {
		t.Errorf("implicit: %+v", got)
	}
	got = queryOptions(url.Values{"opts": {"1"}, "raw": {"on"}}, def)
	if !got.Raw || got.Rewrite || got.Sanitize {
		t.Errorf("explicit: %+v", got)
	}
	got = queryOptions(url.Values{"rewrite": {"0"}}, def)
	if got.Rewrite {
		t.Errorf("rewrite=0: %+v", got)
	}
}
