package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const article = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
<main>
<article>
<h1>Article Title</h1>
<p>Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur.</p>
</article>
</main>
</body>
</html>`

func TestFetch_OK(t *testing.T) {
	var gotUA, gotCookie, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(article))
	}))
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	u, _ := url.Parse(srv.URL)
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "secret"}})

	f := New(WithClient(&http.Client{Jar: jar}), WithUserAgent("ssrdiff-test"))
	res, err := f.Fetch(context.Background(), srv.URL+"/a/page.html")
	if err != nil {
		t.Fatal(err)
	}

	if gotUA != "ssrdiff-test" {
		t.Errorf("User-Agent: got %q", gotUA)
	}
	if gotCookie != "" || gotAuth != "" {
		t.Errorf("credentials forwarded: cookie=%q auth=%q", gotCookie, gotAuth)
	}
	if res.StatusCode != 200 || res.ETag != `"v1"` {
		t.Errorf("result: %+v", res)
	}
	if res.Snapshot.Kind != "reference" || res.Snapshot.PageURL != srv.URL+"/a/page.html" {
		t.Errorf("snapshot: kind=%q url=%q", res.Snapshot.Kind, res.Snapshot.PageURL)
	}
	if res.Snapshot.String() != article {
		t.Error("snapshot body differs from served markup")
	}
	if res.Shell {
		t.Error("article page flagged as shell")
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New().Fetch(context.Background(), srv.URL)
	if err == nil || err.Error() != "HTTP 404" {
		t.Fatalf("error: got %v, want HTTP 404", err)
	}
}

func TestFetch_MaxBytes(t *testing.T) {
	page := "<html><body>" + strings.Repeat("<p>x</p>", 28) + "<footer></footer></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	res, err := New(WithMaxBytes(100)).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if res != nil {
		t.Fatal("a truncated body must not be returned")
	}

	res, err = New(WithMaxBytes(int64(len(page)))).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("body at the limit: %v", err)
	}
	if !strings.Contains(res.Snapshot.String(), "<footer>") {
		t.Fatal("body at the limit must be complete")
	}
}

func TestFetch_BadURL(t *testing.T) {
	if _, err := New().Fetch(context.Background(), "://bad"); err == nil {
		t.Fatal("expected error")
	}
}
