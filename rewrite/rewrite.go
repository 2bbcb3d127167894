// Package rewrite makes a detached HTML document display like the page it was
// taken from: relative src and href references are resolved against the page's
// base URL so that images, stylesheets and links keep working once the markup
// is shown outside its origin (srcdoc iframe, file on disk).
//
// Absolute references (scheme://, protocol-relative //) and data: URIs are
// never touched. Resolution follows net/url reference resolution, so ../
// traversal, queries and fragments behave as in a browser.
package rewrite

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrParse is returned when the markup cannot be parsed as an HTML document.
var ErrParse = errors.New("rewrite: parse markup")

// ErrBaseURL is returned when a non-empty base URL is not an absolute URL.
var ErrBaseURL = errors.New("rewrite: invalid base url")

// Attrs lists the attributes rewritten, in the order they are processed.
var Attrs = []string{"src", "href"}

var absoluteRe = regexp.MustCompile(`(?i)^([a-z]+:)?//`)

// IsAbsolute reports whether ref is left alone by Normalize: an absolute or
// protocol-relative URL, or a data: URI.
func IsAbsolute(ref string) bool {
	return absoluteRe.MatchString(ref) || strings.HasPrefix(ref, "data:")
}

// Normalize returns markup with every relative src and href resolved against
// base. An empty base is a no-op. When no reference needed rewriting the input
// is returned byte for byte; otherwise the document element is re-serialised.
//
// A reference that fails to parse is skipped; only a document-level failure
// returns an error, in which case the original markup is returned alongside it.
func Normalize(markup, base string) (string, error) {
	if base == "" || markup == "" {
		return markup, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return markup, fmt.Errorf("%w: %q", ErrBaseURL, base)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup, fmt.Errorf("%w: %v", ErrParse, err)
	}

	changed := 0
	for _, attr := range Attrs {
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			val, ok := s.Attr(attr)
			if !ok || val == "" || IsAbsolute(val) {
				return
			}
			resolved, ok := resolve(baseURL, val)
			if !ok || resolved == val {
				return
			}
			s.SetAttr(attr, resolved)
			changed++
		})
	}
	if changed == 0 {
		return markup, nil
	}

	out, err := renderDocumentElement(doc.Selection.Nodes[0])
	if err != nil {
		return markup, fmt.Errorf("rewrite: render: %w", err)
	}
	return out, nil
}

// NormalizeOrOriginal applies Normalize and falls back to the original markup
// on any error.
func NormalizeOrOriginal(markup, base string) string {
	out, err := Normalize(markup, base)
	if err != nil {
		return markup
	}
	return out
}

// Resolve resolves a single reference against base with the same rules as
// Normalize. It returns ref unchanged when it is absolute or cannot be resolved.
func Resolve(base, ref string) string {
	if base == "" || ref == "" || IsAbsolute(ref) {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ref
	}
	if out, ok := resolve(b, ref); ok {
		return out
	}
	return ref
}

func resolve(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(u).String(), true
}

// renderDocumentElement serialises the <html> element of doc, the equivalent of
// document.documentElement.outerHTML.
func renderDocumentElement(doc *html.Node) (string, error) {
	root := doc
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			root = c
			break
		}
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}
