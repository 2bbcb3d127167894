package rewrite

import (
	"net/url"
	"strings"
)

// BaseURL derives the base used for resolution from the reference page
// location: origin plus the path up to and including its last slash.
//
//	https://example.com/a/b/page.html?x=1 -> https://example.com/a/b/
//	https://example.com                   -> https://example.com/
//
// Locations that are not absolute network URLs yield "", which turns
// normalization into a no-op.
func BaseURL(location string) string {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if port := u.Port(); (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		host = strings.ToLower(u.Hostname())
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
	}

	p := u.EscapedPath()
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[:i+1]
	} else {
		p = "/"
	}
	return scheme + "://" + host + p
}
