package fetcher

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// mountIDs are the ids frameworks hydrate into.
var mountIDs = map[string]bool{
	"root": true, "app": true, "__next": true, "__nuxt": true, "svelte": true, "___gatsby": true,
}

// minText is the visible-text floor, in non-space characters, below which a
// page is treated as a shell.
const minText = 200

// IsShell reports whether markup looks like a client-rendered application
// shell: an empty framework mount point, or less than minText characters of
// visible text or under 10% text relative to markup.
func IsShell(markup []byte) bool {
	text, total, emptyMount := scan(markup)
	if emptyMount {
		return true
	}
	if text < minText || total == 0 {
		return true
	}
	return float64(text)/float64(total) < 0.10
}

// scan tokenises markup, counting visible text characters (outside script,
// style, noscript and template) against total bytes, and notes whether a
// mount-point element is immediately closed.
func scan(markup []byte) (text, total int, emptyMount bool) {
	total = len(markup)
	z := html.NewTokenizer(bytes.NewReader(markup))
	skip := 0
	pendingName := ""
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return text, total, emptyMount
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			switch a {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				skip++
			}
			pendingName = ""
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				if string(k) == "id" && mountIDs[string(v)] {
					pendingName = string(name)
				}
			}
			continue
		case html.EndTagToken:
			name, _ := z.TagName()
			if pendingName != "" && string(name) == pendingName {
				emptyMount = true
			}
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				text += countVisible(z.Text())
			}
			if pendingName != "" && strings.TrimSpace(string(z.Text())) == "" {
				continue
			}
		}
		pendingName = ""
	}
}

func countVisible(b []byte) int {
	n := 0
	for _, r := range string(b) {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
