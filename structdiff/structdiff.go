// Package structdiff compares the element structure of two HTML documents:
// the markup rendered by a live browser and the reference markup delivered by
// the server.
//
// Alignment is positional and by tag name only. Starting at each <body>, the
// element children of both sides are walked index by index; a slot whose tags
// differ (or that exists on one side only) is marked, and only slots with the
// same tag are descended into. Attributes, text and comments are ignored and
// moved elements are reported as mismatches at both positions.
//
// The comparison is pure: Compare returns a side table of marks keyed by path
// and Annotate applies it to deep copies, so inputs are never modified and
// concurrent calls need no coordination.
package structdiff

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrParse is returned when either document cannot be parsed.
var ErrParse = errors.New("structdiff: parse markup")

// Mark classifies an element that has no positional counterpart.
type Mark string

const (
	// Added marks a rendered element absent or different in the reference.
	Added Mark = "added"
	// Missing marks a reference element absent or different in the rendered markup.
	Missing Mark = "missing"
)

// Class is the CSS class carrying the mark in annotated markup.
func (m Mark) Class() string { return "diff-" + string(m) }

// Path locates an element by its element-child indexes below <body>,
// dot separated: "0.2" is the third element child of the first body child.
type Path string

// Child returns the path of the i-th element child of p.
func (p Path) Child(i int) Path {
	if p == "" {
		return Path(strconv.Itoa(i))
	}
	return p + "." + Path(strconv.Itoa(i))
}

// Indexes decodes p. Malformed segments yield nil.
func (p Path) Indexes() []int {
	if p == "" {
		return nil
	}
	parts := strings.Split(string(p), ".")
	out := make([]int, len(parts))
	for i, s := range parts {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil
		}
		out[i] = n
	}
	return out
}

// Annotations is the result of Compare: one mark table per side.
type Annotations struct {
	Rendered  map[Path]Mark
	Reference map[Path]Mark
}

// Empty reports whether neither side carries a mark.
func (a Annotations) Empty() bool {
	return len(a.Rendered) == 0 && len(a.Reference) == 0
}

// Compare aligns the bodies of two parsed documents. It returns false, and no
// annotations, when either document has no <body> element.
func Compare(rendered, reference *html.Node) (Annotations, bool) {
	rb, sb := FindBody(rendered), FindBody(reference)
	if rb == nil || sb == nil {
		return Annotations{}, false
	}
	a := Annotations{
		Rendered:  make(map[Path]Mark),
		Reference: make(map[Path]Mark),
	}
	walk(rb, sb, "", &a)
	return a, true
}

func walk(r, s *html.Node, path Path, a *Annotations) {
	rc, sc := elementChildren(r), elementChildren(s)
	n := max(len(rc), len(sc))
	for i := 0; i < n; i++ {
		var rChild, sChild *html.Node
		if i < len(rc) {
			rChild = rc[i]
		}
		if i < len(sc) {
			sChild = sc[i]
		}
		p := path.Child(i)
		same := rChild != nil && sChild != nil && sameTag(rChild, sChild)
		if rChild != nil && !same {
			a.Rendered[p] = Added
		}
		if sChild != nil && !same {
			a.Reference[p] = Missing
		}
		if same {
			walk(rChild, sChild, p, a)
		}
	}
}

// sameTag compares tag identity the way DOM tagName does: the name within its
// namespace, so an SVG <a> differs from an HTML <a>.
func sameTag(a, b *html.Node) bool {
	return a.Data == b.Data && a.Namespace == b.Namespace
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// DocumentElement returns the root element of a parsed document, or nil.
func DocumentElement(doc *html.Node) *html.Node {
	if doc == nil {
		return nil
	}
	if doc.Type == html.ElementNode {
		return doc
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// FindBody returns the <body> child of the document element, or nil for
// documents without one (frameset documents).
func FindBody(doc *html.Node) *html.Node {
	root := DocumentElement(doc)
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body && c.Namespace == "" {
			return c
		}
	}
	return nil
}

// Annotate returns a deep copy of doc with the class of each mark appended to
// the element at its path. doc itself is left untouched. Paths that do not
// resolve to an element are ignored.
func Annotate(doc *html.Node, marks map[Path]Mark) *html.Node {
	out := Clone(doc)
	body := FindBody(out)
	if body == nil {
		return out
	}
	for p, m := range marks {
		if n := lookup(body, p); n != nil {
			addClass(n, m.Class())
		}
	}
	return out
}

func lookup(body *html.Node, p Path) *html.Node {
	idx := p.Indexes()
	if idx == nil {
		return nil
	}
	n := body
	for _, i := range idx {
		children := elementChildren(n)
		if i >= len(children) {
			return nil
		}
		n = children[i]
	}
	return n
}

// Clone deep-copies a node and its descendants. The copy has no parent.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// addClass behaves like classList.add: the token is appended once and the
// attribute is rewritten as a single-space separated token list.
func addClass(n *html.Node, class string) {
	for i, a := range n.Attr {
		if a.Namespace != "" || a.Key != "class" {
			continue
		}
		tokens := strings.Fields(a.Val)
		for _, t := range tokens {
			if t == class {
				return
			}
		}
		n.Attr[i].Val = strings.Join(append(tokens, class), " ")
		return
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
}

// Render serialises the document element of doc, the equivalent of
// document.documentElement.outerHTML.
func Render(doc *html.Node) (string, error) {
	root := DocumentElement(doc)
	if root == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("structdiff: render: %w", err)
	}
	return buf.String(), nil
}
