package compare

import (
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	displayPolicy     *bluemonday.Policy
	displayPolicyOnce sync.Once
)

// elementName matches every HTML, SVG and custom element name, so display
// sanitizing never removes an element the diff may have marked.
var elementName = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// policy returns the display policy: every element is kept along with its
// classes, inline and <style> styling, links and images, while on* handlers
// and javascript: URLs are dropped. <script> is removed beforehand by
// stripScripts.
func policy() *bluemonday.Policy {
	displayPolicyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElementsMatching(elementName)
		p.AllowNoAttrs().OnElementsMatching(elementName)
		p.AllowAttrs("class", "id", "style", "role", "lang", "dir", "title", "hidden", "tabindex").Globally()
		p.AllowDataAttributes()
		p.AllowAttrs("rel", "href", "type", "media", "as", "crossorigin").OnElements("link")
		p.AllowAttrs("charset", "name", "content").OnElements("meta")
		p.AllowAttrs("src", "srcset", "sizes", "type", "media").OnElements("source", "img", "video", "audio", "track")
		p.AllowAttrs("type", "name", "value", "placeholder", "checked", "disabled", "for", "action", "method").Globally()
		p.AllowAttrs("viewBox", "xmlns", "fill", "stroke", "d", "width", "height", "cx", "cy", "r", "x", "y", "points", "transform").Globally()
		p.AllowDataURIImages()
		p.AllowRelativeURLs(true)
		p.RequireNoFollowOnLinks(false)
		// Keeps <style> bodies and style attributes as written.
		p.AllowUnsafe(true)
		displayPolicy = p
	})
	return displayPolicy
}

// Sanitize removes scripts from markup and applies the display policy.
func Sanitize(markup string) string {
	if markup == "" {
		return ""
	}
	return policy().Sanitize(stripScripts(markup))
}

// stripScripts removes every <script> element, SVG ones included. Markup
// without scripts is returned as is.
func stripScripts(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	scripts := doc.Find("script")
	if scripts.Length() == 0 {
		return markup
	}
	scripts.Remove()
	out, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return markup
	}
	return out
}
