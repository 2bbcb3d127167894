package compare

import (
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var (
	minifier     *minify.M
	minifierOnce sync.Once
)

// getMinifier returns the raw-view minifier (singleton). Document, end tags
// and quotes are kept so the compacted text still reads as the source.
func getMinifier() *minify.M {
	minifierOnce.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &html.Minifier{
			KeepDocumentTags:    true,
			KeepEndTags:         true,
			KeepQuotes:          true,
			KeepDefaultAttrVals: true,
		})
	})
	return minifier
}

// Minify compacts markup for the raw view, falling back to the input when
// minification fails.
func Minify(markup string) string {
	if markup == "" {
		return ""
	}
	out, err := getMinifier().String("text/html", markup)
	if err != nil {
		return markup
	}
	return out
}
