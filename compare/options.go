package compare

// Options mirror the display toggles of the comparison page.
type Options struct {
	// Raw shows both markups verbatim as text: no rewrite, no diff, no
	// styling.
	Raw bool `json:"raw"`
	// Rewrite resolves relative src/href references against the page base so
	// detached panels still load their resources.
	Rewrite bool `json:"rewrite"`
	// Highlight runs the structural diff and marks added/missing elements.
	Highlight bool `json:"highlight"`
	// Sanitize strips scripts and event handlers from displayed markup.
	Sanitize bool `json:"sanitize"`
	// Minify compacts the raw view.
	Minify bool `json:"minify"`
}

// DefaultOptions: rewrite and sanitize on, everything else off.
func DefaultOptions() Options {
	return Options{Rewrite: true, Sanitize: true}
}
