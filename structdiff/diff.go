package structdiff

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Result holds both annotated documents.
type Result struct {
	Rendered  string `json:"rendered"`
	Reference string `json:"reference"`
	Added     int    `json:"added"`
	Missing   int    `json:"missing"`
	// Compared is false when a side had no <body>; both documents are then
	// returned exactly as given.
	Compared bool `json:"compared"`
}

// Diff parses both markups, compares them and returns the annotated
// serialisations. Marked elements carry the diff-added (rendered side) or
// diff-missing (reference side) class.
func Diff(renderedMarkup, referenceMarkup string) (Result, error) {
	rdoc, err := html.Parse(strings.NewReader(renderedMarkup))
	if err != nil {
		return Result{}, fmt.Errorf("%w: rendered: %v", ErrParse, err)
	}
	sdoc, err := html.Parse(strings.NewReader(referenceMarkup))
	if err != nil {
		return Result{}, fmt.Errorf("%w: reference: %v", ErrParse, err)
	}

	ann, ok := Compare(rdoc, sdoc)
	if !ok {
		return Result{Rendered: renderedMarkup, Reference: referenceMarkup}, nil
	}

	res := Result{
		Added:    len(ann.Rendered),
		Missing:  len(ann.Reference),
		Compared: true,
	}
	if res.Rendered, err = Render(Annotate(rdoc, ann.Rendered)); err != nil {
		return Result{}, err
	}
	if res.Reference, err = Render(Annotate(sdoc, ann.Reference)); err != nil {
		return Result{}, err
	}
	return res, nil
}

// DiffOrOriginal applies Diff and falls back to the unannotated inputs on
// any error.
func DiffOrOriginal(renderedMarkup, referenceMarkup string) Result {
	res, err := Diff(renderedMarkup, referenceMarkup)
	if err != nil {
		return Result{Rendered: renderedMarkup, Reference: referenceMarkup}
	}
	return res
}

var headOpenRe = regexp.MustCompile(`(?i)<head(.*?)>`)

// MarkerStyle returns the <style> element that makes a mark visible.
func MarkerStyle(m Mark) string {
	switch m {
	case Added:
		return `<style>.diff-added { border: 2px solid red !important; box-sizing: border-box; }</style>`
	case Missing:
		return `<style>.diff-missing { border: 2px dashed orange !important; box-sizing: border-box; }</style>`
	}
	return ""
}

// InjectMarkerStyle inserts the marker style for m right after the first
// <head> open tag. Markup without one is returned unchanged.
func InjectMarkerStyle(markup string, m Mark) string {
	style := MarkerStyle(m)
	loc := headOpenRe.FindStringIndex(markup)
	if style == "" || loc == nil {
		return markup
	}
	return markup[:loc[1]] + style + markup[loc[1]:]
}
