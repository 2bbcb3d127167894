package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var resourceTypes = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
}

// blockedTypes maps configured names to CDP resource types. Unknown names
// are ignored.
func blockedTypes(names []string) []proto.NetworkResourceType {
	var out []proto.NetworkResourceType
	seen := make(map[proto.NetworkResourceType]bool, len(names))
	for _, n := range names {
		rt, ok := resourceTypes[strings.ToLower(n)]
		if !ok || seen[rt] {
			continue
		}
		seen[rt] = true
		out = append(out, rt)
	}
	return out
}

// applyResourceBlocking fails requests of the listed types. Other requests
// are not intercepted. Stylesheets and fonts do not change the element
// structure being compared. Returns nil when nothing is blocked.
func applyResourceBlocking(page *rod.Page, names []string) *rod.HijackRouter {
	types := blockedTypes(names)
	if len(types) == 0 {
		return nil
	}
	router := page.HijackRequests()
	for _, rt := range types {
		router.Add("*", rt, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
	}
	go router.Run()
	return router
}
