package shield

import "net/http"

// HeadToGet answers HEAD like GET so chi GET routes do not reply 405.
// Paths listed in except keep HEAD since their GET starts a page
// acquisition and a HEAD request must not launch a browser.
func HeadToGet(except ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(except))
	for _, p := range except {
		skip[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead && !skip[r.URL.Path] {
				r.Method = http.MethodGet
			}
			next.ServeHTTP(w, r)
		})
	}
}
