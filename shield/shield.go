// Package shield provides the HTTP middleware shared by the ssrdiff UI and
// API: security headers suited to srcdoc comparison frames, body limits,
// request tracing and HEAD handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(16 << 20) {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// AcquirePaths are the UI routes whose GET runs a comparison.
var AcquirePaths = []string{"/compare"}

// DefaultStack returns the standard middleware stack, outermost first:
// HeadToGet → SecurityHeaders → MaxBody → TraceID.
func DefaultStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet(AcquirePaths...),
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		TraceID,
	}
}
