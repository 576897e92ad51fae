// package server contains the loopback HTTP surface for the jukebox client:
// routing, middleware, and the authorization callback handler.
package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an http.Handler and returns a new http.Handler with
// additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows which path patterns it serves, so
// route definitions stay inside the implementation.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router registers handlers, applies middleware, and serves the whole tree.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// LogRequests returns middleware that logs each request with its duration.
func LogRequests(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request handled",
				"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
