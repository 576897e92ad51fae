package server

import (
	"fmt"
	"net/http"
)

// BasicRouter is a small [Router] over [http.ServeMux], relying on the mux's
// method patterns for method filtering.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

// NewBasicRouter creates an empty router.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use appends middleware to the stack, applied in the order added.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the given HTTP method and path.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Handle(fmt.Sprintf("%s %s", method, path), r.Apply(handler))
}

// Handler registers every route a [Handler] declares, for any method.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with the registered middleware, in reverse order so
// the first middleware added is the outermost.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}
	return wrapped
}
