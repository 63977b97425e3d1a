// Package gorilla provides a gorilla/mux based implementation of the router.Router interface.
package gorilla

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/nimburion/crudkit/pkg/server/router"
)

// GorillaRouter implements router.Router using gorilla/mux.
type GorillaRouter struct {
	router     *mux.Router
	middleware []router.MiddlewareFunc
	mu         *sync.RWMutex
}

// NewRouter creates a new GorillaRouter.
func NewRouter() *GorillaRouter {
	m := mux.NewRouter()
	m.NotFoundHandler = http.HandlerFunc(router.NotFound)
	m.MethodNotAllowedHandler = http.HandlerFunc(router.MethodNotAllowed)
	return &GorillaRouter{router: m, mu: &sync.RWMutex{}}
}

func (r *GorillaRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodGet, path, handler, middleware)
}

func (r *GorillaRouter) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPost, path, handler, middleware)
}

func (r *GorillaRouter) PUT(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPut, path, handler, middleware)
}

func (r *GorillaRouter) DELETE(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodDelete, path, handler, middleware)
}

func (r *GorillaRouter) PATCH(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPatch, path, handler, middleware)
}

// Group creates a route group with common prefix and middleware.
func (r *GorillaRouter) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	r.mu.RLock()
	combined := append([]router.MiddlewareFunc{}, r.middleware...)
	r.mu.RUnlock()
	combined = append(combined, middleware...)

	sub := r.router.PathPrefix(toMuxPath(prefix)).Subrouter()
	sub.NotFoundHandler = r.router.NotFoundHandler
	sub.MethodNotAllowedHandler = r.router.MethodNotAllowedHandler
	return &GorillaRouter{router: sub, middleware: combined, mu: r.mu}
}

func (r *GorillaRouter) Use(middleware ...router.MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

func (r *GorillaRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

func (r *GorillaRouter) handle(method, path string, h router.HandlerFunc, routeMiddleware []router.MiddlewareFunc) {
	r.mu.RLock()
	chain := append([]router.MiddlewareFunc{}, r.middleware...)
	r.mu.RUnlock()
	handler := router.Chain(h, append(chain, routeMiddleware...)...)

	r.router.HandleFunc(toMuxPath(path), func(w http.ResponseWriter, req *http.Request) {
		ctx := &gorillaContext{BaseContext: router.NewBaseContext(w, req)}
		router.HandleError(ctx.Response(), handler(ctx))
	}).Methods(method)
}

// toMuxPath rewrites ":name" segments to gorilla's "{name}" form.
func toMuxPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

type gorillaContext struct {
	*router.BaseContext
}

// Param reads mux variables from the current request, which keeps working after middleware
// replaced the request with a derived context.
func (c *gorillaContext) Param(name string) string {
	return mux.Vars(c.Request())[name]
}
