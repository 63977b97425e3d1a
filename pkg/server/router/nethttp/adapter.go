// Package nethttp provides a net/http-based implementation of the router.Router interface.
package nethttp

import (
	"net/http"
	"strings"
	"sync"

	"github.com/nimburion/crudkit/pkg/server/router"
)

// NetHTTPRouter implements router.Router with a segment matcher over registered routes.
type NetHTTPRouter struct {
	routes     *[]route
	middleware []router.MiddlewareFunc
	prefix     string
	mu         *sync.RWMutex
}

type route struct {
	method  string
	pattern []string
	handler router.HandlerFunc
}

// NewRouter creates a new NetHTTPRouter.
func NewRouter() *NetHTTPRouter {
	routes := make([]route, 0)
	return &NetHTTPRouter{routes: &routes, mu: &sync.RWMutex{}}
}

func (r *NetHTTPRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodGet, path, handler, middleware)
}

func (r *NetHTTPRouter) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodPost, path, handler, middleware)
}

func (r *NetHTTPRouter) PUT(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodPut, path, handler, middleware)
}

func (r *NetHTTPRouter) DELETE(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodDelete, path, handler, middleware)
}

func (r *NetHTTPRouter) PATCH(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodPatch, path, handler, middleware)
}

// Group creates a route group with common prefix and middleware.
func (r *NetHTTPRouter) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	r.mu.RLock()
	combined := append([]router.MiddlewareFunc{}, r.middleware...)
	r.mu.RUnlock()
	return &NetHTTPRouter{
		routes:     r.routes,
		middleware: append(combined, middleware...),
		prefix:     r.prefix + prefix,
		mu:         r.mu,
	}
}

func (r *NetHTTPRouter) Use(middleware ...router.MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// ServeHTTP dispatches to the first route matching method and path. A path that matches
// only under other methods is answered with 405.
func (r *NetHTTPRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	routes := *r.routes
	r.mu.RUnlock()

	segments := split(req.URL.Path)
	pathMatched := false
	for _, rt := range routes {
		params, ok := match(rt.pattern, segments)
		if !ok {
			continue
		}
		if rt.method != req.Method {
			pathMatched = true
			continue
		}
		ctx := &netHTTPContext{BaseContext: router.NewBaseContext(w, req), params: params}
		router.HandleError(ctx.Response(), rt.handler(ctx))
		return
	}

	if pathMatched {
		router.MethodNotAllowed(w, req)
		return
	}
	router.NotFound(w, req)
}

func (r *NetHTTPRouter) addRoute(method, path string, handler router.HandlerFunc, middleware []router.MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain := append(append([]router.MiddlewareFunc{}, r.middleware...), middleware...)
	*r.routes = append(*r.routes, route{
		method:  method,
		pattern: split(r.prefix + path),
		handler: router.Chain(handler, chain...),
	})
}

func split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// match compares pattern segments with path segments, collecting ":name" parameters.
func match(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	var params map[string]string
	for i, part := range pattern {
		if strings.HasPrefix(part, ":") {
			if segments[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string, 1)
			}
			params[part[1:]] = segments[i]
			continue
		}
		if part != segments[i] {
			return nil, false
		}
	}
	return params, true
}

type netHTTPContext struct {
	*router.BaseContext
	params map[string]string
}

func (c *netHTTPContext) Param(name string) string {
	return c.params[name]
}
