// Package router provides an abstraction layer for HTTP routing.
// It defines interfaces that allow pluggable router implementations (net/http, gin-gonic, gorilla/mux).
// Paths use ":name" for parameters in every implementation.
package router

import (
	"net/http"
	"net/url"
)

// Router defines the interface for HTTP routing.
type Router interface {
	GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	POST(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PUT(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	DELETE(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PATCH(path string, handler HandlerFunc, middleware ...MiddlewareFunc)

	// Group creates a route group with common prefix and middleware
	Group(prefix string, middleware ...MiddlewareFunc) Router

	// Use applies middleware to routes registered after the call
	Use(middleware ...MiddlewareFunc)

	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// HandlerFunc is the function signature for route handlers.
type HandlerFunc func(Context) error

// MiddlewareFunc wraps a HandlerFunc and returns a new HandlerFunc.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// Context provides access to request and response in a router-agnostic way.
type Context interface {
	Request() *http.Request

	// SetRequest replaces the request, e.g. to attach a derived context.Context.
	SetRequest(r *http.Request)

	Response() ResponseWriter

	// SetResponse replaces the response writer, e.g. to wrap it.
	SetResponse(w ResponseWriter)

	// Param returns a URL parameter by name (e.g., /notes/:id)
	Param(name string) string

	// Query returns the first value of a query parameter.
	Query(name string) string

	// QueryValues returns every query parameter with all of its values.
	QueryValues() url.Values

	// Bind decodes a JSON request body into v. Failures are *BindError values.
	Bind(v interface{}) error

	JSON(code int, v interface{}) error
	String(code int, s string) error

	Get(key string) interface{}
	Set(key string, value interface{})
}

// ResponseWriter wraps http.ResponseWriter to track response status.
type ResponseWriter interface {
	http.ResponseWriter

	// Status returns the HTTP status code of the response
	Status() int

	// Written returns whether the response has been written
	Written() bool
}

// Chain applies middleware around h so that middleware[0] runs first.
func Chain(h HandlerFunc, middleware ...MiddlewareFunc) HandlerFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// RouteKey is the Context key under which handlers store their route pattern, e.g.
// "/notes/:id". Access logging and metrics label requests with it.
const RouteKey = "crudkit.route"

// Route returns the pattern stored under RouteKey, or "unmatched".
func Route(c Context) string {
	if route, ok := c.Get(RouteKey).(string); ok && route != "" {
		return route
	}
	return "unmatched"
}
