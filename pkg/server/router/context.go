package router

import (
	"net/http"
	"net/url"
)

// BaseContext implements every Context method except Param. Adapters embed it and add path
// parameter lookup.
type BaseContext struct {
	request  *http.Request
	response ResponseWriter
	query    url.Values
	store    Store
}

// NewBaseContext wraps w in a TrackingWriter.
func NewBaseContext(w http.ResponseWriter, r *http.Request) *BaseContext {
	return &BaseContext{request: r, response: NewTrackingWriter(w)}
}

func (c *BaseContext) Request() *http.Request { return c.request }

func (c *BaseContext) SetRequest(r *http.Request) {
	c.request = r
	c.query = nil
}

func (c *BaseContext) Response() ResponseWriter { return c.response }

func (c *BaseContext) SetResponse(w ResponseWriter) { c.response = w }

func (c *BaseContext) Query(name string) string {
	return c.QueryValues().Get(name)
}

// QueryValues parses the query string once per request.
func (c *BaseContext) QueryValues() url.Values {
	if c.query == nil {
		c.query = c.request.URL.Query()
	}
	return c.query
}

func (c *BaseContext) Bind(v interface{}) error {
	return DecodeJSON(c.response, c.request, v)
}

func (c *BaseContext) JSON(code int, v interface{}) error {
	return WriteJSON(c.response, code, v)
}

func (c *BaseContext) String(code int, s string) error {
	return WriteString(c.response, code, s)
}

func (c *BaseContext) Get(key string) interface{} { return c.store.Get(key) }

func (c *BaseContext) Set(key string, value interface{}) { c.store.Set(key, value) }
