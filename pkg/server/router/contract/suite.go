// Package contract holds the behaviour every router adapter must share. Adapter packages run
// TestRouterContract from their own tests.
package contract

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimburion/crudkit/pkg/server/router"
)

type requestCase struct {
	name   string
	routes func(t *testing.T, r router.Router)

	method      string
	target      string
	contentType string
	body        string

	wantStatus      int
	wantBody        string
	wantContentType string
}

func text(body string) router.HandlerFunc {
	return func(c router.Context) error { return c.String(http.StatusOK, body) }
}

func setValue(key, value string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			c.Set(key, value)
			return next(c)
		}
	}
}

type ctxKey struct{}

type notePayload struct {
	Title string `json:"title"`
}

func bindRoute(t *testing.T, r router.Router) {
	r.POST("/notes", func(c router.Context) error {
		var in notePayload
		if err := c.Bind(&in); err != nil {
			var bindErr *router.BindError
			if !errors.As(err, &bindErr) {
				t.Errorf("Bind error %T is not a *router.BindError", err)
				return err
			}
			return c.String(bindErr.Status, bindErr.Reason)
		}
		return c.String(http.StatusCreated, in.Title)
	})
}

func routingCases() []requestCase {
	resource := func(_ *testing.T, r router.Router) {
		r.GET("/notes", text("list"))
		r.GET("/notes/:id", func(c router.Context) error { return c.String(http.StatusOK, "read "+c.Param("id")) })
		r.POST("/notes", text("create"))
		r.PUT("/notes/:id", func(c router.Context) error { return c.String(http.StatusOK, "update "+c.Param("id")) })
		r.PATCH("/notes/:id", text("patch"))
		r.DELETE("/notes/:id", func(c router.Context) error { return c.String(http.StatusOK, "delete "+c.Param("id")) })
	}
	return []requestCase{
		{name: "list", routes: resource, method: http.MethodGet, target: "/notes", wantStatus: http.StatusOK, wantBody: "list"},
		{name: "read", routes: resource, method: http.MethodGet, target: "/notes/7", wantStatus: http.StatusOK, wantBody: "read 7"},
		{name: "create", routes: resource, method: http.MethodPost, target: "/notes", wantStatus: http.StatusOK, wantBody: "create"},
		{name: "update", routes: resource, method: http.MethodPut, target: "/notes/8", wantStatus: http.StatusOK, wantBody: "update 8"},
		{name: "patch", routes: resource, method: http.MethodPatch, target: "/notes/8", wantStatus: http.StatusOK, wantBody: "patch"},
		{name: "delete", routes: resource, method: http.MethodDelete, target: "/notes/9", wantStatus: http.StatusOK, wantBody: "delete 9"},
		{
			name: "unknown route is a JSON 404", routes: resource,
			method: http.MethodGet, target: "/widgets",
			wantStatus: http.StatusNotFound, wantContentType: "application/json",
		},
		{
			name: "wrong method is a JSON 405", routes: func(_ *testing.T, r router.Router) { r.GET("/only-get", text("ok")) },
			method: http.MethodPost, target: "/only-get",
			wantStatus: http.StatusMethodNotAllowed, wantContentType: "application/json",
		},
		{
			name: "two path params",
			routes: func(_ *testing.T, r router.Router) {
				r.GET("/owners/:owner/notes/:id", func(c router.Context) error {
					return c.String(http.StatusOK, c.Param("owner")+"/"+c.Param("id")+"/"+c.Param("missing"))
				})
			},
			method: http.MethodGet, target: "/owners/alice/notes/3",
			wantStatus: http.StatusOK, wantBody: "alice/3/",
		},
		{
			name: "nested groups",
			routes: func(_ *testing.T, r router.Router) {
				r.Group("/api").Group("/v1").GET("/notes", text("v1 list"))
			},
			method: http.MethodGet, target: "/api/v1/notes",
			wantStatus: http.StatusOK, wantBody: "v1 list",
		},
		{
			name: "group middleware",
			routes: func(_ *testing.T, r router.Router) {
				r.Group("/secured", setValue("subject", "alice")).GET("/me", func(c router.Context) error {
					subject, _ := c.Get("subject").(string)
					return c.String(http.StatusOK, subject)
				})
			},
			method: http.MethodGet, target: "/secured/me",
			wantStatus: http.StatusOK, wantBody: "alice",
		},
	}
}

func requestCases() []requestCase {
	return []requestCase{
		{
			name: "first query value",
			routes: func(_ *testing.T, r router.Router) {
				r.GET("/notes", func(c router.Context) error { return c.String(http.StatusOK, c.Query("page_no")) })
			},
			method: http.MethodGet, target: "/notes?page_no=2&page_no=3",
			wantStatus: http.StatusOK, wantBody: "2",
		},
		{
			name: "raw query values",
			routes: func(_ *testing.T, r router.Router) {
				r.GET("/notes", func(c router.Context) error {
					values := c.QueryValues()
					return c.String(http.StatusOK, strings.Join(values["select"], ",")+"|"+values.Get("title"))
				})
			},
			method: http.MethodGet, target: "/notes?select=id&select=title&title=eq%3A%22go%22",
			wantStatus: http.StatusOK, wantBody: `id,title|eq:"go"`,
		},
		{
			name: "replaced request keeps params",
			routes: func(_ *testing.T, r router.Router) {
				r.Use(func(next router.HandlerFunc) router.HandlerFunc {
					return func(c router.Context) error {
						c.SetRequest(c.Request().WithContext(context.WithValue(c.Request().Context(), ctxKey{}, "req-1")))
						return next(c)
					}
				})
				r.GET("/notes/:id", func(c router.Context) error {
					v, _ := c.Request().Context().Value(ctxKey{}).(string)
					return c.String(http.StatusOK, v+":"+c.Param("id"))
				})
			},
			method: http.MethodGet, target: "/notes/4",
			wantStatus: http.StatusOK, wantBody: "req-1:4",
		},
		{
			name: "values set by middleware are visible",
			routes: func(_ *testing.T, r router.Router) {
				r.Use(setValue("request_id", "abc"))
				r.GET("/ctx", func(c router.Context) error {
					id, _ := c.Get("request_id").(string)
					if c.Get("absent") != nil {
						return c.String(http.StatusOK, "absent key must be nil")
					}
					return c.String(http.StatusOK, id)
				})
			},
			method: http.MethodGet, target: "/ctx",
			wantStatus: http.StatusOK, wantBody: "abc",
		},
	}
}

func bindCases() []requestCase {
	big := `{"title":"` + strings.Repeat("x", int(router.MaxBodyBytes)) + `"}`
	return []requestCase{
		{name: "json body", body: `{"title":"groceries"}`, contentType: "application/json", wantStatus: http.StatusCreated, wantBody: "groceries"},
		{name: "json with charset", body: `{"title":"a"}`, contentType: "application/json; charset=utf-8", wantStatus: http.StatusCreated, wantBody: "a"},
		{name: "malformed", body: "{", contentType: "application/json", wantStatus: http.StatusBadRequest},
		{name: "empty", contentType: "application/json", wantStatus: http.StatusBadRequest},
		{name: "trailing value", body: `{"title":"a"}{"title":"b"}`, contentType: "application/json", wantStatus: http.StatusBadRequest},
		{name: "form body", body: "title=x", contentType: "application/x-www-form-urlencoded", wantStatus: http.StatusUnsupportedMediaType},
		{name: "missing content type", body: `{"title":"a"}`, wantStatus: http.StatusUnsupportedMediaType},
		{name: "oversized", body: big, contentType: "application/json", wantStatus: http.StatusRequestEntityTooLarge},
	}
}

func responseCases() []requestCase {
	return []requestCase{
		{
			name:   "json",
			routes: func(_ *testing.T, r router.Router) { r.GET("/json", func(c router.Context) error { return c.JSON(http.StatusCreated, map[string]int{"id": 1}) }) },
			method: http.MethodGet, target: "/json",
			wantStatus: http.StatusCreated, wantBody: "{\"id\":1}\n", wantContentType: "application/json",
		},
		{
			name:   "text",
			routes: func(_ *testing.T, r router.Router) { r.GET("/text", func(c router.Context) error { return c.String(http.StatusAccepted, "queued") }) },
			method: http.MethodGet, target: "/text",
			wantStatus: http.StatusAccepted, wantBody: "queued", wantContentType: "text/plain",
		},
		{
			name:   "handler error becomes 500",
			routes: func(_ *testing.T, r router.Router) { r.GET("/boom", func(router.Context) error { return errors.New("boom") }) },
			method: http.MethodGet, target: "/boom",
			wantStatus: http.StatusInternalServerError, wantContentType: "application/json",
		},
		{
			name: "error after a write keeps the response",
			routes: func(_ *testing.T, r router.Router) {
				r.GET("/partial", func(c router.Context) error {
					if err := c.String(http.StatusConflict, "stale"); err != nil {
						return err
					}
					return errors.New("ignored")
				})
			},
			method: http.MethodGet, target: "/partial",
			wantStatus: http.StatusConflict, wantBody: "stale",
		},
		{
			name: "middleware error skips the handler",
			routes: func(t *testing.T, r router.Router) {
				r.GET("/denied", func(router.Context) error {
					t.Error("handler must not run")
					return nil
				}, func(router.HandlerFunc) router.HandlerFunc {
					return func(router.Context) error { return errors.New("denied") }
				})
			},
			method: http.MethodGet, target: "/denied",
			wantStatus: http.StatusInternalServerError,
		},
	}
}

// TestRouterContract runs every shared case against routers built by createRouter.
func TestRouterContract(t *testing.T, createRouter func() router.Router) {
	t.Helper()

	groups := map[string][]requestCase{
		"routing":   routingCases(),
		"request":   requestCases(),
		"responses": responseCases(),
	}
	for _, tc := range bindCases() {
		tc.routes, tc.method, tc.target = bindRoute, http.MethodPost, "/notes"
		groups["bind"] = append(groups["bind"], tc)
	}
	for group, cases := range groups {
		t.Run(group, func(t *testing.T) {
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) { runCase(t, createRouter(), tc) })
			}
		})
	}

	t.Run("middleware order", func(t *testing.T) {
		r := createRouter()
		var order []string
		trace := func(name string) router.MiddlewareFunc {
			return func(next router.HandlerFunc) router.HandlerFunc {
				return func(c router.Context) error {
					order = append(order, name)
					return next(c)
				}
			}
		}
		r.Use(trace("global"))
		r.Group("/api", trace("group")).GET("/notes", func(c router.Context) error {
			order = append(order, "handler")
			return c.String(http.StatusOK, "ok")
		}, trace("route"))

		performRequest(r, http.MethodGet, "/api/notes", nil, "")
		if got := strings.Join(order, ","); got != "global,group,route,handler" {
			t.Fatalf("order = %s", got)
		}
	})

	t.Run("response writer tracks status", func(t *testing.T) {
		r := createRouter()
		r.DELETE("/notes/:id", func(c router.Context) error {
			rw := c.Response()
			if rw.Written() || rw.Status() != http.StatusOK {
				t.Errorf("fresh writer: written = %v status = %d", rw.Written(), rw.Status())
			}
			rw.WriteHeader(http.StatusNoContent)
			rw.WriteHeader(http.StatusOK)
			if !rw.Written() || rw.Status() != http.StatusNoContent {
				t.Errorf("after WriteHeader: written = %v status = %d", rw.Written(), rw.Status())
			}
			return nil
		})
		if res := performRequest(r, http.MethodDelete, "/notes/1", nil, ""); res.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", res.Code)
		}
	})
}

func runCase(t *testing.T, r router.Router, tc requestCase) {
	t.Helper()
	tc.routes(t, r)
	var body io.Reader
	if tc.body != "" {
		body = strings.NewReader(tc.body)
	}
	res := performRequest(r, tc.method, tc.target, body, tc.contentType)
	if res.Code != tc.wantStatus {
		t.Fatalf("%s %s: status = %d, want %d (body %q)", tc.method, tc.target, res.Code, tc.wantStatus, res.Body.String())
	}
	if tc.wantBody != "" && res.Body.String() != tc.wantBody {
		t.Fatalf("%s %s: body = %q, want %q", tc.method, tc.target, res.Body.String(), tc.wantBody)
	}
	if tc.wantContentType != "" && !strings.Contains(res.Header().Get("Content-Type"), tc.wantContentType) {
		t.Fatalf("%s %s: content type = %q, want %q", tc.method, tc.target, res.Header().Get("Content-Type"), tc.wantContentType)
	}
}

func performRequest(r router.Router, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = http.NoBody
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
