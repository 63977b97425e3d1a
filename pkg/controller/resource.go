// Package controller exposes orchestrated resources over the router abstraction and maps
// application errors to JSON responses.
package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/query"
	"github.com/nimburion/crudkit/pkg/resource"
	"github.com/nimburion/crudkit/pkg/server/router"
)

// IDParser converts the :id path segment into a resource identifier.
type IDParser[ID comparable] func(raw string) (ID, error)

// ParseInt64ID parses decimal integer identifiers.
func ParseInt64ID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, invalidID(raw)
	}
	return id, nil
}

// ParseStringID accepts any non-blank identifier.
func ParseStringID(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", invalidID(raw)
	}
	return raw, nil
}

func invalidID(raw string) error {
	return apperror.New("validation.invalid_id", nil, nil).
		WithMessage(fmt.Sprintf("invalid id %q", raw)).
		WithHTTPStatus(http.StatusBadRequest).
		WithDetails(map[string]interface{}{"id": raw})
}

// Resource serves the five CRUD routes of one orchestrated resource.
type Resource[T any, ID comparable] struct {
	orchestrator *resource.Orchestrator[T, ID]
	parseID      IDParser[ID]
}

// NewResource creates a controller for orchestrator.
func NewResource[T any, ID comparable](orchestrator *resource.Orchestrator[T, ID], parseID IDParser[ID]) *Resource[T, ID] {
	return &Resource[T, ID]{orchestrator: orchestrator, parseID: parseID}
}

// Register mounts the routes under path, e.g. "/notes":
//
//	GET    path       list (filters, paging, sort_by, select)
//	POST   path       create, 201
//	GET    path/:id   read one
//	PUT    path/:id   update
//	DELETE path/:id   delete
func (r *Resource[T, ID]) Register(rt router.Router, path string, middleware ...router.MiddlewareFunc) {
	path = "/" + strings.Trim(path, "/")
	item := path + "/:id"

	rt.GET(path, withRoute(path, r.List), middleware...)
	rt.POST(path, withRoute(path, r.Create), middleware...)
	rt.GET(item, withRoute(item, r.ReadOne), middleware...)
	rt.PUT(item, withRoute(item, r.Update), middleware...)
	rt.DELETE(item, withRoute(item, r.Delete), middleware...)
}

// withRoute records the pattern before the handler runs so that middleware wrapping the
// route sees it once the handler returns.
func withRoute(pattern string, h router.HandlerFunc) router.HandlerFunc {
	return func(c router.Context) error {
		c.Set(router.RouteKey, pattern)
		return h(c)
	}
}

// List handles GET on the collection.
func (r *Resource[T, ID]) List(c router.Context) error {
	values := c.QueryValues()
	page, err := r.orchestrator.ReadMany(c.Request().Context(), values)
	if err != nil {
		return WriteError(c, err)
	}
	body, err := ProjectPage(page, query.SelectFields(values))
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, body)
}

// ReadOne handles GET on a single entity.
func (r *Resource[T, ID]) ReadOne(c router.Context) error {
	id, err := r.parseID(c.Param("id"))
	if err != nil {
		return WriteError(c, err)
	}
	result, err := r.orchestrator.ReadOne(c.Request().Context(), id)
	if err != nil {
		return WriteError(c, err)
	}
	return r.respond(c, http.StatusOK, result)
}

// Create handles POST on the collection.
func (r *Resource[T, ID]) Create(c router.Context) error {
	input, err := r.decode(c)
	if err != nil {
		return WriteError(c, err)
	}
	result, err := r.orchestrator.Create(c.Request().Context(), input)
	if err != nil {
		return WriteError(c, err)
	}
	return r.respond(c, http.StatusCreated, result)
}

// Update handles PUT on a single entity.
func (r *Resource[T, ID]) Update(c router.Context) error {
	id, err := r.parseID(c.Param("id"))
	if err != nil {
		return WriteError(c, err)
	}
	input, err := r.decode(c)
	if err != nil {
		return WriteError(c, err)
	}
	result, err := r.orchestrator.Update(c.Request().Context(), id, input)
	if err != nil {
		return WriteError(c, err)
	}
	return r.respond(c, http.StatusOK, result)
}

// Delete handles DELETE on a single entity and returns the removed entity.
func (r *Resource[T, ID]) Delete(c router.Context) error {
	id, err := r.parseID(c.Param("id"))
	if err != nil {
		return WriteError(c, err)
	}
	result, err := r.orchestrator.Delete(c.Request().Context(), id)
	if err != nil {
		return WriteError(c, err)
	}
	return r.respond(c, http.StatusOK, result)
}

func (r *Resource[T, ID]) decode(c router.Context) (*T, error) {
	input := new(T)
	if err := c.Bind(input); err != nil {
		return nil, err
	}
	if err := ValidatePayload(input); err != nil {
		return nil, err
	}
	return input, nil
}

func (r *Resource[T, ID]) respond(c router.Context, status int, result interface{}) error {
	body, err := Project(result, query.SelectFields(c.QueryValues()))
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(status, body)
}
