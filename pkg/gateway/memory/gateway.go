// Package memory provides an in-process resource.Gateway that evaluates query plans against
// entities held in a map. It backs tests, demos and the "memory" database type.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/query"
	"github.com/nimburion/crudkit/pkg/resource"
)

// Gateway stores entities by identifier. It is safe for concurrent use.
type Gateway[T any, ID comparable] struct {
	mu     sync.RWMutex
	items  map[ID]T
	order  []ID
	ids    resource.IDAccessor[T, ID]
	nextID IDGenerator[ID]
	fields fieldIndex
}

// Option configures a Gateway.
type Option[T any, ID comparable] func(*Gateway[T, ID])

// WithIDs sets the identifier accessor for entity types that do not implement
// resource.Identifiable.
func WithIDs[T any, ID comparable](ids resource.IDAccessor[T, ID]) Option[T, ID] {
	return func(g *Gateway[T, ID]) { g.ids = ids }
}

// WithIDGenerator assigns identifiers to entities created with a zero identifier.
func WithIDGenerator[T any, ID comparable](next IDGenerator[ID]) Option[T, ID] {
	return func(g *Gateway[T, ID]) { g.nextID = next }
}

// New creates an empty gateway.
func New[T any, ID comparable](opts ...Option[T, ID]) (*Gateway[T, ID], error) {
	fields, err := indexFields(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	g := &Gateway[T, ID]{
		items:  map[ID]T{},
		fields: fields,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.ids == nil {
		ids, err := resource.IdentifiableAccessor[T, ID]()
		if err != nil {
			return nil, err
		}
		g.ids = ids
	}
	return g, nil
}

// Read filters, sorts and pages the stored entities.
func (g *Gateway[T, ID]) Read(ctx context.Context, plan query.Plan) (resource.Page[T], error) {
	if err := ctx.Err(); err != nil {
		return resource.Page[T]{}, err
	}
	conds, err := g.compile(plan.Predicates)
	if err != nil {
		return resource.Page[T]{}, err
	}
	sortPath, ok := g.fields[plan.Sort.Field]
	if !ok {
		return resource.Page[T]{}, unknownField(plan.Sort.Field)
	}

	g.mu.RLock()
	matched := make([]T, 0, len(g.order))
	for _, id := range g.order {
		item := g.items[id]
		ok, err := matchAll(conds, reflect.ValueOf(&item).Elem())
		if err != nil {
			g.mu.RUnlock()
			return resource.Page[T]{}, err
		}
		if ok {
			matched = append(matched, item)
		}
	}
	g.mu.RUnlock()

	sortItems(matched, sortPath, plan.Sort.Descending())

	page := resource.Page[T]{
		Items:      []T{},
		TotalCount: int64(len(matched)),
		PageNo:     plan.PageNo,
		PageSize:   plan.PageSize,
	}
	start := plan.Offset()
	if start < len(matched) {
		end := len(matched)
		if limit := plan.Limit(); limit > 0 && start+limit < end {
			end = start + limit
		}
		page.Items = append(page.Items, matched[start:end]...)
	}
	return page, nil
}

func matchAll(conds []condition, entity reflect.Value) (bool, error) {
	for _, c := range conds {
		ok, err := c.matches(entity)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// sortItems orders nulls and unsupported kinds first, then by value. Ties keep insertion order.
func sortItems[T any](items []T, path []int, descending bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, _ := valueOf(reflect.ValueOf(&items[i]).Elem().FieldByIndex(path))
		b, _ := valueOf(reflect.ValueOf(&items[j]).Elem().FieldByIndex(path))
		cmp := order(a, b)
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

func order(a, b query.Value) int {
	if cmp, ok := compare(a, b); ok {
		return cmp
	}
	return rank(a) - rank(b)
}

func rank(v query.Value) int {
	switch v.Kind() {
	case query.KindNull:
		return 0
	case query.KindInt:
		return 1
	case query.KindString:
		return 2
	}
	return 3
}

// ReadOne returns a copy of the stored entity, or nil when it does not exist.
func (g *Gateway[T, ID]) ReadOne(ctx context.Context, id ID) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	item, ok := g.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// Create stores a copy of entity, assigning an identifier when it has none.
func (g *Gateway[T, ID]) Create(ctx context.Context, entity *T) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item := *entity

	g.mu.Lock()
	defer g.mu.Unlock()

	var zero ID
	id := g.ids.GetID(&item)
	if id == zero {
		if g.nextID == nil {
			return nil, apperror.Validation("id is required", nil)
		}
		id = g.nextID()
		g.ids.SetID(&item, id)
	}
	if _, exists := g.items[id]; exists {
		return nil, apperror.Conflict(fmt.Sprintf("entity %v already exists", id), map[string]interface{}{"id": id})
	}
	g.items[id] = item
	g.order = append(g.order, id)
	return &item, nil
}

// Update replaces the stored entity carrying the same identifier.
func (g *Gateway[T, ID]) Update(ctx context.Context, entity *T) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item := *entity
	id := g.ids.GetID(&item)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.items[id]; !exists {
		return nil, apperror.NotFound(fmt.Sprintf("entity %v not found", id))
	}
	g.items[id] = item
	return &item, nil
}

// Delete removes the stored entity carrying the identifier of entity.
func (g *Gateway[T, ID]) Delete(ctx context.Context, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := g.ids.GetID(entity)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.items[id]; !exists {
		return apperror.NotFound(fmt.Sprintf("entity %v not found", id))
	}
	delete(g.items, id)
	for i, stored := range g.order {
		if stored == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of stored entities.
func (g *Gateway[T, ID]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.items)
}
