package resource

import (
	"context"

	"github.com/nimburion/crudkit/pkg/query"
)

// Hooks runs integrator code before and after each operation. Before-hooks run even when the
// request is later rejected by the ACL; after-hooks run only once the gateway call succeeded,
// and their result is what the caller receives.
type Hooks[T any, ID comparable] interface {
	// BeforeCreate may transform the payload; the ACL checks the transformed value.
	BeforeCreate(ctx context.Context, item *T) (*T, error)
	// BeforeReadOne is a side effect only, e.g. auditing.
	BeforeReadOne(ctx context.Context, id ID) error
	// BeforeReadMany may rewrite the plan, e.g. to inject tenant scoping.
	BeforeReadMany(ctx context.Context, plan query.Plan) (query.Plan, error)
	// BeforeUpdate may transform the replacement payload.
	BeforeUpdate(ctx context.Context, id ID, item *T) (*T, error)
	// BeforeDelete is a side effect only.
	BeforeDelete(ctx context.Context, id ID) error

	AfterCreate(ctx context.Context, item *T) (any, error)
	AfterReadOne(ctx context.Context, item *T) (any, error)
	AfterReadMany(ctx context.Context, page Page[T]) (Page[T], error)
	AfterUpdate(ctx context.Context, old, new *T) (any, error)
	AfterDelete(ctx context.Context, item *T) (any, error)
}

// DefaultHooks passes every value through unchanged. Embed it to override selected hooks.
type DefaultHooks[T any, ID comparable] struct{}

func (DefaultHooks[T, ID]) BeforeCreate(_ context.Context, item *T) (*T, error) { return item, nil }
func (DefaultHooks[T, ID]) BeforeReadOne(context.Context, ID) error             { return nil }
func (DefaultHooks[T, ID]) BeforeReadMany(_ context.Context, plan query.Plan) (query.Plan, error) {
	return plan, nil
}
func (DefaultHooks[T, ID]) BeforeUpdate(_ context.Context, _ ID, item *T) (*T, error) {
	return item, nil
}
func (DefaultHooks[T, ID]) BeforeDelete(context.Context, ID) error { return nil }

func (DefaultHooks[T, ID]) AfterCreate(_ context.Context, item *T) (any, error)  { return item, nil }
func (DefaultHooks[T, ID]) AfterReadOne(_ context.Context, item *T) (any, error) { return item, nil }
func (DefaultHooks[T, ID]) AfterReadMany(_ context.Context, page Page[T]) (Page[T], error) {
	return page, nil
}
func (DefaultHooks[T, ID]) AfterUpdate(_ context.Context, _, new *T) (any, error) { return new, nil }
func (DefaultHooks[T, ID]) AfterDelete(_ context.Context, item *T) (any, error)   { return item, nil }

// HookChain runs several Hooks in order. Transforming before-hooks and AfterReadMany thread
// their value through the chain. The other after-hooks all receive the entity and the last
// hook's result is returned.
type HookChain[T any, ID comparable] []Hooks[T, ID]

func (c HookChain[T, ID]) BeforeCreate(ctx context.Context, item *T) (*T, error) {
	var err error
	for _, h := range c {
		if item, err = h.BeforeCreate(ctx, item); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (c HookChain[T, ID]) BeforeReadOne(ctx context.Context, id ID) error {
	for _, h := range c {
		if err := h.BeforeReadOne(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (c HookChain[T, ID]) BeforeReadMany(ctx context.Context, plan query.Plan) (query.Plan, error) {
	var err error
	for _, h := range c {
		if plan, err = h.BeforeReadMany(ctx, plan); err != nil {
			return query.Plan{}, err
		}
	}
	return plan, nil
}

func (c HookChain[T, ID]) BeforeUpdate(ctx context.Context, id ID, item *T) (*T, error) {
	var err error
	for _, h := range c {
		if item, err = h.BeforeUpdate(ctx, id, item); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (c HookChain[T, ID]) BeforeDelete(ctx context.Context, id ID) error {
	for _, h := range c {
		if err := h.BeforeDelete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (c HookChain[T, ID]) AfterCreate(ctx context.Context, item *T) (any, error) {
	return c.after(item, func(h Hooks[T, ID]) (any, error) { return h.AfterCreate(ctx, item) })
}

func (c HookChain[T, ID]) AfterReadOne(ctx context.Context, item *T) (any, error) {
	return c.after(item, func(h Hooks[T, ID]) (any, error) { return h.AfterReadOne(ctx, item) })
}

func (c HookChain[T, ID]) AfterReadMany(ctx context.Context, page Page[T]) (Page[T], error) {
	var err error
	for _, h := range c {
		if page, err = h.AfterReadMany(ctx, page); err != nil {
			return Page[T]{}, err
		}
	}
	return page, nil
}

func (c HookChain[T, ID]) AfterUpdate(ctx context.Context, old, new *T) (any, error) {
	return c.after(new, func(h Hooks[T, ID]) (any, error) { return h.AfterUpdate(ctx, old, new) })
}

func (c HookChain[T, ID]) AfterDelete(ctx context.Context, item *T) (any, error) {
	return c.after(item, func(h Hooks[T, ID]) (any, error) { return h.AfterDelete(ctx, item) })
}

func (c HookChain[T, ID]) after(item *T, call func(Hooks[T, ID]) (any, error)) (any, error) {
	var result any = item
	for _, h := range c {
		out, err := call(h)
		if err != nil {
			return nil, err
		}
		result = out
	}
	return result, nil
}
