package resource

import "context"

// ACL answers authorization questions for each lifecycle point. Implementations must be pure
// predicates: no side effects and no mutation of their arguments.
type ACL[T any] interface {
	CanCreate(ctx context.Context, item *T) bool
	CanReadOne(ctx context.Context, item *T) bool
	CanReadMany(ctx context.Context) bool
	CanUpdate(ctx context.Context, old, new *T) bool
	CanDelete(ctx context.Context, item *T) bool
}

// DefaultACL allows everything. Embed it to override selected checks.
type DefaultACL[T any] struct{}

func (DefaultACL[T]) CanCreate(context.Context, *T) bool     { return true }
func (DefaultACL[T]) CanReadOne(context.Context, *T) bool    { return true }
func (DefaultACL[T]) CanReadMany(context.Context) bool       { return true }
func (DefaultACL[T]) CanUpdate(context.Context, *T, *T) bool { return true }
func (DefaultACL[T]) CanDelete(context.Context, *T) bool     { return true }

// ACLFuncs builds an ACL from optional functions; a nil function allows the operation.
type ACLFuncs[T any] struct {
	Create   func(ctx context.Context, item *T) bool
	ReadOne  func(ctx context.Context, item *T) bool
	ReadMany func(ctx context.Context) bool
	Update   func(ctx context.Context, old, new *T) bool
	Delete   func(ctx context.Context, item *T) bool
}

func (a ACLFuncs[T]) CanCreate(ctx context.Context, item *T) bool {
	return a.Create == nil || a.Create(ctx, item)
}

func (a ACLFuncs[T]) CanReadOne(ctx context.Context, item *T) bool {
	return a.ReadOne == nil || a.ReadOne(ctx, item)
}

func (a ACLFuncs[T]) CanReadMany(ctx context.Context) bool {
	return a.ReadMany == nil || a.ReadMany(ctx)
}

func (a ACLFuncs[T]) CanUpdate(ctx context.Context, old, new *T) bool {
	return a.Update == nil || a.Update(ctx, old, new)
}

func (a ACLFuncs[T]) CanDelete(ctx context.Context, item *T) bool {
	return a.Delete == nil || a.Delete(ctx, item)
}

// AllOf allows an operation only when every ACL allows it.
func AllOf[T any](acls ...ACL[T]) ACL[T] {
	return allOf[T](acls)
}

type allOf[T any] []ACL[T]

func (all allOf[T]) CanCreate(ctx context.Context, item *T) bool {
	for _, acl := range all {
		if !acl.CanCreate(ctx, item) {
			return false
		}
	}
	return true
}

func (all allOf[T]) CanReadOne(ctx context.Context, item *T) bool {
	for _, acl := range all {
		if !acl.CanReadOne(ctx, item) {
			return false
		}
	}
	return true
}

func (all allOf[T]) CanReadMany(ctx context.Context) bool {
	for _, acl := range all {
		if !acl.CanReadMany(ctx) {
			return false
		}
	}
	return true
}

func (all allOf[T]) CanUpdate(ctx context.Context, old, new *T) bool {
	for _, acl := range all {
		if !acl.CanUpdate(ctx, old, new) {
			return false
		}
	}
	return true
}

func (all allOf[T]) CanDelete(ctx context.Context, item *T) bool {
	for _, acl := range all {
		if !acl.CanDelete(ctx, item) {
			return false
		}
	}
	return true
}
