package auth

import (
	"context"
	"strings"

	"github.com/nimburion/crudkit/pkg/resource"
)

// OwnerFunc returns the subject that owns item.
type OwnerFunc[T any] func(item *T) string

// ScopeACL authorizes resource operations from the claims stored in the request context.
// Reads require "<prefix>:read" and writes require "<prefix>:write". When Owner is set,
// single-entity operations additionally require the caller to own the entity unless the
// caller holds one of AdminRoles. A request without claims is denied.
type ScopeACL[T any] struct {
	Prefix     string
	Owner      OwnerFunc[T]
	AdminRoles []string
}

var _ resource.ACL[struct{}] = ScopeACL[struct{}]{}

// NewScopeACL returns a ScopeACL for prefix, e.g. "notes".
func NewScopeACL[T any](prefix string) ScopeACL[T] {
	return ScopeACL[T]{Prefix: strings.TrimSpace(prefix)}
}

// ReadScope returns the scope required for reads.
func (a ScopeACL[T]) ReadScope() string { return a.Prefix + ":read" }

// WriteScope returns the scope required for writes.
func (a ScopeACL[T]) WriteScope() string { return a.Prefix + ":write" }

func (a ScopeACL[T]) CanCreate(ctx context.Context, item *T) bool {
	return a.allowed(ctx, a.WriteScope(), item)
}

func (a ScopeACL[T]) CanReadOne(ctx context.Context, item *T) bool {
	return a.allowed(ctx, a.ReadScope(), item)
}

func (a ScopeACL[T]) CanReadMany(ctx context.Context) bool {
	return GetClaims(ctx).HasScope(a.ReadScope())
}

func (a ScopeACL[T]) CanUpdate(ctx context.Context, old, _ *T) bool {
	return a.allowed(ctx, a.WriteScope(), old)
}

func (a ScopeACL[T]) CanDelete(ctx context.Context, item *T) bool {
	return a.allowed(ctx, a.WriteScope(), item)
}

func (a ScopeACL[T]) allowed(ctx context.Context, scope string, item *T) bool {
	claims := GetClaims(ctx)
	if !claims.HasScope(scope) {
		return false
	}
	if a.Owner == nil || item == nil {
		return true
	}
	for _, role := range a.AdminRoles {
		if claims.HasRole(role) {
			return true
		}
	}
	return claims.Subject != "" && a.Owner(item) == claims.Subject
}
