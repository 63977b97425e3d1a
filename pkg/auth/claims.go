package auth

import (
	"context"
	"slices"
	"time"
)

// Claims represents the extracted claims from a validated JWT token.
type Claims struct {
	Subject   string                 // Subject (sub) - typically user ID
	Issuer    string                 // Issuer (iss) - token issuer
	Audience  []string               // Audience (aud) - intended recipients
	ExpiresAt time.Time              // Expiration time (exp)
	IssuedAt  time.Time              // Issued at (iat)
	TenantID  string                 // Tenant identifier (tenant_id)
	Scopes    []string               // OAuth2 scopes
	Roles     []string               // Roles extracted from role/roles claims
	Custom    map[string]interface{} // Custom claims
}

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool {
	return c != nil && slices.Contains(c.Scopes, scope)
}

// HasRole reports whether role was granted.
func (c *Claims) HasRole(role string) bool {
	return c != nil && slices.Contains(c.Roles, role)
}

// claimsContextKey is the context key for storing claims.
type claimsContextKey struct{}

// WithClaims stores claims in the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// GetClaims retrieves claims from the context.
// Returns nil if no claims are found.
func GetClaims(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsContextKey{}).(*Claims); ok {
		return claims
	}
	return nil
}
