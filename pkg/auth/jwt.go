// Package auth validates HMAC-signed JWT bearer tokens and authorizes resource operations
// from the scopes they carry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nimburion/crudkit/pkg/observability/logger"
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 32

// JWTValidator validates JWT tokens and extracts claims.
type JWTValidator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// HMACValidator validates HS256/HS384/HS512 tokens against a shared secret. Issuer and audience
// are only checked when configured.
type HMACValidator struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	logger   logger.Logger
}

// HMACOption configures an HMACValidator.
type HMACOption func(*HMACValidator)

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) HMACOption {
	return func(v *HMACValidator) { v.issuer = strings.TrimSpace(issuer) }
}

// WithAudience requires aud to contain audience.
func WithAudience(audience string) HMACOption {
	return func(v *HMACValidator) { v.audience = strings.TrimSpace(audience) }
}

// WithLeeway tolerates clock skew when checking exp, nbf and iat.
func WithLeeway(d time.Duration) HMACOption {
	return func(v *HMACValidator) { v.leeway = d }
}

// WithLogger sets the logger used for debug output.
func WithLogger(log logger.Logger) HMACOption {
	return func(v *HMACValidator) {
		if log != nil {
			v.logger = log
		}
	}
}

// NewHMACValidator creates a validator for secret.
func NewHMACValidator(secret string, opts ...HMACOption) (*HMACValidator, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("hmac secret must be at least %d bytes", MinSecretLength)
	}
	v := &HMACValidator{secret: []byte(secret), logger: logger.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Validate verifies the signature and registered claims of token and extracts its claims.
func (v *HMACValidator) Validate(_ context.Context, tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to parse claims")
	}
	claims := extractClaims(mapClaims)
	v.logger.Debug("token validated", "subject", claims.Subject, "issuer", claims.Issuer)
	return claims, nil
}

// HMACSigner issues tokens accepted by an HMACValidator with the same settings.
type HMACSigner struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewHMACSigner creates a signer for secret.
func NewHMACSigner(secret, issuer, audience string) (*HMACSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("hmac secret must be at least %d bytes", MinSecretLength)
	}
	return &HMACSigner{secret: []byte(secret), issuer: issuer, audience: audience, now: time.Now}, nil
}

// Sign returns an HS256 token for claims that expires after ttl.
func (s *HMACSigner) Sign(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	now := s.now()
	mc := jwt.MapClaims{
		"sub": claims.Subject,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
	}
	for k, val := range claims.Custom {
		mc[k] = val
	}
	if s.issuer != "" {
		mc["iss"] = s.issuer
	}
	if s.audience != "" {
		mc["aud"] = s.audience
	}
	if claims.TenantID != "" {
		mc["tenant_id"] = claims.TenantID
	}
	if len(claims.Scopes) > 0 {
		mc["scope"] = strings.Join(claims.Scopes, " ")
	}
	if len(claims.Roles) > 0 {
		mc["roles"] = claims.Roles
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(s.secret)
}

var registeredClaims = map[string]bool{
	"sub": true, "iss": true, "aud": true, "exp": true, "iat": true, "nbf": true, "jti": true,
	"scope": true, "scopes": true, "permissions": true, "role": true, "roles": true,
	"tenant_id": true, "tenantId": true,
}

func extractClaims(mc jwt.MapClaims) *Claims {
	claims := &Claims{Custom: map[string]interface{}{}}
	claims.Subject, _ = mc.GetSubject()
	claims.Issuer, _ = mc.GetIssuer()
	claims.Audience, _ = mc.GetAudience()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	claims.TenantID = firstString(mc, "tenant_id", "tenantId")
	claims.Scopes = dedupeStrings(stringsFrom(mc, "scope", "scopes", "permissions"))
	claims.Roles = dedupeStrings(stringsFrom(mc, "role", "roles"))

	for key, value := range mc {
		if !registeredClaims[key] {
			claims.Custom[key] = value
		}
	}
	return claims
}

func firstString(mc jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if s, ok := mc[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// stringsFrom collects values from space-delimited strings and string arrays under keys.
func stringsFrom(mc jwt.MapClaims, keys ...string) []string {
	var out []string
	for _, key := range keys {
		switch typed := mc[key].(type) {
		case string:
			out = append(out, strings.Fields(typed)...)
		case []string:
			out = append(out, typed...)
		case []interface{}:
			for _, item := range typed {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	deduped := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || slices.Contains(deduped, trimmed) {
			continue
		}
		deduped = append(deduped, trimmed)
	}
	return deduped
}
