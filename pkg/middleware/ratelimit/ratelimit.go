// Package ratelimit throttles requests per client with a token bucket.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/auth"
	"github.com/nimburion/crudkit/pkg/controller"
	"github.com/nimburion/crudkit/pkg/server/router"
)

// Limiter decides whether a request for key may proceed. Implementations must be safe for
// concurrent use.
type Limiter interface {
	Allow(key string) bool
}

// TokenBucketLimiter keeps one token bucket per key.
type TokenBucketLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewTokenBucketLimiter allows requestsPerSecond on average per key with bursts up to burst.
// A burst lower than one is raised to requestsPerSecond.
func NewTokenBucketLimiter(requestsPerSecond, burst int) *TokenBucketLimiter {
	if burst < 1 {
		burst = requestsPerSecond
	}
	return &TokenBucketLimiter{rate: rate.Limit(requestsPerSecond), burst: burst}
}

// Allow consumes one token from the bucket of key.
func (l *TokenBucketLimiter) Allow(key string) bool {
	if existing, ok := l.limiters.Load(key); ok {
		return existing.(*rate.Limiter).Allow()
	}
	limiter, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	return limiter.(*rate.Limiter).Allow()
}

// KeyFunc extracts the throttling key of a request.
type KeyFunc func(router.Context) string

// RateLimit rejects requests over the limit with 429 and a Retry-After header. A nil keyFunc
// uses ClientKey.
func RateLimit(limiter Limiter, keyFunc KeyFunc) router.MiddlewareFunc {
	if keyFunc == nil {
		keyFunc = ClientKey
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if !limiter.Allow(keyFunc(c)) {
				c.Response().Header().Set("Retry-After", "1")
				return controller.WriteError(c, apperror.New("http.rate_limited", nil, nil).
					WithMessage("rate limit exceeded").
					WithHTTPStatus(http.StatusTooManyRequests))
			}
			return next(c)
		}
	}
}

// ClientKey keys authenticated requests by subject and anonymous ones by client IP.
func ClientKey(c router.Context) string {
	if claims := auth.GetClaims(c.Request().Context()); claims != nil && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	return "ip:" + ClientIP(c.Request())
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then the host of
// RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
