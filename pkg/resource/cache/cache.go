// Package cache decorates a resource.Gateway with a read-through cache for single entity
// reads. Collection reads always go to the wrapped gateway.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/observability/tracing"
	"github.com/nimburion/crudkit/pkg/query"
	"github.com/nimburion/crudkit/pkg/resource"
)

// Cache lookup results reported to a ResultRecorder.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Store is a byte-oriented key/value store with expiry. The redis store adapter satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ResultRecorder receives one result per cache lookup.
type ResultRecorder interface {
	RecordCacheResult(resource, result string)
}

// Config configures a cached gateway.
type Config[T any, ID comparable] struct {
	// Name scopes cache keys, usually the resource name.
	Name string
	// TTL bounds how long an entry is served. Zero keeps entries until invalidated.
	TTL time.Duration
	// Prefix is prepended to every key.
	Prefix string
	// IDs reads identifiers from entities. Defaults to the Identifiable implementation.
	IDs     resource.IDAccessor[T, ID]
	Logger  logger.Logger
	Metrics ResultRecorder
}

// Gateway caches ReadOne results of the wrapped gateway as JSON. Entries are written on
// Create and on a cache miss, and removed after Update and Delete.
type Gateway[T any, ID comparable] struct {
	next    resource.Gateway[T, ID]
	store   Store
	name    string
	prefix  string
	ttl     time.Duration
	ids     resource.IDAccessor[T, ID]
	log     logger.Logger
	metrics ResultRecorder
}

// New wraps next with a cache held in store.
func New[T any, ID comparable](next resource.Gateway[T, ID], store Store, cfg Config[T, ID]) (*Gateway[T, ID], error) {
	if next == nil {
		return nil, errors.New("cache: gateway is required")
	}
	if store == nil {
		return nil, errors.New("cache: store is required")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("cache: name is required")
	}
	ids := cfg.IDs
	if ids == nil {
		var err error
		if ids, err = resource.IdentifiableAccessor[T, ID](); err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Gateway[T, ID]{
		next:    next,
		store:   store,
		name:    cfg.Name,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		ids:     ids,
		log:     log,
		metrics: cfg.Metrics,
	}, nil
}

// Key returns the cache key for id.
func (g *Gateway[T, ID]) Key(id ID) string {
	if g.prefix == "" {
		return fmt.Sprintf("%s:%v", g.name, id)
	}
	return fmt.Sprintf("%s:%s:%v", g.prefix, g.name, id)
}

// Read is never cached.
func (g *Gateway[T, ID]) Read(ctx context.Context, plan query.Plan) (resource.Page[T], error) {
	return g.next.Read(ctx, plan)
}

// ReadOne serves id from the cache, falling back to the wrapped gateway on a miss or when the
// cache is unavailable. Missing entities are not cached.
func (g *Gateway[T, ID]) ReadOne(ctx context.Context, id ID) (*T, error) {
	key := g.Key(id)
	if entity, ok := g.lookup(ctx, key); ok {
		return entity, nil
	}

	entity, err := g.next.ReadOne(ctx, id)
	if err != nil || entity == nil {
		return entity, err
	}
	g.put(ctx, key, entity)
	return entity, nil
}

func (g *Gateway[T, ID]) lookup(ctx context.Context, key string) (entity *T, hit bool) {
	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheGet, tracing.WithCacheKey(key))
	var err error
	defer func() { tracing.End(span, err) }()

	raw, found, err := g.store.Get(ctx, key)
	if err != nil {
		g.record(ResultError)
		g.log.WithContext(ctx).Warn("cache lookup failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		g.record(ResultMiss)
		return nil, false
	}

	var decoded T
	if uErr := json.Unmarshal(raw, &decoded); uErr != nil {
		g.record(ResultError)
		g.log.WithContext(ctx).Warn("discarding undecodable cache entry", "key", key, "error", uErr)
		g.invalidate(ctx, key)
		return nil, false
	}
	g.record(ResultHit)
	return &decoded, true
}

// Create stores the created entity so the next read is served from the cache.
func (g *Gateway[T, ID]) Create(ctx context.Context, entity *T) (*T, error) {
	created, err := g.next.Create(ctx, entity)
	if err != nil || created == nil {
		return created, err
	}
	g.put(ctx, g.Key(g.ids.GetID(created)), created)
	return created, nil
}

// Update writes through the wrapped gateway and removes the cached entry.
func (g *Gateway[T, ID]) Update(ctx context.Context, entity *T) (*T, error) {
	updated, err := g.next.Update(ctx, entity)
	if err != nil {
		return nil, err
	}
	g.invalidate(ctx, g.Key(g.ids.GetID(entity)))
	return updated, nil
}

// Delete removes the entity and its cached entry.
func (g *Gateway[T, ID]) Delete(ctx context.Context, entity *T) error {
	if err := g.next.Delete(ctx, entity); err != nil {
		return err
	}
	g.invalidate(ctx, g.Key(g.ids.GetID(entity)))
	return nil
}

func (g *Gateway[T, ID]) put(ctx context.Context, key string, entity *T) {
	raw, err := json.Marshal(entity)
	if err != nil {
		g.log.WithContext(ctx).Warn("entity is not cacheable", "key", key, "error", err)
		return
	}
	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheSet, tracing.WithCacheKey(key))
	err = g.store.Set(ctx, key, raw, g.ttl)
	tracing.End(span, err)
	if err != nil {
		g.log.WithContext(ctx).Warn("cache write failed", "key", key, "error", err)
	}
}

// invalidate failures are logged: the write already happened and entries expire after TTL.
func (g *Gateway[T, ID]) invalidate(ctx context.Context, key string) {
	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheDel, tracing.WithCacheKey(key))
	err := g.store.Delete(ctx, key)
	tracing.End(span, err)
	if err != nil {
		g.log.WithContext(ctx).Error("cache invalidation failed", "key", key, "error", err)
	}
}

func (g *Gateway[T, ID]) record(result string) {
	if g.metrics != nil {
		g.metrics.RecordCacheResult(g.name, result)
	}
}
