// Package document provides a resource.Gateway over a MongoDB collection. Query plans are
// compiled to bson filters and find options.
package document

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/observability/tracing"
	"github.com/nimburion/crudkit/pkg/query"
	"github.com/nimburion/crudkit/pkg/resource"
)

// Collection is the subset of *mongo.Collection used by the gateway.
type Collection interface {
	Name() string
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// MongoGateway stores entities of type T as documents. The identifier field must be tagged
// bson:"_id"; plans address it as "id".
type MongoGateway[T any, ID comparable] struct {
	collection Collection
	ids        resource.IDAccessor[T, ID]
	nextID     func() ID
	fields     map[string]string
}

// Option configures a MongoGateway.
type Option[T any, ID comparable] func(*MongoGateway[T, ID])

// WithIDs sets the identifier accessor for entity types that do not implement
// resource.Identifiable.
func WithIDs[T any, ID comparable](ids resource.IDAccessor[T, ID]) Option[T, ID] {
	return func(g *MongoGateway[T, ID]) { g.ids = ids }
}

// WithIDGenerator assigns identifiers to entities created with a zero identifier.
func WithIDGenerator[T any, ID comparable](next func() ID) Option[T, ID] {
	return func(g *MongoGateway[T, ID]) { g.nextID = next }
}

// NewMongoGateway creates a gateway over collection.
func NewMongoGateway[T any, ID comparable](collection Collection, opts ...Option[T, ID]) (*MongoGateway[T, ID], error) {
	if collection == nil {
		return nil, errors.New("mongodb collection is required")
	}
	fields, err := documentFields(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	g := &MongoGateway[T, ID]{collection: collection, fields: fields}
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

// documentFields maps query field names to document keys following the bson tag rules: the
// tag name, or the lowercased Go field name. The "_id" key is also reachable as "id".
func documentFields(t reflect.Type) (map[string]string, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("document gateway requires a struct entity, got %s", t)
	}
	fields := map[string]string{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		key, _, _ := strings.Cut(field.Tag.Get("bson"), ",")
		if key == "-" {
			continue
		}
		if key == "" {
			key = strings.ToLower(field.Name)
		}
		fields[key] = key
		if key == "_id" {
			fields["id"] = key
		}
	}
	if _, ok := fields["_id"]; !ok {
		return nil, fmt.Errorf("%s has no field tagged bson:\"_id\"", t)
	}
	return fields, nil
}

// Read runs the find and count commands for plan.
func (g *MongoGateway[T, ID]) Read(ctx context.Context, plan query.Plan) (page resource.Page[T], err error) {
	filter, err := BuildFilter(plan, g.fields)
	if err != nil {
		return page, err
	}
	findOpts, err := FindOptions(plan, g.fields)
	if err != nil {
		return page, err
	}

	ctx, span := g.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { tracing.End(span, err) }()

	cursor, err := g.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return page, fmt.Errorf("failed to find documents: %w", err)
	}
	items := []T{}
	if err := cursor.All(ctx, &items); err != nil {
		return page, fmt.Errorf("failed to decode documents: %w", err)
	}

	total, err := g.collection.CountDocuments(ctx, filter)
	if err != nil {
		return page, fmt.Errorf("failed to count documents: %w", err)
	}

	return resource.Page[T]{
		Items:      items,
		TotalCount: total,
		PageNo:     plan.PageNo,
		PageSize:   plan.PageSize,
	}, nil
}

// ReadOne returns the document with the given id, or nil when none exists.
func (g *MongoGateway[T, ID]) ReadOne(ctx context.Context, id ID) (entity *T, err error) {
	ctx, span := g.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { tracing.End(span, err) }()

	out := new(T)
	err = g.collection.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return out, nil
}

// Create inserts entity, assigning an identifier when it has none.
func (g *MongoGateway[T, ID]) Create(ctx context.Context, entity *T) (created *T, err error) {
	item := *entity
	var zero ID
	if g.ids.GetID(&item) == zero {
		if g.nextID == nil {
			return nil, apperror.Validation("id is required", nil)
		}
		g.ids.SetID(&item, g.nextID())
	}

	ctx, span := g.span(ctx, tracing.SpanOperationDBInsert)
	defer func() { tracing.End(span, err) }()

	if _, err := g.collection.InsertOne(ctx, &item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			id := g.ids.GetID(&item)
			return nil, apperror.Conflict(fmt.Sprintf("document %v already exists", id), map[string]interface{}{"id": id})
		}
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}
	return &item, nil
}

// Update replaces the document carrying the identifier of entity.
func (g *MongoGateway[T, ID]) Update(ctx context.Context, entity *T) (updated *T, err error) {
	item := *entity
	id := g.ids.GetID(&item)

	ctx, span := g.span(ctx, tracing.SpanOperationDBUpdate)
	defer func() { tracing.End(span, err) }()

	result, err := g.collection.ReplaceOne(ctx, bson.M{"_id": id}, &item)
	if err != nil {
		return nil, fmt.Errorf("failed to replace document: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, notFound(id)
	}
	return &item, nil
}

// Delete removes the document carrying the identifier of entity.
func (g *MongoGateway[T, ID]) Delete(ctx context.Context, entity *T) (err error) {
	id := g.ids.GetID(entity)

	ctx, span := g.span(ctx, tracing.SpanOperationDBDelete)
	defer func() { tracing.End(span, err) }()

	result, err := g.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (g *MongoGateway[T, ID]) span(ctx context.Context, op tracing.SpanOperation) (context.Context, trace.Span) {
	return tracing.StartDatabaseSpan(ctx, op, tracing.WithDBSystem("mongodb"), tracing.WithDBTable(g.collection.Name()))
}

func notFound(id interface{}) error {
	return apperror.NotFound(fmt.Sprintf("document %v not found", id)).
		WithDetails(map[string]interface{}{"id": id}).
		WithSentinel(resource.ErrNotFound)
}
