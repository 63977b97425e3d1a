package resource

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/query"
)

// Operation names one of the five orchestrated operations.
type Operation string

// Operations
const (
	OpReadMany Operation = "read_many"
	OpReadOne  Operation = "read_one"
	OpCreate   Operation = "create"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
)

// Outcome labels attached to metrics and spans.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// Recorder receives one observation per finished operation.
type Recorder interface {
	ObserveOperation(resource, operation, outcome string, duration time.Duration)
}

// Config wires the collaborators of an Orchestrator. Only the gateway passed to
// NewOrchestrator is mandatory.
type Config[T any, ID comparable] struct {
	// Name identifies the resource in errors, logs, metrics and spans. Defaults to "resource".
	Name string
	// ACL defaults to DefaultACL.
	ACL ACL[T]
	// Hooks defaults to DefaultHooks.
	Hooks Hooks[T, ID]
	// Parser defaults to query.NewParser().
	Parser *query.Parser
	// IDs defaults to IdentifiableAccessor.
	IDs     IDAccessor[T, ID]
	Logger  logger.Logger
	Metrics Recorder
	Tracer  trace.Tracer
}

// Orchestrator runs the CRUD operations for one resource. It holds no per-request state and
// is safe for concurrent use as long as its collaborators are.
type Orchestrator[T any, ID comparable] struct {
	name    string
	gateway Gateway[T, ID]
	acl     ACL[T]
	hooks   Hooks[T, ID]
	parser  *query.Parser
	ids     IDAccessor[T, ID]
	log     logger.Logger
	metrics Recorder
	tracer  trace.Tracer
}

// NewOrchestrator creates an orchestrator over gateway.
func NewOrchestrator[T any, ID comparable](gateway Gateway[T, ID], cfg Config[T, ID]) (*Orchestrator[T, ID], error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	o := &Orchestrator[T, ID]{
		name:    cfg.Name,
		gateway: gateway,
		acl:     cfg.ACL,
		hooks:   cfg.Hooks,
		parser:  cfg.Parser,
		ids:     cfg.IDs,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}
	if o.name == "" {
		o.name = "resource"
	}
	if o.acl == nil {
		o.acl = DefaultACL[T]{}
	}
	if o.hooks == nil {
		o.hooks = DefaultHooks[T, ID]{}
	}
	if o.parser == nil {
		o.parser = query.NewParser()
	}
	if o.ids == nil {
		ids, err := IdentifiableAccessor[T, ID]()
		if err != nil {
			return nil, err
		}
		o.ids = ids
	}
	if o.log == nil {
		o.log = logger.NewNop()
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("crudkit/resource")
	}
	return o, nil
}

// Name returns the resource name.
func (o *Orchestrator[T, ID]) Name() string {
	return o.name
}

// Parser returns the parser used by ReadMany.
func (o *Orchestrator[T, ID]) Parser() *query.Parser {
	return o.parser
}

// ReadMany parses params into a plan, checks CanReadMany, lets BeforeReadMany rewrite the
// plan, reads the page and returns what AfterReadMany makes of it.
func (o *Orchestrator[T, ID]) ReadMany(ctx context.Context, params url.Values) (page Page[T], err error) {
	ctx, done := o.begin(ctx, OpReadMany)
	defer func() { done(err) }()

	plan, err := o.parser.ParseValues(params)
	if err != nil {
		o.logger(ctx).Debug("rejected list parameters", "error", err)
		return Page[T]{}, err
	}
	return o.readMany(ctx, plan)
}

// ReadManyPlan runs the ReadMany sequence from an already built plan.
func (o *Orchestrator[T, ID]) ReadManyPlan(ctx context.Context, plan query.Plan) (page Page[T], err error) {
	ctx, done := o.begin(ctx, OpReadMany)
	defer func() { done(err) }()

	return o.readMany(ctx, plan.Clone())
}

func (o *Orchestrator[T, ID]) readMany(ctx context.Context, plan query.Plan) (Page[T], error) {
	if !o.acl.CanReadMany(ctx) {
		o.logger(ctx).Warn("read many denied")
		return Page[T]{}, unauthorizedError(o.name, OpReadMany)
	}

	plan, err := o.hooks.BeforeReadMany(ctx, plan)
	if err != nil {
		return Page[T]{}, err
	}

	o.logger(ctx).Debug("reading page",
		"predicates", len(plan.Predicates),
		"page_no", plan.PageNo,
		"page_size", plan.PageSize,
		"sort", plan.Sort.String(),
	)
	page, err := o.gateway.Read(ctx, plan)
	if err != nil {
		return Page[T]{}, err
	}
	return o.hooks.AfterReadMany(ctx, page)
}

// ReadOne runs BeforeReadOne, loads the entity, checks CanReadOne and returns AfterReadOne.
func (o *Orchestrator[T, ID]) ReadOne(ctx context.Context, id ID) (result any, err error) {
	ctx, done := o.begin(ctx, OpReadOne)
	defer func() { done(err) }()

	if err = o.hooks.BeforeReadOne(ctx, id); err != nil {
		return nil, err
	}

	item, err := o.gateway.ReadOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, notFoundError(o.name, id)
	}

	if !o.acl.CanReadOne(ctx, item) {
		o.logger(ctx).Warn("read denied", "id", id)
		return nil, unauthorizedError(o.name, OpReadOne)
	}
	return o.hooks.AfterReadOne(ctx, item)
}

// Create runs BeforeCreate, checks CanCreate on the transformed payload, persists it and
// returns AfterCreate of the stored entity.
func (o *Orchestrator[T, ID]) Create(ctx context.Context, input *T) (result any, err error) {
	ctx, done := o.begin(ctx, OpCreate)
	defer func() { done(err) }()

	if input == nil {
		return nil, invalidInputError(o.name, "payload is required")
	}

	item, err := o.hooks.BeforeCreate(ctx, input)
	if err != nil {
		return nil, err
	}
	if item == nil {
		item = input
	}

	if !o.acl.CanCreate(ctx, item) {
		o.logger(ctx).Warn("create denied")
		return nil, unauthorizedError(o.name, OpCreate)
	}

	created, err := o.gateway.Create(ctx, item)
	if err != nil {
		return nil, err
	}
	if created == nil {
		created = item
	}
	o.logger(ctx).Debug("created", "id", o.ids.GetID(created))
	return o.hooks.AfterCreate(ctx, created)
}

// Update runs BeforeUpdate, loads the existing entity, checks CanUpdate, forces the existing
// identifier onto the payload, persists it and returns AfterUpdate of the existing and the
// stored entity. The payload returned by BeforeUpdate is the one checked and persisted.
func (o *Orchestrator[T, ID]) Update(ctx context.Context, id ID, input *T) (result any, err error) {
	ctx, done := o.begin(ctx, OpUpdate)
	defer func() { done(err) }()

	if input == nil {
		return nil, invalidInputError(o.name, "payload is required")
	}

	item, err := o.hooks.BeforeUpdate(ctx, id, input)
	if err != nil {
		return nil, err
	}
	if item == nil {
		item = input
	}

	existing, err := o.gateway.ReadOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFoundError(o.name, id)
	}

	if !o.acl.CanUpdate(ctx, existing, item) {
		o.logger(ctx).Warn("update denied", "id", id)
		return nil, unauthorizedError(o.name, OpUpdate)
	}

	o.ids.SetID(item, o.ids.GetID(existing))
	updated, err := o.gateway.Update(ctx, item)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		updated = item
	}
	o.logger(ctx).Debug("updated", "id", o.ids.GetID(updated))
	return o.hooks.AfterUpdate(ctx, existing, updated)
}

// Delete runs BeforeDelete, loads the existing entity, checks CanDelete, removes it and
// returns AfterDelete.
func (o *Orchestrator[T, ID]) Delete(ctx context.Context, id ID) (result any, err error) {
	ctx, done := o.begin(ctx, OpDelete)
	defer func() { done(err) }()

	if err = o.hooks.BeforeDelete(ctx, id); err != nil {
		return nil, err
	}

	existing, err := o.gateway.ReadOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFoundError(o.name, id)
	}

	if !o.acl.CanDelete(ctx, existing) {
		o.logger(ctx).Warn("delete denied", "id", id)
		return nil, unauthorizedError(o.name, OpDelete)
	}

	if err = o.gateway.Delete(ctx, existing); err != nil {
		return nil, err
	}
	o.logger(ctx).Debug("deleted", "id", id)
	return o.hooks.AfterDelete(ctx, existing)
}

func (o *Orchestrator[T, ID]) logger(ctx context.Context) logger.Logger {
	return o.log.WithContext(ctx).With("resource", o.name)
}

func (o *Orchestrator[T, ID]) begin(ctx context.Context, op Operation) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "crudkit."+o.name+"."+string(op),
		trace.WithAttributes(
			attribute.String("crudkit.resource", o.name),
			attribute.String("crudkit.operation", string(op)),
		),
	)
	return ctx, func(err error) {
		outcome := OutcomeOf(err)
		span.SetAttributes(attribute.String("crudkit.outcome", outcome))
		if outcome == OutcomeError {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if o.metrics != nil {
			o.metrics.ObserveOperation(o.name, string(op), outcome, time.Since(start))
		}
	}
}

// OutcomeOf classifies an operation error.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, query.ErrFilterParse):
		return OutcomeInvalid
	}
	if appErr, ok := apperror.As(err); ok && appErr.HTTPStatus >= 400 && appErr.HTTPStatus < 500 {
		return OutcomeInvalid
	}
	return OutcomeError
}
