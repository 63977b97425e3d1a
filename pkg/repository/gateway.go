package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/observability/tracing"
	"github.com/nimburion/crudkit/pkg/query"
	"github.com/nimburion/crudkit/pkg/resource"
)

// CrudGateway implements resource.Gateway for one SQL table.
type CrudGateway[T any, ID comparable] struct {
	executor  SQLExecutor
	dialect   Dialect
	tableName string
	idColumn  string
	mapper    EntityMapper[T, ID]
	compiler  *Compiler
	tx        TransactionManager
	timeout   time.Duration
}

// GatewayOption configures a CrudGateway.
type GatewayOption[T any, ID comparable] func(*CrudGateway[T, ID])

// WithTransactions runs Create and Update in a transaction so the write and the read back
// observe the same state.
func WithTransactions[T any, ID comparable](tx TransactionManager) GatewayOption[T, ID] {
	return func(g *CrudGateway[T, ID]) { g.tx = tx }
}

// WithQueryTimeout bounds every gateway call whose context carries no deadline.
func WithQueryTimeout[T any, ID comparable](timeout time.Duration) GatewayOption[T, ID] {
	return func(g *CrudGateway[T, ID]) { g.timeout = timeout }
}

// NewCrudGateway creates a gateway over tableName. idColumn must be one of the mapper's columns.
func NewCrudGateway[T any, ID comparable](
	executor SQLExecutor,
	dialect Dialect,
	tableName string,
	idColumn string,
	mapper EntityMapper[T, ID],
	opts ...GatewayOption[T, ID],
) (*CrudGateway[T, ID], error) {
	if executor == nil {
		return nil, errors.New("sql executor is required")
	}
	if mapper == nil {
		return nil, errors.New("entity mapper is required")
	}
	columns := mapper.Columns()
	if !containsColumn(columns, idColumn) {
		return nil, fmt.Errorf("id column %q is not mapped", idColumn)
	}
	g := &CrudGateway[T, ID]{
		executor:  executor,
		dialect:   dialect,
		tableName: tableName,
		idColumn:  idColumn,
		mapper:    mapper,
		compiler:  NewCompiler(dialect, tableName, idColumn, columns),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func containsColumn(columns []string, column string) bool {
	for _, c := range columns {
		if c == column {
			return true
		}
	}
	return false
}

// Read runs the page query and the count query for plan.
func (g *CrudGateway[T, ID]) Read(ctx context.Context, plan query.Plan) (page resource.Page[T], err error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	selectStmt, err := g.compiler.Select(plan)
	if err != nil {
		return page, err
	}
	countStmt, err := g.compiler.Count(plan)
	if err != nil {
		return page, err
	}

	ctx, span := g.span(ctx, tracing.SpanOperationDBQuery, selectStmt.SQL)
	defer func() { tracing.End(span, err) }()

	items, err := g.query(ctx, selectStmt)
	if err != nil {
		return page, err
	}

	var total int64
	if err := executorFor(ctx, g.executor).QueryRowContext(ctx, countStmt.SQL, countStmt.Args...).Scan(&total); err != nil {
		return page, fmt.Errorf("failed to count entities: %w", err)
	}

	return resource.Page[T]{
		Items:      items,
		TotalCount: total,
		PageNo:     plan.PageNo,
		PageSize:   plan.PageSize,
	}, nil
}

func (g *CrudGateway[T, ID]) query(ctx context.Context, stmt Statement) ([]T, error) {
	rows, err := executorFor(ctx, g.executor).QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	entities := []T{}
	for rows.Next() {
		entity, err := g.mapper.FromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entities, nil
}

// ReadOne returns the entity with the given id, or nil when no row matches.
func (g *CrudGateway[T, ID]) ReadOne(ctx context.Context, id ID) (entity *T, err error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	stmt := Statement{
		SQL: fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
			g.compiler.selectList(), g.dialect.Quote(g.tableName), g.dialect.Quote(g.idColumn), g.dialect.Placeholder(1)),
		Args: []interface{}{id},
	}

	ctx, span := g.span(ctx, tracing.SpanOperationDBQuery, stmt.SQL)
	defer func() { tracing.End(span, err) }()

	items, err := g.query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// Create inserts entity and reads the stored row back. A zero identifier is left to the
// database to generate.
func (g *CrudGateway[T, ID]) Create(ctx context.Context, entity *T) (created *T, err error) {
	if entity == nil {
		return nil, errors.New("entity cannot be nil")
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	ctx, span := g.span(ctx, tracing.SpanOperationDBInsert, "")
	defer func() { tracing.End(span, err) }()

	err = g.inTx(ctx, func(ctx context.Context) error {
		id, err := g.insert(ctx, entity)
		if err != nil {
			return err
		}
		created, err = g.ReadOne(ctx, id)
		if err != nil {
			return err
		}
		if created == nil {
			return apperror.Internal("created entity could not be read back", nil)
		}
		return nil
	})
	return created, err
}

func (g *CrudGateway[T, ID]) insert(ctx context.Context, entity *T) (ID, error) {
	var zero ID
	columns, values, err := g.mapper.ToRow(entity)
	if err != nil {
		return zero, fmt.Errorf("failed to map entity to row: %w", err)
	}

	id := g.mapper.GetID(entity)
	generated := id == zero
	if generated {
		columns, values = withoutColumn(columns, values, g.idColumn)
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = g.dialect.Quote(col)
		placeholders[i] = g.dialect.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		g.dialect.Quote(g.tableName), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	exec := executorFor(ctx, g.executor)
	switch {
	case !generated:
		if _, err := exec.ExecContext(ctx, stmt, values...); err != nil {
			return zero, writeError("create", err)
		}
		return id, nil
	case g.dialect.Returning:
		stmt += " RETURNING " + g.dialect.Quote(g.idColumn)
		if err := exec.QueryRowContext(ctx, stmt, values...).Scan(&id); err != nil {
			return zero, writeError("create", err)
		}
		return id, nil
	}

	result, err := exec.ExecContext(ctx, stmt, values...)
	if err != nil {
		return zero, writeError("create", err)
	}
	lastID, err := result.LastInsertId()
	if err != nil {
		return zero, fmt.Errorf("failed to read generated id: %w", err)
	}
	generatedID, ok := any(lastID).(ID)
	if !ok {
		return zero, fmt.Errorf("generated id %d does not fit %T", lastID, zero)
	}
	return generatedID, nil
}

func withoutColumn(columns []string, values []interface{}, drop string) ([]string, []interface{}) {
	outCols := make([]string, 0, len(columns))
	outVals := make([]interface{}, 0, len(values))
	for i, col := range columns {
		if col == drop {
			continue
		}
		outCols = append(outCols, col)
		outVals = append(outVals, values[i])
	}
	return outCols, outVals
}

// Update writes every mapped column of entity. Versioned entities are updated only when their
// version matches the stored one, and the version is incremented.
func (g *CrudGateway[T, ID]) Update(ctx context.Context, entity *T) (updated *T, err error) {
	if entity == nil {
		return nil, errors.New("entity cannot be nil")
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	ctx, span := g.span(ctx, tracing.SpanOperationDBUpdate, "")
	defer func() { tracing.End(span, err) }()

	item := *entity
	err = g.inTx(ctx, func(ctx context.Context) error {
		return g.update(ctx, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (g *CrudGateway[T, ID]) update(ctx context.Context, entity *T) error {
	id := g.mapper.GetID(entity)
	versioned, isVersioned := any(entity).(Versioned)

	var currentVersion int64
	if isVersioned {
		currentVersion = versioned.GetVersion()
		versioned.SetVersion(currentVersion + 1)
	}

	columns, values, err := g.mapper.ToRow(entity)
	if err != nil {
		return fmt.Errorf("failed to map entity to row: %w", err)
	}
	columns, values = withoutColumn(columns, values, g.idColumn)

	setClauses := make([]string, len(columns))
	for i, col := range columns {
		setClauses[i] = fmt.Sprintf("%s = %s", g.dialect.Quote(col), g.dialect.Placeholder(i+1))
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		g.dialect.Quote(g.tableName), strings.Join(setClauses, ", "),
		g.dialect.Quote(g.idColumn), g.dialect.Placeholder(len(values)+1))
	values = append(values, id)
	if isVersioned {
		stmt += fmt.Sprintf(" AND %s = %s", g.dialect.Quote("version"), g.dialect.Placeholder(len(values)+1))
		values = append(values, currentVersion)
	}

	exec := executorFor(ctx, g.executor)
	result, err := exec.ExecContext(ctx, stmt, values...)
	if err != nil {
		return writeError("update", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	if !isVersioned {
		return notFound(id)
	}
	versioned.SetVersion(currentVersion)

	var actualVersion int64
	checkQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		g.dialect.Quote("version"), g.dialect.Quote(g.tableName), g.dialect.Quote(g.idColumn), g.dialect.Placeholder(1))
	err = exec.QueryRowContext(ctx, checkQuery, id).Scan(&actualVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(id)
	}
	if err != nil {
		return fmt.Errorf("failed to check entity version: %w", err)
	}
	return NewOptimisticLockError(fmt.Sprintf("%v", id), currentVersion, actualVersion)
}

// Delete removes the row carrying the identifier of entity.
func (g *CrudGateway[T, ID]) Delete(ctx context.Context, entity *T) (err error) {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}
	id := g.mapper.GetID(entity)
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		g.dialect.Quote(g.tableName), g.dialect.Quote(g.idColumn), g.dialect.Placeholder(1))

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	ctx, span := g.span(ctx, tracing.SpanOperationDBDelete, stmt)
	defer func() { tracing.End(span, err) }()

	result, err := executorFor(ctx, g.executor).ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

func (g *CrudGateway[T, ID]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *CrudGateway[T, ID]) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.tx == nil {
		return fn(ctx)
	}
	return g.tx.WithTransaction(ctx, fn)
}

func (g *CrudGateway[T, ID]) span(ctx context.Context, op tracing.SpanOperation, statement string) (context.Context, trace.Span) {
	opts := []tracing.Option{tracing.WithDBSystem(g.dialect.Name), tracing.WithDBTable(g.tableName)}
	if statement != "" {
		opts = append(opts, tracing.WithDBStatement(statement))
	}
	return tracing.StartDatabaseSpan(ctx, op, opts...)
}

func notFound(id interface{}) error {
	return apperror.NotFound(fmt.Sprintf("entity %v not found", id)).
		WithDetails(map[string]interface{}{"id": id}).
		WithSentinel(resource.ErrNotFound)
}
