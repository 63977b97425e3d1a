package repository

import (
	"fmt"
	"strings"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/query"
)

// Statement is a SQL string with its bind arguments.
type Statement struct {
	SQL  string
	Args []interface{}
}

// builder accumulates clauses and bind arguments for one statement.
type builder struct {
	dialect Dialect
	args    []interface{}
}

func (b *builder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// Compiler turns plans into SELECT and COUNT statements over one table.
type Compiler struct {
	dialect  Dialect
	table    string
	idColumn string
	columns  map[string]bool
	ordered  []string
}

// NewCompiler creates a compiler that only accepts the given columns in predicates and sorts.
func NewCompiler(dialect Dialect, table, idColumn string, columns []string) *Compiler {
	c := &Compiler{
		dialect:  dialect,
		table:    table,
		idColumn: idColumn,
		columns:  make(map[string]bool, len(columns)),
		ordered:  append([]string(nil), columns...),
	}
	for _, col := range columns {
		c.columns[col] = true
	}
	return c
}

// Select compiles the page query for plan.
func (c *Compiler) Select(plan query.Plan) (Statement, error) {
	b := &builder{dialect: c.dialect}
	where, err := c.where(b, plan.Predicates)
	if err != nil {
		return Statement{}, err
	}
	if !c.columns[plan.Sort.Field] {
		return Statement{}, unknownColumn(plan.Sort.Field)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(c.selectList())
	sb.WriteString(" FROM ")
	sb.WriteString(c.dialect.Quote(c.table))
	sb.WriteString(where)

	direction := "ASC"
	if plan.Sort.Descending() {
		direction = "DESC"
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s", c.dialect.Quote(plan.Sort.Field), direction)
	if plan.Sort.Field != c.idColumn {
		fmt.Fprintf(&sb, ", %s ASC", c.dialect.Quote(c.idColumn))
	}

	if plan.PageSize > 0 {
		limit := b.bind(plan.Limit())
		offset := b.bind(plan.Offset())
		fmt.Fprintf(&sb, " LIMIT %s OFFSET %s", limit, offset)
	}
	return Statement{SQL: sb.String(), Args: b.args}, nil
}

// Count compiles the total count query for the plan's predicates.
func (c *Compiler) Count(plan query.Plan) (Statement, error) {
	b := &builder{dialect: c.dialect}
	where, err := c.where(b, plan.Predicates)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:  "SELECT COUNT(*) FROM " + c.dialect.Quote(c.table) + where,
		Args: b.args,
	}, nil
}

func (c *Compiler) selectList() string {
	quoted := make([]string, len(c.ordered))
	for i, col := range c.ordered {
		quoted[i] = c.dialect.Quote(col)
	}
	return strings.Join(quoted, ", ")
}

func (c *Compiler) where(b *builder, preds query.Predicates) (string, error) {
	if len(preds) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(preds))
	for _, pred := range preds.Sorted() {
		if !c.columns[pred.Field] {
			return "", unknownColumn(pred.Field)
		}
		clause, err := c.clause(b, pred)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

var comparison = map[query.Operator]string{
	query.OpEq:  "=",
	query.OpNeq: "<>",
	query.OpGt:  ">",
	query.OpLt:  "<",
	query.OpGte: ">=",
	query.OpLte: "<=",
}

func (c *Compiler) clause(b *builder, pred query.Predicate) (string, error) {
	col := c.dialect.Quote(pred.Field)
	v := pred.Value

	if pred.Op.AcceptsList() {
		return c.setClause(b, col, pred)
	}
	if v.IsList() {
		return "", invalidPredicate(pred, "operator does not accept a list")
	}
	if v.IsNull() {
		switch pred.Op {
		case query.OpEq:
			return col + " IS NULL", nil
		case query.OpNeq:
			return col + " IS NOT NULL", nil
		}
		return "", invalidPredicate(pred, "null cannot be ordered")
	}
	op, ok := comparison[pred.Op]
	if !ok {
		return "", invalidPredicate(pred, "unsupported operator")
	}
	return fmt.Sprintf("%s %s %s", col, op, b.bind(v.Native())), nil
}

// setClause renders in/nin. A null member is matched with IS NULL since "col IN (NULL)" never
// holds in SQL.
func (c *Compiler) setClause(b *builder, col string, pred query.Predicate) (string, error) {
	items := []query.Value{pred.Value}
	if pred.Value.IsList() {
		items = pred.Value.Items()
	}

	hasNull := false
	placeholders := make([]string, 0, len(items))
	for _, item := range items {
		if item.IsNull() {
			hasNull = true
			continue
		}
		placeholders = append(placeholders, b.bind(item.Native()))
	}

	negate := pred.Op == query.OpNin
	switch {
	case len(placeholders) == 0 && !negate:
		return col + " IS NULL", nil
	case len(placeholders) == 0:
		return col + " IS NOT NULL", nil
	}

	list := strings.Join(placeholders, ", ")
	switch {
	case !negate && hasNull:
		return fmt.Sprintf("(%s IN (%s) OR %s IS NULL)", col, list, col), nil
	case !negate:
		return fmt.Sprintf("%s IN (%s)", col, list), nil
	case hasNull:
		return fmt.Sprintf("(%s NOT IN (%s) AND %s IS NOT NULL)", col, list, col), nil
	}
	return fmt.Sprintf("%s NOT IN (%s)", col, list), nil
}

func unknownColumn(column string) error {
	return apperror.Validation(fmt.Sprintf("unknown field %q", column), map[string]interface{}{"field": column})
}

func invalidPredicate(pred query.Predicate, reason string) error {
	return apperror.Validation(
		fmt.Sprintf("invalid filter on %q: %s", pred.Field, reason),
		map[string]interface{}{"field": pred.Field, "operator": string(pred.Op)},
	)
}
