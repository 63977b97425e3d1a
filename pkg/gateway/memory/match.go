package memory

import (
	"fmt"
	"reflect"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/query"
)

// condition is a predicate bound to a struct field.
type condition struct {
	path []int
	pred query.Predicate
}

func (g *Gateway[T, ID]) compile(preds query.Predicates) ([]condition, error) {
	conds := make([]condition, 0, len(preds))
	for _, pred := range preds.Sorted() {
		path, ok := g.fields[pred.Field]
		if !ok {
			return nil, unknownField(pred.Field)
		}
		if err := checkOperand(pred); err != nil {
			return nil, err
		}
		conds = append(conds, condition{path: path, pred: pred})
	}
	return conds, nil
}

func checkOperand(pred query.Predicate) error {
	switch {
	case pred.Op.AcceptsList():
		return nil
	case pred.Value.IsList():
		return invalidPredicate(pred, "operator does not accept a list")
	case pred.Op.Ordered() && pred.Value.IsNull():
		return invalidPredicate(pred, "null cannot be ordered")
	}
	return nil
}

// matches follows SQL null semantics: a null field only satisfies eq null, neq of a non-null
// value never matches it, and nin never matches it.
func (c condition) matches(entity reflect.Value) (bool, error) {
	field, ok := valueOf(entity.FieldByIndex(c.path))
	if !ok {
		return false, invalidPredicate(c.pred, "field type does not support filtering")
	}
	operand := c.pred.Value

	switch c.pred.Op {
	case query.OpEq:
		return field.Equal(operand), nil
	case query.OpNeq:
		if field.IsNull() && !operand.IsNull() {
			return false, nil
		}
		return !field.Equal(operand), nil
	case query.OpIn:
		return contains(operand, field), nil
	case query.OpNin:
		if field.IsNull() {
			return false, nil
		}
		return !contains(operand, field), nil
	}

	cmp, ok := compare(field, operand)
	if !ok {
		return false, nil
	}
	switch c.pred.Op {
	case query.OpGt:
		return cmp > 0, nil
	case query.OpLt:
		return cmp < 0, nil
	case query.OpGte:
		return cmp >= 0, nil
	case query.OpLte:
		return cmp <= 0, nil
	}
	return false, invalidPredicate(c.pred, "unsupported operator")
}

// contains treats a scalar operand as a single-element set.
func contains(set, v query.Value) bool {
	if !set.IsList() {
		return set.Equal(v)
	}
	for _, item := range set.Items() {
		if item.Equal(v) {
			return true
		}
	}
	return false
}

func unknownField(field string) error {
	return apperror.Validation(fmt.Sprintf("unknown field %q", field), map[string]interface{}{"field": field})
}

func invalidPredicate(pred query.Predicate, reason string) error {
	return apperror.Validation(
		fmt.Sprintf("invalid filter on %q: %s", pred.Field, reason),
		map[string]interface{}{"field": pred.Field, "operator": string(pred.Op)},
	)
}
