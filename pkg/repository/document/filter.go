package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/query"
)

var operators = map[query.Operator]string{
	query.OpEq:  "$eq",
	query.OpNeq: "$ne",
	query.OpGt:  "$gt",
	query.OpLt:  "$lt",
	query.OpGte: "$gte",
	query.OpLte: "$lte",
}

// BuildFilter compiles the plan's predicates into a bson filter. fields maps query field names
// to document keys; predicates on other fields are rejected. Negations never match documents
// whose field is null or missing unless null is named in the operand, as in SQL.
func BuildFilter(plan query.Plan, fields map[string]string) (bson.M, error) {
	filter := bson.M{}
	for _, pred := range plan.Predicates.Sorted() {
		key, ok := fields[pred.Field]
		if !ok {
			return nil, unknownField(pred.Field)
		}
		cond, err := condition(pred)
		if err != nil {
			return nil, err
		}
		filter[key] = cond
	}
	return filter, nil
}

func condition(pred query.Predicate) (interface{}, error) {
	v := pred.Value

	switch pred.Op {
	case query.OpIn, query.OpNin:
		items := members(v)
		if pred.Op == query.OpIn {
			return bson.M{"$in": items}, nil
		}
		if !hasNull(items) {
			items = append(items, nil)
		}
		return bson.M{"$nin": items}, nil
	}

	if v.IsList() {
		return nil, invalidPredicate(pred, "operator does not accept a list")
	}
	if v.IsNull() && pred.Op.Ordered() {
		return nil, invalidPredicate(pred, "null cannot be ordered")
	}
	if pred.Op == query.OpNeq && !v.IsNull() {
		return bson.M{"$nin": bson.A{v.Native(), nil}}, nil
	}
	op, ok := operators[pred.Op]
	if !ok {
		return nil, invalidPredicate(pred, "unsupported operator")
	}
	return bson.M{op: v.Native()}, nil
}

func members(v query.Value) bson.A {
	if !v.IsList() {
		return bson.A{v.Native()}
	}
	items := v.Items()
	out := make(bson.A, len(items))
	for i, item := range items {
		out[i] = item.Native()
	}
	return out
}

func hasNull(items bson.A) bool {
	for _, item := range items {
		if item == nil {
			return true
		}
	}
	return false
}

// FindOptions renders the plan's sort and pagination. Ties are broken by _id.
func FindOptions(plan query.Plan, fields map[string]string) (*options.FindOptions, error) {
	key, ok := fields[plan.Sort.Field]
	if !ok {
		return nil, unknownField(plan.Sort.Field)
	}
	direction := 1
	if plan.Sort.Descending() {
		direction = -1
	}
	sort := bson.D{{Key: key, Value: direction}}
	if key != "_id" {
		sort = append(sort, bson.E{Key: "_id", Value: 1})
	}

	opts := options.Find().SetSort(sort)
	if plan.PageSize > 0 {
		opts.SetSkip(int64(plan.Offset())).SetLimit(int64(plan.Limit()))
	}
	return opts, nil
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
