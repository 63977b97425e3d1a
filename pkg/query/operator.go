// Package query turns flat string-keyed request parameters into a typed query plan:
// field predicates, sort, pagination and field selection.
package query

// Operator is the comparison applied by a predicate.
type Operator string

// Supported operators
const (
	// OpEq matches values equal to the operand (IS NULL when the operand is null)
	OpEq Operator = "eq"
	// OpNeq matches values different from the operand (IS NOT NULL when the operand is null)
	OpNeq Operator = "neq"
	// OpIn matches values contained in the operand list
	OpIn Operator = "in"
	// OpNin matches values not contained in the operand list
	OpNin Operator = "nin"
	// OpGt matches values strictly greater than the operand
	OpGt Operator = "gt"
	// OpLt matches values strictly lower than the operand
	OpLt Operator = "lt"
	// OpGte matches values greater than or equal to the operand
	OpGte Operator = "gte"
	// OpLte matches values lower than or equal to the operand
	OpLte Operator = "lte"
)

// Operators lists every supported operator in a stable order.
var Operators = []Operator{OpEq, OpNeq, OpIn, OpNin, OpGt, OpLt, OpGte, OpLte}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNeq, OpIn, OpNin, OpGt, OpLt, OpGte, OpLte:
		return true
	default:
		return false
	}
}

// AcceptsList reports whether the operator always takes a list operand.
func (op Operator) AcceptsList() bool {
	return op == OpIn || op == OpNin
}

// Ordered reports whether the operator is a range comparison.
func (op Operator) Ordered() bool {
	switch op {
	case OpGt, OpLt, OpGte, OpLte:
		return true
	default:
		return false
	}
}
