package query

import "sort"

// Reserved parameter names consumed as plan controls instead of predicates.
const (
	KeyPageNo   = "page_no"
	KeyPageSize = "page_size"
	KeySortBy   = "sort_by"
	KeySelect   = "select"
)

// Plan defaults
const (
	DefaultPageNo   = 0
	DefaultPageSize = 20
	DefaultSortBy   = "id:asc"
)

// IsReserved reports whether key is a reserved control parameter.
func IsReserved(key string) bool {
	switch key {
	case KeyPageNo, KeyPageSize, KeySortBy, KeySelect:
		return true
	default:
		return false
	}
}

// Predicate is a single field-scoped filter condition.
type Predicate struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value Value    `json:"value"`
}

// Predicates holds at most one predicate per field; setting a field twice keeps the last one.
type Predicates map[string]Predicate

// Set stores p under its field name, replacing any previous predicate for that field.
func (ps Predicates) Set(p Predicate) {
	ps[p.Field] = p
}

// Get returns the predicate registered for field.
func (ps Predicates) Get(field string) (Predicate, bool) {
	p, ok := ps[field]
	return p, ok
}

// Delete removes the predicate registered for field.
func (ps Predicates) Delete(field string) {
	delete(ps, field)
}

// Fields returns the filtered field names in ascending order.
func (ps Predicates) Fields() []string {
	fields := make([]string, 0, len(ps))
	for field := range ps {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Sorted returns the predicates ordered by field name.
func (ps Predicates) Sorted() []Predicate {
	out := make([]Predicate, 0, len(ps))
	for _, field := range ps.Fields() {
		out = append(out, ps[field])
	}
	return out
}

// Plan is the structured form of a list request.
type Plan struct {
	Predicates Predicates `json:"predicates"`
	PageNo     int        `json:"page_no"`
	PageSize   int        `json:"page_size"`
	Sort       Sort       `json:"sort"`
	Select     []string   `json:"select,omitempty"`
}

// NewPlan returns an empty plan carrying the default pagination and sort.
func NewPlan() Plan {
	return Plan{
		Predicates: Predicates{},
		PageNo:     DefaultPageNo,
		PageSize:   DefaultPageSize,
		Sort:       DefaultSort(),
	}
}

// Offset returns the number of rows to skip. Page numbers start at zero.
func (p Plan) Offset() int {
	if p.PageNo <= 0 || p.PageSize <= 0 {
		return 0
	}
	return p.PageNo * p.PageSize
}

// Limit returns the page size.
func (p Plan) Limit() int {
	return p.PageSize
}

// Where adds or replaces the predicate for field and returns the plan for chaining.
func (p Plan) Where(field string, op Operator, value Value) Plan {
	if p.Predicates == nil {
		p.Predicates = Predicates{}
	}
	p.Predicates.Set(Predicate{Field: field, Op: op, Value: value})
	return p
}

// Clone returns a deep copy so that hooks can rewrite a plan without touching the caller's.
func (p Plan) Clone() Plan {
	out := p
	out.Predicates = make(Predicates, len(p.Predicates))
	for field, pred := range p.Predicates {
		if pred.Value.kind == KindList {
			pred.Value = List(pred.Value.items...)
		}
		out.Predicates[field] = pred
	}
	if p.Select != nil {
		out.Select = append([]string(nil), p.Select...)
	}
	return out
}
