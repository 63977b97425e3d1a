package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Parser converts raw request parameters into a Plan.
//
// A non-reserved parameter becomes a predicate on the field named by its key. A value of the
// form "<op>:<tokens>" selects the operator; tokens are comma separated and decoded as a quoted
// string, the literal null, or an integer. A value without a colon is an equality predicate on
// the raw string. Parsing is strict: the first malformed parameter fails the whole parse with a
// *FilterParseError naming its key.
type Parser struct {
	defaultPageSize int
	maxPageSize     int
	defaultSort     Sort
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithDefaultPageSize sets the page size used when page_size is absent.
func WithDefaultPageSize(size int) ParserOption {
	return func(p *Parser) {
		if size > 0 {
			p.defaultPageSize = size
		}
	}
}

// WithMaxPageSize clamps requested page sizes. Zero disables clamping.
func WithMaxPageSize(size int) ParserOption {
	return func(p *Parser) {
		if size >= 0 {
			p.maxPageSize = size
		}
	}
}

// WithDefaultSort sets the sort used when sort_by is absent.
func WithDefaultSort(s Sort) ParserOption {
	return func(p *Parser) {
		if s.Field != "" {
			p.defaultSort = s
		}
	}
}

// NewParser creates a Parser with the default pagination and sort.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		defaultPageSize: DefaultPageSize,
		defaultSort:     DefaultSort(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Parse builds a plan from a flat parameter map. Keys are visited in sorted order so that
// the reported error is deterministic.
func (p *Parser) Parse(params map[string]string) (Plan, error) {
	values := make(url.Values, len(params))
	for key, value := range params {
		values[key] = []string{value}
	}
	return p.ParseValues(values)
}

// ParseValues builds a plan from query string values. select may repeat and may hold comma
// separated names; any other repeated key keeps its last value.
func (p *Parser) ParseValues(values url.Values) (Plan, error) {
	plan := Plan{
		Predicates: Predicates{},
		PageNo:     DefaultPageNo,
		PageSize:   p.defaultPageSize,
		Sort:       p.defaultSort,
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		all := values[key]
		if len(all) == 0 {
			continue
		}
		last := all[len(all)-1]

		switch key {
		case KeyPageNo:
			n, err := strconv.Atoi(strings.TrimSpace(last))
			if err != nil || n < 0 {
				return Plan{}, parseError(key, last, "page number must be a non-negative integer")
			}
			plan.PageNo = n
		case KeyPageSize:
			n, err := strconv.Atoi(strings.TrimSpace(last))
			if err != nil || n <= 0 {
				return Plan{}, parseError(key, last, "page size must be a positive integer")
			}
			plan.PageSize = n
		case KeySortBy:
			plan.Sort = ParseSort(last)
		case KeySelect:
			plan.Select = appendSelect(plan.Select, all)
		default:
			pred, err := ParseFilter(key, last)
			if err != nil {
				return Plan{}, err
			}
			plan.Predicates.Set(pred)
		}
	}

	if p.maxPageSize > 0 && plan.PageSize > p.maxPageSize {
		plan.PageSize = p.maxPageSize
	}
	return plan, nil
}

// ParseFilter parses the value of a single non-reserved parameter into a predicate.
func ParseFilter(key, raw string) (Predicate, error) {
	opToken, rhs, found := strings.Cut(raw, ":")
	if !found {
		return Predicate{Field: key, Op: OpEq, Value: String(raw)}, nil
	}

	op := Operator(opToken)
	if !op.Valid() {
		return Predicate{}, parseError(key, raw, "unknown operator %q", opToken)
	}

	tokens := strings.Split(rhs, ",")
	decoded := make([]Value, 0, len(tokens))
	for _, token := range tokens {
		v, err := decodeToken(token)
		if err != nil {
			return Predicate{}, parseError(key, raw, "%s", err.Error())
		}
		decoded = append(decoded, v)
	}

	value := List(decoded...)
	if len(decoded) == 1 && !op.AcceptsList() {
		value = decoded[0]
	}
	return Predicate{Field: key, Op: op, Value: value}, nil
}

func decodeToken(token string) (Value, error) {
	switch {
	case token == "":
		return Value{}, errors.New("empty value")
	case token == "null":
		return Null(), nil
	case strings.HasPrefix(token, `"`):
		if len(token) < 2 || !strings.HasSuffix(token, `"`) {
			return Value{}, fmt.Errorf("unterminated quoted string %s", token)
		}
		return String(token[1 : len(token)-1]), nil
	}
	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return Value{}, fmt.Errorf("value %q is not a quoted string, null or an integer", token)
	}
	return Int(n), nil
}

func appendSelect(dst []string, raw []string) []string {
	for _, entry := range raw {
		for _, field := range strings.Split(entry, ",") {
			field = strings.TrimSpace(field)
			if field != "" {
				dst = append(dst, field)
			}
		}
	}
	return dst
}

// SelectFields returns the projection requested by the select parameter of values.
func SelectFields(values url.Values) []string {
	return appendSelect(nil, values[KeySelect])
}
