package query

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds
const (
	KindString Kind = iota
	KindInt
	KindNull
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindNull:
		return "null"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is the right-hand side of a predicate. It is exactly one of a string, an integer,
// null, or a list of those scalars. The zero Value is the empty string.
type Value struct {
	kind  Kind
	str   string
	num   int64
	items []Value
}

// String builds a string scalar.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int builds an integer scalar.
func Int(n int64) Value {
	return Value{kind: KindInt, num: n}
}

// Null builds the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// List builds a list value. Nested lists are flattened so a list only ever holds scalars.
func List(items ...Value) Value {
	flat := make([]Value, 0, len(items))
	for _, item := range items {
		if item.kind == KindList {
			flat = append(flat, item.items...)
			continue
		}
		flat = append(flat, item)
	}
	return Value{kind: KindList, items: flat}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsList reports whether v is a list.
func (v Value) IsList() bool { return v.kind == KindList }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Int returns the integer payload and whether v is an integer.
func (v Value) Int() (int64, bool) {
	return v.num, v.kind == KindInt
}

// Items returns a copy of the list items, or nil when v is not a list.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	out := make([]Value, len(v.items))
	copy(out, v.items)
	return out
}

// Len returns the number of list items, or 1 for a scalar.
func (v Value) Len() int {
	if v.kind == KindList {
		return len(v.items)
	}
	return 1
}

// Native returns the value as a plain Go value: string, int64, nil, or []any for lists.
// It is meant for binding driver arguments.
func (v Value) Native() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Native()
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindInt:
		return v.num == other.num
	case KindList:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the value using the filter grammar: quoted strings, bare integers,
// null, and comma separated lists.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindList:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	default:
		return "null"
	}
}

// MarshalJSON encodes the value as its native JSON counterpart.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}
