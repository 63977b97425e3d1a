package query

import "strings"

// Direction is the sort order.
type Direction string

// Sort directions
const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sort specifies the field and direction used to order results.
type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// DefaultSort orders by id ascending.
func DefaultSort() Sort {
	return Sort{Field: "id", Direction: Ascending}
}

// Descending reports whether the sort is descending.
func (s Sort) Descending() bool {
	return s.Direction == Descending
}

// String renders the sort as "field:direction".
func (s Sort) String() string {
	return s.Field + ":" + string(s.Direction)
}

// ParseSort parses "<field>:<asc|desc>". Input without a colon, with an empty field or with
// any other direction token yields DefaultSort.
func ParseSort(raw string) Sort {
	field, dir, found := strings.Cut(raw, ":")
	if !found || field == "" {
		return DefaultSort()
	}
	switch Direction(dir) {
	case Ascending:
		return Sort{Field: field, Direction: Ascending}
	case Descending:
		return Sort{Field: field, Direction: Descending}
	default:
		return DefaultSort()
	}
}
