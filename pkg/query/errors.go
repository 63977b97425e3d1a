package query

import (
	"errors"
	"fmt"
)

// ErrFilterParse is matched by every *FilterParseError.
var ErrFilterParse = errors.New("filter parse error")

// FilterParseError reports a malformed filter or control parameter.
type FilterParseError struct {
	Key    string
	Value  string
	Reason string
}

func (e *FilterParseError) Error() string {
	return fmt.Sprintf("invalid filter %q=%q: %s", e.Key, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrFilterParse) hold.
func (e *FilterParseError) Is(target error) bool {
	return target == ErrFilterParse
}

func parseError(key, value, format string, args ...any) *FilterParseError {
	return &FilterParseError{Key: key, Value: value, Reason: fmt.Sprintf(format, args...)}
}
