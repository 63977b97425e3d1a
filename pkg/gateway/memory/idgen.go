package memory

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator returns a fresh identifier for each call. Implementations must be safe for
// concurrent use.
type IDGenerator[ID comparable] func() ID

// Sequence returns an int64 generator counting up from start+1.
func Sequence(start int64) IDGenerator[int64] {
	var counter atomic.Int64
	counter.Store(start)
	return func() int64 { return counter.Add(1) }
}

// UUIDs returns a generator of random version 4 UUID strings.
func UUIDs() IDGenerator[string] {
	return func() string { return uuid.NewString() }
}
