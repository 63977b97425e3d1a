// Package resource orchestrates create/read/update/delete operations for any entity type.
//
// An Orchestrator composes three collaborators around every operation: Hooks that may rewrite
// payloads or perform side effects, an ACL that gates the operation, and a Gateway that talks to
// storage. Each operation runs the before-hook, then the authorization gate, then the gateway
// call, then the after-hook; the first failure aborts the sequence.
package resource

import (
	"context"
	"fmt"

	"github.com/nimburion/crudkit/pkg/query"
)

// Identifiable is implemented by entity pointers that expose their identifier.
type Identifiable[ID comparable] interface {
	GetID() ID
	SetID(id ID)
}

// IDAccessor reads and writes the identifier of an entity.
type IDAccessor[T any, ID comparable] interface {
	GetID(entity *T) ID
	SetID(entity *T, id ID)
}

// identifiableAccessor adapts entities whose pointer type implements Identifiable.
type identifiableAccessor[T any, ID comparable] struct{}

func (identifiableAccessor[T, ID]) GetID(entity *T) ID {
	return any(entity).(Identifiable[ID]).GetID()
}

func (identifiableAccessor[T, ID]) SetID(entity *T, id ID) {
	any(entity).(Identifiable[ID]).SetID(id)
}

// IdentifiableAccessor returns an accessor for entity types whose pointer implements
// Identifiable[ID], or an error when it does not.
func IdentifiableAccessor[T any, ID comparable]() (IDAccessor[T, ID], error) {
	if _, ok := any((*T)(nil)).(Identifiable[ID]); !ok {
		var zero T
		var zeroID ID
		return nil, fmt.Errorf("%T does not implement Identifiable[%T]", &zero, zeroID)
	}
	return identifiableAccessor[T, ID]{}, nil
}

// Page is one page of a collection read.
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	PageNo     int   `json:"page_no"`
	PageSize   int   `json:"page_size"`
}

// TotalPages returns the number of pages needed to hold TotalCount items.
func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 || p.TotalCount <= 0 {
		return 0
	}
	return int((p.TotalCount + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// Gateway executes plans and single-entity operations against storage.
type Gateway[T any, ID comparable] interface {
	// Read returns the page selected by plan.
	Read(ctx context.Context, plan query.Plan) (Page[T], error)
	// ReadOne returns the entity with the given id, or nil without error when it does not exist.
	ReadOne(ctx context.Context, id ID) (*T, error)
	// Create persists a new entity and returns the stored version.
	Create(ctx context.Context, entity *T) (*T, error)
	// Update persists an existing entity and returns the stored version.
	Update(ctx context.Context, entity *T) (*T, error)
	// Delete removes an existing entity.
	Delete(ctx context.Context, entity *T) error
}
