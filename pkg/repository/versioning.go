package repository

import (
	"fmt"
	"net/http"

	"github.com/nimburion/crudkit/pkg/apperror"
)

// Versioned is implemented by entities that use optimistic locking. Their table must have a
// "version" column.
type Versioned interface {
	GetVersion() int64
	SetVersion(version int64)
}

// OptimisticLockError is returned when an update carries a stale version.
type OptimisticLockError struct {
	EntityID string
	Expected int64
	Actual   int64
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("optimistic lock failed for entity %s: expected version %d, got %d",
		e.EntityID, e.Expected, e.Actual)
}

// NewOptimisticLockError creates a new OptimisticLockError wrapped in a 409 AppError, so the
// HTTP layer reports a conflict while errors.As still finds the lock details.
func NewOptimisticLockError(entityID string, expected, actual int64) error {
	lockErr := &OptimisticLockError{
		EntityID: entityID,
		Expected: expected,
		Actual:   actual,
	}
	return apperror.New("resource.version_conflict", apperror.Params{"id": entityID}, lockErr).
		WithMessage("entity was modified concurrently").
		WithHTTPStatus(http.StatusConflict).
		WithDetails(map[string]interface{}{"id": entityID, "expected_version": expected, "actual_version": actual})
}
