package resource

import (
	"errors"
	"fmt"

	"github.com/nimburion/crudkit/pkg/apperror"
)

// Sentinels matched by errors.Is on the errors raised by the orchestrator.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

func unauthorizedError(resource string, op Operation) error {
	return apperror.Unauthorized(fmt.Sprintf("%s: %s not allowed", resource, op)).
		WithDetails(map[string]interface{}{"resource": resource, "operation": string(op)}).
		WithSentinel(ErrUnauthorized)
}

func notFoundError(resource string, id any) error {
	return apperror.NotFound(fmt.Sprintf("%s %v not found", resource, id)).
		WithDetails(map[string]interface{}{"resource": resource, "id": id}).
		WithSentinel(ErrNotFound)
}

func invalidInputError(resource string, message string) error {
	return apperror.Validation(fmt.Sprintf("%s: %s", resource, message), nil).
		WithSentinel(ErrInvalidInput)
}
