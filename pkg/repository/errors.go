package repository

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/nimburion/crudkit/pkg/apperror"
)

const (
	pgUniqueViolation   pq.ErrorCode = "23505"
	mysqlDuplicateEntry uint16       = 1062
)

// IsUniqueViolation reports whether err is a unique constraint violation raised by the
// PostgreSQL or MySQL driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

// writeError wraps a failed INSERT or UPDATE. Unique violations become 409 errors.
func writeError(op string, err error) error {
	if IsUniqueViolation(err) {
		return apperror.New("resource.conflict", nil, err).
			WithMessage("entity conflicts with an existing one").
			WithHTTPStatus(http.StatusConflict)
	}
	return fmt.Errorf("failed to %s entity: %w", op, err)
}
