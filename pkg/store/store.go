// Package store builds the connection adapters a crudkit service is configured with.
package store

import (
	"context"
	"database/sql"

	"github.com/nimburion/crudkit/pkg/repository"
)

// Adapter is the minimal lifecycle and health contract for storage adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

// SQLAdapter is a pooled database/sql connection together with the dialect it speaks.
type SQLAdapter interface {
	Adapter
	DB() *sql.DB
	Dialect() repository.Dialect
}
