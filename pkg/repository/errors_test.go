package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/nimburion/crudkit/pkg/apperror"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "postgres unique", err: &pq.Error{Code: "23505"}, want: true},
		{name: "postgres wrapped", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "postgres other", err: &pq.Error{Code: "23503"}, want: false},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, want: true},
		{name: "mysql other", err: &mysql.MySQLError{Number: 1452}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCrudGateway_Create_DuplicateIsConflict(t *testing.T) {
	g, mock := newMockGateway(t, Postgres)

	mock.ExpectExec(`INSERT INTO "accounts" ("id", "name", "status", "version") VALUES ($1, $2, $3, $4)`).
		WithArgs(int64(3), "dup", nil, int64(0)).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := g.Create(context.Background(), &account{ID: 3, Name: "dup"})
	appErr, ok := apperror.As(err)
	if !ok || appErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("Create() error = %v, want 409", err)
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		t.Error("driver error is not preserved as cause")
	}
}
