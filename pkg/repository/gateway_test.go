package repository

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/query"
	"github.com/nimburion/crudkit/pkg/resource"
)

type account struct {
	ID      int64   `db:"id"`
	Name    string  `db:"name"`
	Status  *string `db:"status"`
	Version int64   `db:"version"`
	Scratch string  `db:"-"`
}

func (a *account) GetVersion() int64        { return a.Version }
func (a *account) SetVersion(version int64) { a.Version = version }

const pgSelect = `SELECT "id", "name", "status", "version" FROM "accounts"`

func newMockGateway(t *testing.T, dialect Dialect, opts ...GatewayOption[account, int64]) (*CrudGateway[account, int64], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mapper, err := NewReflectionMapper[account, int64]("ID")
	if err != nil {
		t.Fatalf("NewReflectionMapper() error = %v", err)
	}
	g, err := NewCrudGateway[account, int64](db, dialect, "accounts", "id", mapper, opts...)
	if err != nil {
		t.Fatalf("NewCrudGateway() error = %v", err)
	}
	return g, mock
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "status", "version"})
}

func TestCrudGateway_Read(t *testing.T) {
	g, mock := newMockGateway(t, Postgres)

	mock.ExpectQuery(pgSelect+` WHERE "name" = $1 ORDER BY "id" ASC LIMIT $2 OFFSET $3`).
		WithArgs("alpha", 20, 0).
		WillReturnRows(accountRows().
			AddRow(int64(1), "alpha", "open", int64(0)).
			AddRow(int64(2), "alpha", nil, int64(3)))
	mock.ExpectQuery(`SELECT COUNT(*) FROM "accounts" WHERE "name" = $1`).
		WithArgs("alpha").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	page, err := g.Read(context.Background(), query.NewPlan().Where("name", query.OpEq, query.String("alpha")))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if page.TotalCount != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[0].Status == nil || *page.Items[0].Status != "open" {
		t.Errorf("status not mapped: %+v", page.Items[0])
	}
	if page.Items[1].Status != nil || page.Items[1].Version != 3 {
		t.Errorf("unexpected second row: %+v", page.Items[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCrudGateway_Read_InvalidPlanNeverQueries(t *testing.T) {
	g, mock := newMockGateway(t, Postgres)

	_, err := g.Read(context.Background(), query.NewPlan().Where("secret", query.OpEq, query.Int(1)))
	if appErr, ok := apperror.As(err); !ok || appErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected 400 AppError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestCrudGateway_ReadOne(t *testing.T) {
	g, mock := newMockGateway(t, Postgres)

	mock.ExpectQuery(pgSelect + ` WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnRows(accountRows().AddRow(int64(1), "alpha", nil, int64(0)))
	mock.ExpectQuery(pgSelect + ` WHERE "id" = $1`).
		WithArgs(int64(2)).
		WillReturnRows(accountRows())

	found, err := g.ReadOne(context.Background(), 1)
	if err != nil || found == nil || found.Name != "alpha" {
		t.Fatalf("ReadOne(1) = %+v, %v", found, err)
	}
	missing, err := g.ReadOne(context.Background(), 2)
	if err != nil || missing != nil {
		t.Fatalf("ReadOne(2) = %+v, %v; want nil, nil", missing, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCrudGateway_Create_PostgresReturning(t *testing.T) {
	g, mock := newMockGateway(t, Postgres)

	mock.ExpectQuery(`INSERT INTO "accounts" ("name", "status", "version") VALUES ($1, $2, $3) RETURNING "id"`).
		WithArgs("new", nil, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(pgSelect + ` WHERE "id" = $1`).
		WithArgs(int64(5)).
		WillReturnRows(accountRows().AddRow(int64(5), "new", nil, int64(0)))

	created, err := g.Create(context.Background(), &account{Name: "new"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != 5 {
		t.Errorf("ID = %d, want 5", created.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCrudGateway_Create_MySQLLastInsertID(t *testing.T) {
	g, mock := newMockGateway(t, MySQL)

	mock.ExpectExec("INSERT INTO `accounts` (`name`, `status`, `version`) VALUES (?, ?, ?)").
		WithArgs("new", nil, int64(0)).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery("SELECT `id`, `name`, `status`, `version` FROM `accounts` WHERE `id` = ?").
		WithArgs(int64(7)).
		WillReturnRows(accountRows().AddRow([]byte("7"), []byte("new"), nil, []byte("0")))

	created, err := g.Create(context.Background(), &account{Name: "new"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != 7 || created.Name != "new" {
		t.Errorf("unexpected entity: %+v", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCrudGateway_Create_ExplicitIDInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	mapper, _ := NewReflectionMapper[account, int64]("ID")
	g, err := NewCrudGateway[account, int64](db, Postgres, "accounts", "id", mapper,
		WithTransactions[account, int64](NewSQLTransactionManager(db)))
	if err != nil {
		t.Fatalf("NewCrudGateway() error = %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "accounts" ("id", "name", "status", "version") VALUES ($1, $2, $3, $4)`).
		WithArgs(int64(9), "explicit", nil, int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(pgSelect + ` WHERE "id" = $1`).
		WithArgs(int64(9)).
		WillReturnRows(accountRows().AddRow(int64(9), "explicit", nil, int64(0)))
	mock.ExpectCommit()

	if _, err := g.Create(context.Background(), &account{ID: 9, Name: "explicit"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCrudGateway_Create_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	mapper, _ := NewReflectionMapper[account, int64]("ID")
	g, _ := NewCrudGateway[account, int64](db, Postgres, "accounts", "id", mapper,
		WithTransactions[account, int64](NewSQLTransactionManager(db)))

	boom := errors.New("unique violation")
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "accounts" ("id", "name", "status", "version") VALUES ($1, $2, $3, $4)`).
		WillReturnError(boom)
	mock.ExpectRollback()

	if _, err := g.Create(context.Background(), &account{ID: 9}); !errors.Is(err, boom) {
		t.Fatalf("Create() error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

const pgUpdate = `UPDATE "accounts" SET "name" = $1, "status" = $2, "version" = $3 WHERE "id" = $4 AND "version" = $5`

func TestCrudGateway_Update_BumpsVersion(t *testing.T) {
	g, mock := newMockGateway(t, Postgres)

	mock.ExpectExec(pgUpdate).
		WithArgs("renamed", nil, int64(2), int64(1), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	input := &account{ID: 1, Name: "renamed", Version: 1}
	updated, err := g.Update(context.Background(), input)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}
	if input.Version != 1 {
		t.Errorf("caller's entity was mutated: version %d", input.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCrudGateway_Update_VersionConflict(t *testing.T) {
	g, mock := newMockGateway(t, Postgres)

	mock.ExpectExec(pgUpdate).
		WithArgs("stale", nil, int64(2), int64(1), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "version" FROM "accounts" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(4)))

	_, err := g.Update(context.Background(), &account{ID: 1, Name: "stale", Version: 1})
	appErr, ok := apperror.As(err)
	if !ok || appErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected 409 AppError, got %v", err)
	}
	var lockErr *OptimisticLockError
	if !errors.As(err, &lockErr) || lockErr.Expected != 1 || lockErr.Actual != 4 {
		t.Errorf("unexpected lock error: %+v", lockErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCrudGateway_Update_Missing(t *testing.T) {
	g, mock := newMockGateway(t, Postgres)

	mock.ExpectExec(pgUpdate).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "version" FROM "accounts" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	_, err := g.Update(context.Background(), &account{ID: 1, Version: 1})
	if !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCrudGateway_Delete(t *testing.T) {
	g, mock := newMockGateway(t, Postgres)

	mock.ExpectExec(`DELETE FROM "accounts" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "accounts" WHERE "id" = $1`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := g.Delete(context.Background(), &account{ID: 1}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := g.Delete(context.Background(), &account{ID: 2}); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("Delete() of missing row error = %v, want not found", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNewCrudGateway_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	mapper, _ := NewReflectionMapper[account, int64]("ID")

	if _, err := NewCrudGateway[account, int64](nil, Postgres, "accounts", "id", mapper); err == nil {
		t.Error("expected error for nil executor")
	}
	if _, err := NewCrudGateway[account, int64](db, Postgres, "accounts", "id", nil); err == nil {
		t.Error("expected error for nil mapper")
	}
	if _, err := NewCrudGateway[account, int64](db, Postgres, "accounts", "uuid", mapper); err == nil {
		t.Error("expected error for unmapped id column")
	}
}

func TestReflectionMapper(t *testing.T) {
	mapper, err := NewReflectionMapper[account, int64]("ID")
	if err != nil {
		t.Fatalf("NewReflectionMapper() error = %v", err)
	}
	if got := mapper.Columns(); len(got) != 4 || got[3] != "version" {
		t.Errorf("Columns() = %v", got)
	}

	status := "open"
	columns, values, err := mapper.ToRow(&account{ID: 3, Name: "n", Status: &status, Version: 1, Scratch: "x"})
	if err != nil {
		t.Fatalf("ToRow() error = %v", err)
	}
	if len(columns) != 4 || len(values) != 4 || values[0] != int64(3) {
		t.Errorf("ToRow() = %v, %v", columns, values)
	}

	a := &account{}
	mapper.SetID(a, 11)
	if mapper.GetID(a) != 11 {
		t.Errorf("GetID() = %d, want 11", mapper.GetID(a))
	}

	if _, err := NewReflectionMapper[account, int64]("Missing"); err == nil {
		t.Error("expected error for unknown id field")
	}
}
