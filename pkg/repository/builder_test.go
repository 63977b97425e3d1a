package repository

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/query"
)

var accountColumns = []string{"id", "name", "status", "version"}

func mustParse(t *testing.T, params map[string]string) query.Plan {
	t.Helper()
	plan, err := query.NewParser().Parse(params)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return plan
}

func TestCompiler_Select(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		params   map[string]string
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "defaults",
			dialect:  Postgres,
			params:   nil,
			wantSQL:  `SELECT "id", "name", "status", "version" FROM "accounts" ORDER BY "id" ASC LIMIT $1 OFFSET $2`,
			wantArgs: []interface{}{20, 0},
		},
		{
			name:    "predicates in field order",
			dialect: Postgres,
			params: map[string]string{
				"status":    `in:"open",null`,
				"name":      `neq:"x"`,
				"page_no":   "1",
				"page_size": "10",
				"sort_by":   "name:desc",
			},
			wantSQL: `SELECT "id", "name", "status", "version" FROM "accounts" WHERE "name" <> $1 AND ("status" IN ($2) OR "status" IS NULL) ORDER BY "name" DESC, "id" ASC LIMIT $3 OFFSET $4`,
			wantArgs: []interface{}{"x", "open", 10, 10},
		},
		{
			name:     "mysql placeholders",
			dialect:  MySQL,
			params:   map[string]string{"version": "gte:2", "status": "null"},
			wantSQL:  "SELECT `id`, `name`, `status`, `version` FROM `accounts` WHERE `status` = ? AND `version` >= ? ORDER BY `id` ASC LIMIT ? OFFSET ?",
			wantArgs: []interface{}{"null", int64(2), 20, 0},
		},
		{
			name:     "null operands",
			dialect:  Postgres,
			params:   map[string]string{"status": "eq:null", "name": "neq:null"},
			wantSQL:  `SELECT "id", "name", "status", "version" FROM "accounts" WHERE "name" IS NOT NULL AND "status" IS NULL ORDER BY "id" ASC LIMIT $1 OFFSET $2`,
			wantArgs: []interface{}{20, 0},
		},
		{
			name:     "nin",
			dialect:  Postgres,
			params:   map[string]string{"version": "nin:1,2", "status": `nin:"closed",null`},
			wantSQL:  `SELECT "id", "name", "status", "version" FROM "accounts" WHERE ("status" NOT IN ($1) AND "status" IS NOT NULL) AND "version" NOT IN ($2, $3) ORDER BY "id" ASC LIMIT $4 OFFSET $5`,
			wantArgs: []interface{}{"closed", int64(1), int64(2), 20, 0},
		},
		{
			name:     "only null in set",
			dialect:  Postgres,
			params:   map[string]string{"status": "in:null"},
			wantSQL:  `SELECT "id", "name", "status", "version" FROM "accounts" WHERE "status" IS NULL ORDER BY "id" ASC LIMIT $1 OFFSET $2`,
			wantArgs: []interface{}{20, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompiler(tt.dialect, "accounts", "id", accountColumns)
			stmt, err := c.Select(mustParse(t, tt.params))
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if stmt.SQL != tt.wantSQL {
				t.Errorf("SQL =\n%s\nwant\n%s", stmt.SQL, tt.wantSQL)
			}
			if !reflect.DeepEqual(stmt.Args, tt.wantArgs) {
				t.Errorf("Args = %#v, want %#v", stmt.Args, tt.wantArgs)
			}
		})
	}
}

func TestCompiler_Count(t *testing.T) {
	c := NewCompiler(Postgres, "accounts", "id", accountColumns)
	stmt, err := c.Count(mustParse(t, map[string]string{"name": `"a"`, "page_size": "5"}))
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	want := `SELECT COUNT(*) FROM "accounts" WHERE "name" = $1`
	if stmt.SQL != want {
		t.Errorf("SQL = %s, want %s", stmt.SQL, want)
	}
	if !reflect.DeepEqual(stmt.Args, []interface{}{`"a"`}) {
		t.Errorf("Args = %#v", stmt.Args)
	}
}

func TestCompiler_RejectsInvalidPlans(t *testing.T) {
	c := NewCompiler(Postgres, "accounts", "id", accountColumns)

	sorted := query.NewPlan()
	sorted.Sort = query.Sort{Field: "password", Direction: query.Ascending}

	tests := []struct {
		name string
		plan query.Plan
	}{
		{"unknown filter column", query.NewPlan().Where("password", query.OpEq, query.String("x"))},
		{"injection attempt", query.NewPlan().Where("name; DROP TABLE accounts", query.OpEq, query.Int(1))},
		{"unknown sort column", sorted},
		{"list on scalar operator", query.NewPlan().Where("version", query.OpGt, query.List(query.Int(1), query.Int(2)))},
		{"ordered null", query.NewPlan().Where("version", query.OpLt, query.Null())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Select(tt.plan)
			appErr, ok := apperror.As(err)
			if !ok || appErr.HTTPStatus != http.StatusBadRequest {
				t.Fatalf("expected 400 AppError, got %v", err)
			}
		})
	}
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"postgres", "postgresql", "mysql"} {
		if _, err := DialectFor(name); err != nil {
			t.Errorf("DialectFor(%q) error = %v", name, err)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Error("expected error for unsupported dialect")
	}
	if got := Postgres.Quote(`we"ird`); got != `"we""ird"` {
		t.Errorf("Quote() = %s", got)
	}
}
