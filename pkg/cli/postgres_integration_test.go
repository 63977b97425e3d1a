//go:build integration

package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/migrate"
	"github.com/nimburion/crudkit/pkg/notes"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/store"
	"github.com/nimburion/crudkit/pkg/testutil"
)

func TestNotesOnPostgres_Integration(t *testing.T) {
	testutil.Integration(t)
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("notes"),
		tcpostgres.WithUsername("crudkit"),
		tcpostgres.WithPassword("crudkit"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.RouterType = "gin"
	cfg.Database.Type = config.DatabaseTypePostgres
	cfg.Database.URL = url
	log := logger.NewNop()

	adapter, err := store.NewSQLAdapter(cfg.Database, log)
	if err != nil {
		t.Fatalf("NewSQLAdapter() error = %v", err)
	}
	defer adapter.Close()
	if err := runMigrations(ctx, cfg, log, adapter, migrate.CommandUp, 1); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	svc, err := BuildService(ctx, cfg, log)
	if err != nil {
		t.Fatalf("BuildService() error = %v", err)
	}
	defer svc.Close(context.Background())

	do := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		svc.Servers.Public.Router().ServeHTTP(rec, req)
		return rec
	}

	for _, title := range []string{"alpha", "beta", "gamma"} {
		if rec := do(http.MethodPost, "/api/notes", `{"title":"`+title+`"}`); rec.Code != http.StatusCreated {
			t.Fatalf("create %s status = %d body = %s", title, rec.Code, rec.Body)
		}
	}

	rec := do(http.MethodGet, "/api/notes?id=gt:1&sort_by=title:desc&page_size=1", "")
	var page struct {
		Items      []notes.Note `json:"items"`
		TotalCount int64        `json:"total_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v (%s)", err, rec.Body)
	}
	if page.TotalCount != 2 || len(page.Items) != 1 || page.Items[0].Title != "gamma" {
		t.Fatalf("unexpected page %+v", page)
	}

	if rec := do(http.MethodPut, "/api/notes/1", `{"title":"alpha 2","version":1}`); rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body = %s", rec.Code, rec.Body)
	}
	if rec := do(http.MethodPut, "/api/notes/1", `{"title":"stale","version":1}`); rec.Code != http.StatusConflict {
		t.Fatalf("stale update status = %d body = %s", rec.Code, rec.Body)
	}
	if rec := do(http.MethodDelete, "/api/notes/2", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d body = %s", rec.Code, rec.Body)
	}
	if rec := do(http.MethodGet, "/api/notes/2", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("read deleted status = %d", rec.Code)
	}

	if err := runMigrations(ctx, cfg, log, adapter, migrate.CommandDown, 2); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
}
