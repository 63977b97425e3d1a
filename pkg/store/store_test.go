package store

import (
	"context"
	"strings"
	"testing"

	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/store/mysql"
	"github.com/nimburion/crudkit/pkg/store/postgres"
)

type fakeAdapter struct{}

func (f *fakeAdapter) HealthCheck(context.Context) error { return nil }
func (f *fakeAdapter) Close() error                      { return nil }

func TestAdapterContracts(t *testing.T) {
	var _ Adapter = (*fakeAdapter)(nil)
	var _ SQLAdapter = (*postgres.Adapter)(nil)
	var _ SQLAdapter = (*mysql.Adapter)(nil)
}

func TestNewSQLAdapter_UnsupportedType(t *testing.T) {
	for _, typ := range []string{"", "memory", "mongodb", "sqlite"} {
		_, err := NewSQLAdapter(config.DatabaseConfig{Type: typ}, logger.NewNop())
		if err == nil || !strings.Contains(err.Error(), "unsupported sql database.type") {
			t.Errorf("NewSQLAdapter(%q) error = %v", typ, err)
		}
	}
}

func TestNewSQLAdapter_PropagatesValidation(t *testing.T) {
	_, err := NewSQLAdapter(config.DatabaseConfig{Type: "postgres"}, logger.NewNop())
	if err == nil || !strings.Contains(err.Error(), "URL is required") {
		t.Fatalf("NewSQLAdapter() error = %v", err)
	}
}

func TestNewDocumentAdapter_UnsupportedType(t *testing.T) {
	if _, err := NewDocumentAdapter(config.DatabaseConfig{Type: "postgres"}, logger.NewNop()); err == nil {
		t.Fatal("expected unsupported type error")
	}
}

func TestNewCacheAdapter_Disabled(t *testing.T) {
	adapter, err := NewCacheAdapter(config.CacheConfig{Enabled: false}, logger.NewNop())
	if err != nil {
		t.Fatalf("expected no error when disabled, got %v", err)
	}
	if adapter != nil {
		t.Fatal("expected nil adapter when disabled")
	}
}

func TestNewCacheAdapter_RequiresURL(t *testing.T) {
	if _, err := NewCacheAdapter(config.CacheConfig{Enabled: true}, logger.NewNop()); err == nil {
		t.Fatal("expected error for missing url")
	}
}
