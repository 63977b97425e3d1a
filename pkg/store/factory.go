package store

import (
	"fmt"
	"strings"

	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/store/mongodb"
	"github.com/nimburion/crudkit/pkg/store/mysql"
	"github.com/nimburion/crudkit/pkg/store/postgres"
	"github.com/nimburion/crudkit/pkg/store/redis"
)

// NewSQLAdapter opens the relational database selected by cfg.Type.
func NewSQLAdapter(cfg config.DatabaseConfig, log logger.Logger) (SQLAdapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.DatabaseTypePostgres:
		adapter, err := postgres.NewAdapter(postgres.Config{
			URL:             cfg.URL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			ConnectTimeout:  cfg.ConnectTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case config.DatabaseTypeMySQL:
		adapter, err := mysql.NewAdapter(mysql.Config{
			URL:             cfg.URL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			ConnectTimeout:  cfg.ConnectTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unsupported sql database.type %q (supported: postgres, mysql)", cfg.Type)
	}
}

// NewDocumentAdapter connects to MongoDB.
func NewDocumentAdapter(cfg config.DatabaseConfig, log logger.Logger) (*mongodb.Adapter, error) {
	if !strings.EqualFold(strings.TrimSpace(cfg.Type), config.DatabaseTypeMongoDB) {
		return nil, fmt.Errorf("unsupported document database.type %q (supported: mongodb)", cfg.Type)
	}
	maxPool := uint64(0)
	if cfg.MaxOpenConns > 0 {
		maxPool = uint64(cfg.MaxOpenConns)
	}
	return mongodb.NewAdapter(mongodb.Config{
		URL:            cfg.URL,
		Database:       cfg.DatabaseName,
		MaxPoolSize:    maxPool,
		ConnectTimeout: cfg.ConnectTimeout,
	}, log)
}

// NewCacheAdapter connects to redis. It returns nil, nil when the cache is disabled.
func NewCacheAdapter(cfg config.CacheConfig, log logger.Logger) (*redis.Adapter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return redis.NewAdapter(redis.Config{
		URL:              cfg.URL,
		MaxConns:         cfg.MaxConns,
		OperationTimeout: cfg.OperationTimeout,
	}, log)
}
