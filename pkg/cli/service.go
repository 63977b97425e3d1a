package cli

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/nimburion/crudkit/pkg/auth"
	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/controller"
	"github.com/nimburion/crudkit/pkg/eventbus"
	eventbusfactory "github.com/nimburion/crudkit/pkg/eventbus/factory"
	"github.com/nimburion/crudkit/pkg/gateway/memory"
	"github.com/nimburion/crudkit/pkg/health"
	"github.com/nimburion/crudkit/pkg/middleware/authn"
	"github.com/nimburion/crudkit/pkg/notes"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/observability/metrics"
	"github.com/nimburion/crudkit/pkg/observability/tracing"
	"github.com/nimburion/crudkit/pkg/query"
	"github.com/nimburion/crudkit/pkg/repository"
	"github.com/nimburion/crudkit/pkg/repository/document"
	"github.com/nimburion/crudkit/pkg/resilience"
	"github.com/nimburion/crudkit/pkg/resource"
	"github.com/nimburion/crudkit/pkg/resource/cache"
	"github.com/nimburion/crudkit/pkg/resource/events"
	"github.com/nimburion/crudkit/pkg/server"
	"github.com/nimburion/crudkit/pkg/server/router"
	"github.com/nimburion/crudkit/pkg/server/router/factory"
	"github.com/nimburion/crudkit/pkg/store"
	"github.com/nimburion/crudkit/pkg/version"
)

// AdminRole bypasses the owner check of the notes ACL.
const AdminRole = "admin"

type noteGateway = resource.Gateway[notes.Note, int64]

// Service is the assembled notes API with every collaborator selected by configuration.
type Service struct {
	Servers      *server.HTTPServers
	Orchestrator *resource.Orchestrator[notes.Note, int64]
	Health       *health.Registry
	Metrics      *metrics.Registry
	// ShutdownHooks release adapters in reverse order of acquisition.
	ShutdownHooks []server.LifecycleHook
	// SQL is set when the gateway is backed by postgres or mysql.
	SQL store.SQLAdapter
}

// Close runs the shutdown hooks. It is used when the service is built but never run.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	for _, hook := range s.ShutdownHooks {
		if err := hook.Fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run serves until SIGINT or SIGTERM. startup hooks run before the servers accept requests.
func (s *Service) Run(log logger.Logger, startup ...server.LifecycleHook) error {
	return server.RunHTTPServersWithSignals(s.Servers, server.RunOptions{
		Logger:        log,
		StartupHooks:  startup,
		ShutdownHooks: s.ShutdownHooks,
	})
}

// BuildService wires the notes resource from cfg. On error every adapter opened so far is
// closed again.
func BuildService(ctx context.Context, cfg *config.Config, log logger.Logger) (svc *Service, err error) {
	svc = &Service{Health: health.NewRegistry()}
	// Hooks are collected in acquisition order and reversed at the end.
	var closers []server.LifecycleHook
	defer func() {
		reverse(closers)
		svc.ShutdownHooks = closers
		if err != nil {
			if closeErr := svc.Close(context.Background()); closeErr != nil {
				log.Warn("failed to release adapters", "error", closeErr)
			}
			svc = nil
		}
	}()

	info := version.Current(cfg.Service.Name)
	tp, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: info.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return svc, fmt.Errorf("create tracer provider: %w", err)
	}
	closers = append(closers, server.LifecycleHook{Name: "tracer", Fn: tp.Shutdown})

	var (
		opMetrics    resource.Recorder
		cacheMetrics cache.ResultRecorder
		eventMetrics events.PublishRecorder
	)
	if cfg.Observability.MetricsEnabled {
		svc.Metrics = metrics.NewRegistry()
		om, err := metrics.NewOperationMetrics(svc.Metrics)
		if err != nil {
			return svc, err
		}
		cm, err := metrics.NewCacheMetrics(svc.Metrics)
		if err != nil {
			return svc, err
		}
		em, err := metrics.NewEventMetrics(svc.Metrics)
		if err != nil {
			return svc, err
		}
		opMetrics, cacheMetrics, eventMetrics = om, cm, em
	}

	gateway, gatewayClosers, err := newGateway(cfg, log, svc)
	closers = append(closers, gatewayClosers...)
	if err != nil {
		return svc, err
	}

	cacheAdapter, err := store.NewCacheAdapter(cfg.Cache, log)
	if err != nil {
		return svc, fmt.Errorf("connect cache: %w", err)
	}
	if cacheAdapter != nil {
		closers = append(closers, closeHook("cache", cacheAdapter.Close))
		svc.Health.Register(health.NewAdapterChecker("cache", cacheAdapter, 0))
		gateway, err = cache.New[notes.Note, int64](gateway, cacheAdapter, cache.Config[notes.Note, int64]{
			Name:    notes.Name,
			TTL:     cfg.Cache.TTL,
			Prefix:  cfg.Cache.Prefix,
			Logger:  log,
			Metrics: cacheMetrics,
		})
		if err != nil {
			return svc, err
		}
	}

	hooks := resource.HookChain[notes.Note, int64]{notes.Hooks{}}
	producer, err := eventbusfactory.NewProducer(cfg.EventBus, log)
	if err != nil {
		return svc, fmt.Errorf("connect eventbus: %w", err)
	}
	if producer != nil {
		closers = append(closers, closeHook("eventbus", producer.Close))
		svc.Health.Register(health.NewAdapterChecker("eventbus", producer, 0))
		producer = guardProducer(producer, cfg.EventBus, log)
		serializer, err := eventbus.SerializerFor(cfg.EventBus.Format)
		if err != nil {
			return svc, err
		}
		publishing, err := events.New[notes.Note, int64](events.Config[notes.Note, int64]{
			Resource:   notes.Name,
			Topic:      cfg.EventBus.Topic,
			Producer:   producer,
			Serializer: serializer,
			System:     strings.ToLower(cfg.EventBus.Type),
			Logger:     log,
			Metrics:    eventMetrics,
			Strict:     cfg.EventBus.Strict,
		})
		if err != nil {
			return svc, err
		}
		hooks = append(hooks, publishing)
	}

	var acl resource.ACL[notes.Note] = resource.DefaultACL[notes.Note]{}
	var routeMiddleware []router.MiddlewareFunc
	if cfg.Auth.Enabled {
		validator, err := auth.NewHMACValidator(cfg.Auth.HMACSecret,
			auth.WithIssuer(cfg.Auth.Issuer),
			auth.WithAudience(cfg.Auth.Audience),
			auth.WithLogger(log),
		)
		if err != nil {
			return svc, fmt.Errorf("create token validator: %w", err)
		}
		acl = auth.ScopeACL[notes.Note]{
			Prefix:     cfg.Auth.ScopePrefix,
			Owner:      notes.OwnerOf,
			AdminRoles: []string{AdminRole},
		}
		routeMiddleware = append(routeMiddleware, authn.Authenticate(validator, log))
	}

	svc.Orchestrator, err = resource.NewOrchestrator[notes.Note, int64](gateway, resource.Config[notes.Note, int64]{
		Name:  notes.Name,
		ACL:   acl,
		Hooks: hooks,
		Parser: query.NewParser(
			query.WithDefaultPageSize(cfg.Query.DefaultPageSize),
			query.WithMaxPageSize(cfg.Query.MaxPageSize),
		),
		Logger:  log,
		Metrics: opMetrics,
		Tracer:  tp.Tracer("crudkit/resource"),
	})
	if err != nil {
		return svc, err
	}

	publicRouter, err := factory.NewRouter(cfg.RouterType)
	if err != nil {
		return svc, err
	}
	public := server.NewPublicAPIServer(cfg.HTTP, cfg.Observability, publicRouter, log, svc.Metrics)
	controller.NewResource(svc.Orchestrator, controller.ParseInt64ID).
		Register(publicRouter, ResourcePath(cfg.HTTP.BasePath), routeMiddleware...)
	svc.Servers = &server.HTTPServers{Public: public}

	if cfg.Management.Enabled {
		managementRouter, err := factory.NewRouter(cfg.RouterType)
		if err != nil {
			return svc, err
		}
		svc.Servers.Management = server.NewManagementServer(cfg.Management, cfg.Observability.MetricsPath,
			managementRouter, log, svc.Health, svc.Metrics, info)
	}

	log.Info("service assembled",
		"router", cfg.RouterType,
		"database", cfg.Database.Type,
		"cache", cacheAdapter != nil,
		"eventbus", producer != nil,
		"auth", cfg.Auth.Enabled,
		"path", ResourcePath(cfg.HTTP.BasePath),
	)
	return svc, nil
}

// ResourcePath returns the mount path of the notes resource under basePath.
func ResourcePath(basePath string) string {
	return path.Join("/", basePath, notes.Name)
}

func newGateway(cfg *config.Config, log logger.Logger, svc *Service) (noteGateway, []server.LifecycleHook, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Database.Type)) {
	case config.DatabaseTypeMemory:
		gw, err := memory.New[notes.Note, int64](memory.WithIDGenerator[notes.Note, int64](memory.Sequence(1)))
		return gw, nil, err
	case config.DatabaseTypePostgres, config.DatabaseTypeMySQL:
		adapter, err := store.NewSQLAdapter(cfg.Database, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		closers := []server.LifecycleHook{closeHook("database", adapter.Close)}
		svc.SQL = adapter
		svc.Health.Register(health.NewAdapterChecker("database", adapter, 0))
		gw, err := newSQLGateway(adapter, cfg.Database)
		return gw, closers, err
	case config.DatabaseTypeMongoDB:
		adapter, err := store.NewDocumentAdapter(cfg.Database, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		closers := []server.LifecycleHook{closeHook("database", adapter.Close)}
		svc.Health.Register(health.NewAdapterChecker("database", adapter, 0))
		gw, err := document.NewMongoGateway[notes.Note, int64](
			adapter.Collection(cfg.Database.Table),
			document.WithIDGenerator[notes.Note, int64](notes.TimeOrderedIDs()),
		)
		return gw, closers, err
	default:
		return nil, nil, fmt.Errorf("unsupported database.type %q", cfg.Database.Type)
	}
}

func newSQLGateway(adapter store.SQLAdapter, cfg config.DatabaseConfig) (noteGateway, error) {
	mapper, err := repository.NewReflectionMapper[notes.Note, int64]("ID")
	if err != nil {
		return nil, err
	}
	return repository.NewCrudGateway[notes.Note, int64](
		adapter.DB(),
		adapter.Dialect(),
		cfg.Table,
		"id",
		mapper,
		repository.WithTransactions[notes.Note, int64](repository.NewSQLTransactionManager(adapter.DB())),
		repository.WithQueryTimeout[notes.Note, int64](cfg.QueryTimeout),
	)
}

func guardProducer(p eventbus.Producer, cfg config.EventBusConfig, log logger.Logger) eventbus.Producer {
	var breaker *resilience.Breaker
	if cfg.BreakerFailures > 0 {
		breaker = resilience.NewBreaker(cfg.BreakerFailures, cfg.BreakerCooldown,
			resilience.OnStateChange(func(from, to resilience.State) {
				log.Warn("eventbus circuit breaker changed state", "from", from.String(), "to", to.String())
			}))
	}
	return resilience.GuardProducer(p, breaker, cfg.OperationTimeout)
}

func closeHook(name string, closeFn func() error) server.LifecycleHook {
	return server.LifecycleHook{Name: name, Fn: func(context.Context) error { return closeFn() }}
}

func reverse(hooks []server.LifecycleHook) {
	for i, j := 0, len(hooks)-1; i < j; i, j = i+1, j-1 {
		hooks[i], hooks[j] = hooks[j], hooks[i]
	}
}
