package config

import "time"

// Database type constants
const (
	// DatabaseTypeMemory keeps entities in process memory
	DatabaseTypeMemory = "memory"
	// DatabaseTypePostgres represents PostgreSQL database
	DatabaseTypePostgres = "postgres"
	// DatabaseTypeMySQL represents MySQL database
	DatabaseTypeMySQL = "mysql"
	// DatabaseTypeMongoDB represents MongoDB database
	DatabaseTypeMongoDB = "mongodb"
)

// Event bus type constants
const (
	// EventBusTypeNone disables lifecycle event publishing
	EventBusTypeNone = "none"
	// EventBusTypeKafka represents Apache Kafka event bus
	EventBusTypeKafka = "kafka"
	// EventBusTypeRabbitMQ represents RabbitMQ event bus
	EventBusTypeRabbitMQ = "rabbitmq"
)

// Router type constants
const (
	RouterTypeNetHTTP = "nethttp"
	RouterTypeGin     = "gin"
	RouterTypeGorilla = "gorilla"
)

// RouterTypes lists the accepted router_type values.
var RouterTypes = []string{RouterTypeNetHTTP, RouterTypeGin, RouterTypeGorilla}

// Config is the root configuration of a crudkit service.
type Config struct {
	RouterType    string              `mapstructure:"router_type" yaml:"router_type"`
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	HTTP          HTTPConfig          `mapstructure:"http" yaml:"http"`
	Management    ManagementConfig    `mapstructure:"management" yaml:"management"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Query         QueryConfig         `mapstructure:"query" yaml:"query"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	EventBus      EventBusConfig      `mapstructure:"eventbus" yaml:"eventbus"`
	Auth          AuthConfig          `mapstructure:"auth" yaml:"auth"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// HTTPConfig configures the public API server
type HTTPConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	BasePath        string        `mapstructure:"base_path" yaml:"base_path"`

	// RateLimitRPS is the per-client request rate of the public API. Zero disables limiting.
	RateLimitRPS   int `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// ManagementConfig configures the management server serving metrics, health and version.
type ManagementConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json, text
}

// QueryConfig configures list query parsing.
type QueryConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size" yaml:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size" yaml:"max_page_size"`
}

// DatabaseConfig configures the gateway backing the served resource.
type DatabaseConfig struct {
	Type            string        `mapstructure:"type" yaml:"type"` // memory, postgres, mysql, mongodb
	URL             string        `mapstructure:"url" yaml:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	DatabaseName    string        `mapstructure:"database_name" yaml:"database_name"`
	Table           string        `mapstructure:"table" yaml:"table"`
}

// CacheConfig configures the redis read-through cache for single entity reads.
type CacheConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	URL              string        `mapstructure:"url" yaml:"url"`
	MaxConns         int           `mapstructure:"max_conns" yaml:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	TTL              time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Prefix           string        `mapstructure:"prefix" yaml:"prefix"`
}

// EventBusConfig configures lifecycle event publishing.
type EventBusConfig struct {
	Type             string        `mapstructure:"type" yaml:"type"` // none, kafka, rabbitmq
	Brokers          []string      `mapstructure:"brokers" yaml:"brokers"`
	URL              string        `mapstructure:"url" yaml:"url"`
	Topic            string        `mapstructure:"topic" yaml:"topic"`
	Exchange         string        `mapstructure:"exchange" yaml:"exchange"`
	Format           string        `mapstructure:"format" yaml:"format"` // json, protobuf
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	Strict           bool          `mapstructure:"strict" yaml:"strict"`

	// BreakerFailures consecutive publish failures open the circuit. Zero disables the breaker.
	BreakerFailures int           `mapstructure:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// AuthConfig configures bearer token authentication.
type AuthConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	HMACSecret  string `mapstructure:"hmac_secret" yaml:"hmac_secret"`
	Issuer      string `mapstructure:"issuer" yaml:"issuer"`
	Audience    string `mapstructure:"audience" yaml:"audience"`
	ScopePrefix string `mapstructure:"scope_prefix" yaml:"scope_prefix"`
}

// ObservabilityConfig configures metrics and tracing
type ObservabilityConfig struct {
	MetricsEnabled    bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPath       string  `mapstructure:"metrics_path" yaml:"metrics_path"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
}

// SecretKeys lists the dotted setting keys whose values are masked when configuration is
// displayed.
var SecretKeys = []string{
	"database.url",
	"cache.url",
	"eventbus.url",
	"auth.hmac_secret",
}

// DefaultConfig returns a configuration serving an in-memory resource on port 8080.
func DefaultConfig() *Config {
	return &Config{
		RouterType: RouterTypeGin,
		Service: ServiceConfig{
			Name:        "crudkit",
			Environment: "production",
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			BasePath:        "/api",
		},
		Management: ManagementConfig{
			Enabled: true,
			Port:    9090,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Query: QueryConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Database: DatabaseConfig{
			Type:            DatabaseTypeMemory,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    10 * time.Second,
			ConnectTimeout:  5 * time.Second,
			Table:           "notes",
		},
		Cache: CacheConfig{
			MaxConns:         10,
			OperationTimeout: 2 * time.Second,
			TTL:              5 * time.Minute,
			Prefix:           "crudkit",
		},
		EventBus: EventBusConfig{
			Type:             EventBusTypeNone,
			Topic:            "crudkit.events",
			Format:           "json",
			OperationTimeout: 5 * time.Second,
			BreakerFailures:  5,
			BreakerCooldown:  30 * time.Second,
		},
		Auth: AuthConfig{
			ScopePrefix: "notes",
		},
		Observability: ObservabilityConfig{
			MetricsEnabled:    true,
			MetricsPath:       "/metrics",
			TracingSampleRate: 0.1,
		},
	}
}
