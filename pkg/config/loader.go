package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "APP")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// ConfigFile returns the path of the configuration file, or empty string if none.
func (l *ViperLoader) ConfigFile() string {
	return l.configFile
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	cfg, _, err := l.LoadSettings()
	return cfg, err
}

// LoadSettings loads and validates the configuration and also returns the merged settings
// as a nested map keyed by setting name.
func (l *ViperLoader) LoadSettings() (*Config, map[string]interface{}, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	// Environment variables override file config through explicit bindings.
	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, v.AllSettings(), nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("router_type", l.prefixedEnv("ROUTER_TYPE"))
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// HTTP
	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"))
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))
	v.BindEnv("http.shutdown_timeout", l.prefixedEnv("HTTP_SHUTDOWN_TIMEOUT"))
	v.BindEnv("http.base_path", l.prefixedEnv("HTTP_BASE_PATH"))
	v.BindEnv("http.rate_limit_rps", l.prefixedEnv("HTTP_RATE_LIMIT_RPS"))
	v.BindEnv("http.rate_limit_burst", l.prefixedEnv("HTTP_RATE_LIMIT_BURST"))

	// Management
	v.BindEnv("management.enabled", l.prefixedEnv("MGMT_ENABLED"))
	v.BindEnv("management.port", l.prefixedEnv("MGMT_PORT"))

	// Log
	v.BindEnv("log.level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("log.format", l.prefixedEnv("LOG_FORMAT"))

	// Query
	v.BindEnv("query.default_page_size", l.prefixedEnv("QUERY_DEFAULT_PAGE_SIZE"))
	v.BindEnv("query.max_page_size", l.prefixedEnv("QUERY_MAX_PAGE_SIZE"))

	// Database
	v.BindEnv("database.type", l.prefixedEnv("DB_TYPE"))
	v.BindEnv("database.url", l.prefixedEnv("DB_URL"))
	v.BindEnv("database.max_open_conns", l.prefixedEnv("DB_MAX_OPEN_CONNS"))
	v.BindEnv("database.max_idle_conns", l.prefixedEnv("DB_MAX_IDLE_CONNS"))
	v.BindEnv("database.conn_max_lifetime", l.prefixedEnv("DB_CONN_MAX_LIFETIME"))
	v.BindEnv("database.conn_max_idle_time", l.prefixedEnv("DB_CONN_MAX_IDLE_TIME"))
	v.BindEnv("database.query_timeout", l.prefixedEnv("DB_QUERY_TIMEOUT"))
	v.BindEnv("database.connect_timeout", l.prefixedEnv("DB_CONNECT_TIMEOUT"))
	v.BindEnv("database.database_name", l.prefixedEnv("DB_DATABASE_NAME"))
	v.BindEnv("database.table", l.prefixedEnv("DB_TABLE"))

	// Cache
	v.BindEnv("cache.enabled", l.prefixedEnv("CACHE_ENABLED"))
	v.BindEnv("cache.url", l.prefixedEnv("CACHE_URL"))
	v.BindEnv("cache.max_conns", l.prefixedEnv("CACHE_MAX_CONNS"))
	v.BindEnv("cache.operation_timeout", l.prefixedEnv("CACHE_OPERATION_TIMEOUT"))
	v.BindEnv("cache.ttl", l.prefixedEnv("CACHE_TTL"))
	v.BindEnv("cache.prefix", l.prefixedEnv("CACHE_PREFIX"))

	// Event bus
	v.BindEnv("eventbus.type", l.prefixedEnv("EVENTBUS_TYPE"))
	v.BindEnv("eventbus.brokers", l.prefixedEnv("EVENTBUS_BROKERS"))
	v.BindEnv("eventbus.url", l.prefixedEnv("EVENTBUS_URL"))
	v.BindEnv("eventbus.topic", l.prefixedEnv("EVENTBUS_TOPIC"))
	v.BindEnv("eventbus.exchange", l.prefixedEnv("EVENTBUS_EXCHANGE"))
	v.BindEnv("eventbus.format", l.prefixedEnv("EVENTBUS_FORMAT"))
	v.BindEnv("eventbus.operation_timeout", l.prefixedEnv("EVENTBUS_OPERATION_TIMEOUT"))
	v.BindEnv("eventbus.strict", l.prefixedEnv("EVENTBUS_STRICT"))
	v.BindEnv("eventbus.breaker_failures", l.prefixedEnv("EVENTBUS_BREAKER_FAILURES"))
	v.BindEnv("eventbus.breaker_cooldown", l.prefixedEnv("EVENTBUS_BREAKER_COOLDOWN"))

	// Auth
	v.BindEnv("auth.enabled", l.prefixedEnv("AUTH_ENABLED"))
	v.BindEnv("auth.hmac_secret", l.prefixedEnv("AUTH_HMAC_SECRET"))
	v.BindEnv("auth.issuer", l.prefixedEnv("AUTH_ISSUER"))
	v.BindEnv("auth.audience", l.prefixedEnv("AUTH_AUDIENCE"))
	v.BindEnv("auth.scope_prefix", l.prefixedEnv("AUTH_SCOPE_PREFIX"))

	// Observability
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("METRICS_ENABLED"))
	v.BindEnv("observability.metrics_path", l.prefixedEnv("METRICS_PATH"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "APP"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("router_type", cfg.RouterType)
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.rate_limit_rps", cfg.HTTP.RateLimitRPS)
	v.SetDefault("http.rate_limit_burst", cfg.HTTP.RateLimitBurst)

	v.SetDefault("management.enabled", cfg.Management.Enabled)
	v.SetDefault("management.port", cfg.Management.Port)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("query.default_page_size", cfg.Query.DefaultPageSize)
	v.SetDefault("query.max_page_size", cfg.Query.MaxPageSize)

	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", cfg.Database.ConnMaxIdleTime)
	v.SetDefault("database.query_timeout", cfg.Database.QueryTimeout)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.database_name", cfg.Database.DatabaseName)
	v.SetDefault("database.table", cfg.Database.Table)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.url", cfg.Cache.URL)
	v.SetDefault("cache.max_conns", cfg.Cache.MaxConns)
	v.SetDefault("cache.operation_timeout", cfg.Cache.OperationTimeout)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.prefix", cfg.Cache.Prefix)

	v.SetDefault("eventbus.type", cfg.EventBus.Type)
	v.SetDefault("eventbus.brokers", cfg.EventBus.Brokers)
	v.SetDefault("eventbus.url", cfg.EventBus.URL)
	v.SetDefault("eventbus.topic", cfg.EventBus.Topic)
	v.SetDefault("eventbus.exchange", cfg.EventBus.Exchange)
	v.SetDefault("eventbus.format", cfg.EventBus.Format)
	v.SetDefault("eventbus.operation_timeout", cfg.EventBus.OperationTimeout)
	v.SetDefault("eventbus.strict", cfg.EventBus.Strict)
	v.SetDefault("eventbus.breaker_failures", cfg.EventBus.BreakerFailures)
	v.SetDefault("eventbus.breaker_cooldown", cfg.EventBus.BreakerCooldown)

	v.SetDefault("auth.enabled", cfg.Auth.Enabled)
	v.SetDefault("auth.hmac_secret", cfg.Auth.HMACSecret)
	v.SetDefault("auth.issuer", cfg.Auth.Issuer)
	v.SetDefault("auth.audience", cfg.Auth.Audience)
	v.SetDefault("auth.scope_prefix", cfg.Auth.ScopePrefix)

	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.metrics_path", cfg.Observability.MetricsPath)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
}

// Validate validates the configuration and returns every problem found, joined.
func (l *ViperLoader) Validate(cfg *Config) error {
	return cfg.Validate()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	c.EventBus.Brokers = normalizeStringSlice(c.EventBus.Brokers)
	c.RouterType = strings.ToLower(strings.TrimSpace(c.RouterType))
	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
	c.EventBus.Type = strings.ToLower(strings.TrimSpace(c.EventBus.Type))

	if !contains(RouterTypes, c.RouterType) {
		errs = append(errs, fmt.Errorf("invalid router_type: %s (must be one of: %v)", c.RouterType, RouterTypes))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http.port: %d (must be between 1 and 65535)", c.HTTP.Port))
	}
	if c.HTTP.BasePath != "" && !strings.HasPrefix(c.HTTP.BasePath, "/") {
		errs = append(errs, fmt.Errorf("http.base_path must start with '/': %s", c.HTTP.BasePath))
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		errs = append(errs, errors.New("http.rate_limit_rps and http.rate_limit_burst must not be negative"))
	}
	if c.Management.Enabled {
		if c.Management.Port <= 0 || c.Management.Port > 65535 {
			errs = append(errs, fmt.Errorf("invalid management.port: %d (must be between 1 and 65535)", c.Management.Port))
		}
		if c.HTTP.Port == c.Management.Port {
			errs = append(errs, errors.New("http.port and management.port must be different"))
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("invalid log.level: %s (must be one of: %v)", c.Log.Level, validLogLevels))
	}
	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("invalid log.format: %s (must be one of: %v)", c.Log.Format, validLogFormats))
	}

	if c.Query.DefaultPageSize <= 0 {
		errs = append(errs, errors.New("query.default_page_size must be greater than 0"))
	}
	if c.Query.MaxPageSize < c.Query.DefaultPageSize {
		errs = append(errs, errors.New("query.max_page_size must not be smaller than query.default_page_size"))
	}

	validDatabaseTypes := []string{DatabaseTypeMemory, DatabaseTypePostgres, DatabaseTypeMySQL, DatabaseTypeMongoDB}
	switch {
	case !contains(validDatabaseTypes, c.Database.Type):
		errs = append(errs, fmt.Errorf("invalid database.type: %s (must be one of: %v)", c.Database.Type, validDatabaseTypes))
	case c.Database.Type != DatabaseTypeMemory && c.Database.URL == "":
		errs = append(errs, errors.New("database.url is required when database.type is not memory"))
	}
	if c.Database.Type == DatabaseTypeMongoDB && c.Database.DatabaseName == "" {
		errs = append(errs, errors.New("database.database_name is required for MongoDB"))
	}
	if strings.TrimSpace(c.Database.Table) == "" {
		errs = append(errs, errors.New("database.table is required"))
	}

	if c.Cache.Enabled {
		if c.Cache.URL == "" {
			errs = append(errs, errors.New("cache.url is required when cache is enabled"))
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, errors.New("cache.ttl must be greater than 0 when cache is enabled"))
		}
	}

	validEventBusTypes := []string{EventBusTypeNone, EventBusTypeKafka, EventBusTypeRabbitMQ}
	switch c.EventBus.Type {
	case "", EventBusTypeNone:
	case EventBusTypeKafka:
		if len(c.EventBus.Brokers) == 0 {
			errs = append(errs, errors.New("eventbus.brokers is required for Kafka"))
		}
		if c.EventBus.Topic == "" {
			errs = append(errs, errors.New("eventbus.topic is required for Kafka"))
		}
	case EventBusTypeRabbitMQ:
		if c.EventBus.URL == "" {
			errs = append(errs, errors.New("eventbus.url is required for RabbitMQ"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid eventbus.type: %s (must be one of: %v)", c.EventBus.Type, validEventBusTypes))
	}
	c.EventBus.Format = strings.ToLower(strings.TrimSpace(c.EventBus.Format))
	if c.EventBus.Format != "" && !contains([]string{"json", "protobuf"}, c.EventBus.Format) {
		errs = append(errs, fmt.Errorf("invalid eventbus.format: %s (must be json or protobuf)", c.EventBus.Format))
	}
	if c.EventBus.BreakerFailures < 0 {
		errs = append(errs, errors.New("eventbus.breaker_failures must not be negative"))
	}
	if c.EventBus.BreakerFailures > 0 && c.EventBus.BreakerCooldown <= 0 {
		errs = append(errs, errors.New("eventbus.breaker_cooldown must be greater than 0 when the breaker is enabled"))
	}

	if c.Auth.Enabled && len(c.Auth.HMACSecret) < 32 {
		errs = append(errs, errors.New("auth.hmac_secret must be at least 32 bytes when auth is enabled"))
	}

	if c.Observability.TracingEnabled {
		if c.Observability.TracingEndpoint == "" {
			errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
		}
		if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
			errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
		}
	}
	if c.Observability.MetricsEnabled && !strings.HasPrefix(c.Observability.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics_path must start with '/': %s", c.Observability.MetricsPath))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Redact returns a copy of settings where every key listed in SecretKeys holding a
// non-empty value is replaced with "***". Credentials embedded in URLs are masked too.
func Redact(settings map[string]interface{}) map[string]interface{} {
	out := copySettings(settings)
	for _, key := range SecretKeys {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				node = nil
				break
			}
			node = child
		}
		if node == nil {
			continue
		}
		leaf := parts[len(parts)-1]
		value, ok := node[leaf].(string)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		node[leaf] = redactValue(value)
	}
	return out
}

// redactValue keeps URLs without credentials, masks the userinfo of URLs with credentials and
// replaces anything else, including MySQL DSNs, with "***".
func redactValue(value string) string {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	if u.User == nil {
		return value
	}
	u.User = url.UserPassword("***", "***")
	return u.String()
}

func copySettings(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]interface{}); ok {
			out[key] = copySettings(nested)
			continue
		}
		out[key] = value
	}
	return out
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// normalizeStringSlice removes empty strings and trims whitespace
func normalizeStringSlice(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
