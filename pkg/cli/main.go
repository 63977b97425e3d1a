// Package cli builds the crudkit command line: serve, migrate, config, token, healthcheck and
// version.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/crudkit/pkg/auth"
	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/configschema"
	"github.com/nimburion/crudkit/pkg/migrate"
	"github.com/nimburion/crudkit/pkg/notes"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/server"
	"github.com/nimburion/crudkit/pkg/store"
	"github.com/nimburion/crudkit/pkg/version"
)

// DefaultEnvPrefix prefixes every configuration environment variable.
const DefaultEnvPrefix = "APP"

// Options configures the root command.
type Options struct {
	Name        string
	Description string
	// ConfigPath is the default for --config-file.
	ConfigPath string
	// EnvPrefix is the default for --env-prefix.
	EnvPrefix string
	// Out receives command output. Defaults to os.Stdout.
	Out io.Writer
	// LoggerOutput receives log entries. Defaults to os.Stdout.
	LoggerOutput io.Writer
}

type rootFlags struct {
	configPath  string
	envPrefix   string
	serviceName string
}

// NewRootCommand returns the crudkit command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "crudkit"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = DefaultEnvPrefix
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)
	root.PersistentFlags().StringVarP(&flags.configPath, "config-file", "c", opts.ConfigPath, "config file path")
	root.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", opts.EnvPrefix, "prefix of configuration environment variables")
	root.PersistentFlags().StringVar(&flags.serviceName, "service-name", "", "service name override")

	load := func() (*config.Config, logger.Logger, error) {
		return LoadConfigAndLogger(flags.configPath, flags.envPrefix, opts.Name, flags.serviceName, opts.LoggerOutput)
	}

	root.AddCommand(
		newVersionCommand(opts.Name),
		newServeCommand(load),
		newMigrateCommand(load),
		newConfigCommand(flags, opts.Name),
		newTokenCommand(load),
		newHealthcheckCommand(load),
	)
	return root
}

func newVersionCommand(name string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Current(name)
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

type loadFunc func() (*config.Config, logger.Logger, error)

func newServeCommand(load loadFunc) *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notes API until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			svc, err := BuildService(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			var startup []server.LifecycleHook
			if migrateFirst {
				if svc.SQL == nil {
					_ = svc.Close(context.Background())
					return errors.New("--migrate requires database.type postgres or mysql")
				}
				startup = append(startup, server.LifecycleHook{
					Name: "migrate",
					Fn: func(ctx context.Context) error {
						return runMigrations(ctx, cfg, log, svc.SQL, migrate.CommandUp, 1)
					},
				})
			}
			return svc.Run(log, startup...)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func newMigrateCommand(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status] [steps]",
		Short: "Apply, revert or list the notes schema migrations",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, steps, err := migrate.ParseArgs(args)
			if err != nil {
				return err
			}
			cfg, log, err := load()
			if err != nil {
				return err
			}
			adapter, err := store.NewSQLAdapter(cfg.Database, log)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer adapter.Close()
			return runMigrations(cmd.Context(), cfg, log, adapter, command, steps)
		},
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, log logger.Logger, adapter store.SQLAdapter, command string, steps int) error {
	dir, err := notes.MigrationsDir(cfg.Database.Type)
	if err != nil {
		return err
	}
	manager, err := migrate.NewSQLManager(adapter.DB(), adapter.Dialect(), notes.Migrations, dir,
		migrate.WithVariables(map[string]string{"table": cfg.Database.Table}))
	if err != nil {
		return err
	}
	return migrate.RunParsed(ctx, command, steps, migrate.Options{
		ServiceName: cfg.Service.Name,
		Source:      dir,
		Logger:      log,
	}, manager.Operations())
}

func newConfigCommand(flags *rootFlags, name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.NewViperLoader(flags.configPath, flags.envPrefix).Load(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return err
		},
	})

	var showSecrets bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, settings, err := config.NewViperLoader(flags.configPath, flags.envPrefix).LoadSettings()
			if err != nil {
				return err
			}
			settings = setServiceNameSetting(settings, resolveServiceNameValue(cfg.Service.Name, name, flags.serviceName))
			if !showSecrets {
				settings = config.Redact(settings)
			}
			formatted, err := formatSettings(settings)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), formatted)
			return err
		},
	}
	show.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults := config.DefaultConfig()
			defaults.Service.Name = resolveServiceNameValue("", name, flags.serviceName)
			out, err := configschema.JSON(defaults)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	})
	return cmd
}

func newTokenCommand(load loadFunc) *cobra.Command {
	var (
		subject string
		tenant  string
		scopes  []string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with auth.hmac_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			signer, err := auth.NewHMACSigner(cfg.Auth.HMACSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
			if err != nil {
				return err
			}
			if len(scopes) == 0 {
				prefix := cfg.Auth.ScopePrefix
				scopes = []string{prefix + ":read", prefix + ":write"}
			}
			token, err := signer.Sign(auth.Claims{Subject: subject, TenantID: tenant, Scopes: scopes, Roles: roles}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant identifier")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "granted scope (repeatable); defaults to read and write")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "granted role (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newHealthcheckCommand(load loadFunc) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Connect to the configured dependencies and report their health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			svc, err := BuildService(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := svc.Close(context.Background()); closeErr != nil {
					log.Warn("failed to release adapters", "error", closeErr)
				}
			}()

			result := svc.Health.Check(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.IsHealthy() {
				return errors.New("one or more dependencies are unhealthy")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall check timeout")
	return cmd
}

// LoadConfigAndLogger loads and validates configuration and builds the zap logger it selects.
func LoadConfigAndLogger(cfgPath, envPrefix, defaultServiceName, serviceNameOverride string, out io.Writer) (*config.Config, logger.Logger, error) {
	if strings.TrimSpace(envPrefix) == "" {
		envPrefix = DefaultEnvPrefix
	}
	cfg, err := config.NewViperLoader(cfgPath, strings.ToUpper(envPrefix)).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Name = resolveServiceNameValue(cfg.Service.Name, defaultServiceName, serviceNameOverride)

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Log.Level),
		Format: logger.LogFormat(cfg.Log.Format),
		Output: out,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log.With("service", cfg.Service.Name), nil
}

// Execute runs cmd and exits with status 1 on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func formatSettings(settings map[string]interface{}) (string, error) {
	if settings == nil {
		return "{}\n", nil
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

func resolveServiceNameValue(configured, defaultName, override string) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	if v := strings.TrimSpace(defaultName); v != "" {
		return v
	}
	return "crudkit"
}

func setServiceNameSetting(settings map[string]interface{}, serviceName string) map[string]interface{} {
	if settings == nil {
		settings = map[string]interface{}{}
	}
	service, ok := settings["service"].(map[string]interface{})
	if !ok || service == nil {
		service = map[string]interface{}{}
	}
	service["name"] = serviceName
	settings["service"] = service
	return settings
}
