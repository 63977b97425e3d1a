package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nimburion/crudkit/pkg/auth"
	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/notes"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/resilience"
	"github.com/nimburion/crudkit/pkg/version"
)

const (
	testEnvPrefix = "CRUDKIT_CLI_TEST"
	testSecret    = "0123456789abcdef0123456789abcdef"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(Options{Name: "crudkit", EnvPrefix: testEnvPrefix, Out: &out, LoggerOutput: io.Discard})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveServiceNameValue(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		defaultVal string
		override   string
		want       string
	}{
		{name: "override wins", configured: "from-config", defaultVal: "from-cli", override: "from-flag", want: "from-flag"},
		{name: "configured wins over default", configured: "from-config", defaultVal: "from-cli", want: "from-config"},
		{name: "default used when config missing", defaultVal: "from-cli", want: "from-cli"},
		{name: "crudkit fallback", want: "crudkit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveServiceNameValue(tt.configured, tt.defaultVal, tt.override); got != tt.want {
				t.Fatalf("resolveServiceNameValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand(Options{})
	want := []string{"config", "healthcheck", "migrate", "serve", "token", "version"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %q subcommand", name)
		}
	}
	if cmd.PersistentFlags().Lookup("config-file").Shorthand != "c" {
		t.Fatal("expected -c shorthand for --config-file")
	}
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := run(t, "version", "--json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	var info version.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info.Service != "crudkit" {
		t.Fatalf("unexpected service %q", info.Service)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	path := writeConfig(t, `
database:
  type: postgres
  url: postgres://app:hunter2@db:5432/notes
auth:
  enabled: true
  hmac_secret: `+testSecret+`
`)
	out, err := run(t, "config", "show", "-c", path, "--env-prefix", testEnvPrefix)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "hunter2") || strings.Contains(out, testSecret) {
		t.Fatalf("secrets leaked:\n%s", out)
	}
	if !strings.Contains(out, "name: crudkit") {
		t.Fatalf("expected service name in output:\n%s", out)
	}

	out, err = run(t, "config", "show", "-c", path, "--show-secrets")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(out, testSecret) {
		t.Fatalf("expected secret with --show-secrets:\n%s", out)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := writeConfig(t, "router_type: gorilla\n")
	out, err := run(t, "config", "validate", "-c", valid, "--env-prefix", testEnvPrefix)
	if err != nil || !strings.Contains(out, "configuration is valid") {
		t.Fatalf("validate = %q, %v", out, err)
	}

	invalid := writeConfig(t, "router_type: chi\n")
	if _, err := run(t, "config", "validate", "-c", invalid, "--env-prefix", testEnvPrefix); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfigSchema(t *testing.T) {
	out, err := run(t, "config", "schema", "--service-name", "notes-api")
	if err != nil {
		t.Fatalf("config schema error = %v", err)
	}
	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if schema.Title != "notes-api configuration" {
		t.Fatalf("title = %q", schema.Title)
	}
	if _, ok := schema.Properties["database"]; !ok {
		t.Fatalf("missing database section in %s", out)
	}
}

func TestTokenCommandIssuesValidToken(t *testing.T) {
	path := writeConfig(t, `
auth:
  enabled: true
  hmac_secret: `+testSecret+`
  issuer: crudkit
`)
	out, err := run(t, "token", "-c", path, "--env-prefix", testEnvPrefix, "--subject", "alice", "--ttl", "5m")
	if err != nil {
		t.Fatalf("token error = %v", err)
	}
	validator, err := auth.NewHMACValidator(testSecret, auth.WithIssuer("crudkit"))
	if err != nil {
		t.Fatal(err)
	}
	claims, err := validator.Validate(context.Background(), strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.Subject != "alice" || !claims.HasScope("notes:write") {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestMigrateRequiresSQLDatabase(t *testing.T) {
	path := writeConfig(t, "database:\n  type: memory\n")
	if _, err := run(t, "migrate", "status", "-c", path, "--env-prefix", testEnvPrefix); err == nil {
		t.Fatal("expected error for memory database")
	}
	if _, err := run(t, "migrate", "down", "x"); err == nil {
		t.Fatal("expected error for invalid steps")
	}
}

func memoryConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.RouterType = "nethttp"
	return cfg
}

func TestBuildServiceMemory(t *testing.T) {
	svc, err := BuildService(context.Background(), memoryConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("BuildService() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	if svc.Servers.Public == nil || svc.Servers.Management == nil {
		t.Fatal("expected public and management servers")
	}
	if svc.Metrics == nil {
		t.Fatal("expected metrics registry")
	}
	if svc.SQL != nil {
		t.Fatal("memory gateway must not open a SQL adapter")
	}

	h := svc.Servers.Public.Router()
	rec := httptest.NewRecorder()
	create := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(`{"title":" first "}`))
	create.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body)
	}
	var created notes.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID != 1 || created.Title != "first" || created.Version != 1 {
		t.Fatalf("unexpected note %+v", created)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes?title=eq:%22first%22", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total_count":1`) {
		t.Fatalf("list status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestBuildServiceWithAuth(t *testing.T) {
	cfg := memoryConfig()
	cfg.Management.Enabled = false
	cfg.Observability.MetricsEnabled = false
	cfg.Auth = config.AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "crudkit", ScopePrefix: "notes"}

	svc, err := BuildService(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("BuildService() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	if svc.Servers.Management != nil {
		t.Fatal("management server must be disabled")
	}

	signer, err := auth.NewHMACSigner(testSecret, "crudkit", "")
	if err != nil {
		t.Fatal(err)
	}
	token := func(subject string, roles ...string) string {
		tok, err := signer.Sign(auth.Claims{Subject: subject, Scopes: []string{"notes:read", "notes:write"}, Roles: roles}, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		return "Bearer " + tok
	}
	do := func(method, target, body, authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		svc.Servers.Public.Router().ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodGet, "/api/notes", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d", rec.Code)
	}
	rec := do(http.MethodPost, "/api/notes", `{"title":"mine","owner":"mallory"}`, token("alice"))
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"owner":"alice"`) {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body)
	}
	if rec := do(http.MethodDelete, "/api/notes/1", "", token("bob")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign delete status = %d", rec.Code)
	}
	if rec := do(http.MethodGet, "/api/notes/1", "", token("bob", AdminRole)); rec.Code != http.StatusOK {
		t.Fatalf("admin read status = %d", rec.Code)
	}
	if rec := do(http.MethodDelete, "/api/notes/1", "", token("alice")); rec.Code != http.StatusOK {
		t.Fatalf("owner delete status = %d", rec.Code)
	}
}

func TestBuildServiceRejectsUnknownRouter(t *testing.T) {
	cfg := memoryConfig()
	cfg.RouterType = "chi"
	if _, err := BuildService(context.Background(), cfg, logger.NewNop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestResourcePath(t *testing.T) {
	tests := map[string]string{"": "/notes", "/api": "/api/notes", "/api/": "/api/notes", "/v1/x": "/v1/x/notes"}
	for base, want := range tests {
		if got := ResourcePath(base); got != want {
			t.Errorf("ResourcePath(%q) = %q, want %q", base, got, want)
		}
	}
}

func TestGuardProducer(t *testing.T) {
	cfg := config.DefaultConfig().EventBus
	guarded, ok := guardProducer(nil, cfg, logger.NewNop()).(*resilience.GuardedProducer)
	if !ok || guarded.Breaker() == nil {
		t.Fatal("expected a breaker with default settings")
	}

	cfg.BreakerFailures = 0
	guarded = guardProducer(nil, cfg, logger.NewNop()).(*resilience.GuardedProducer)
	if guarded.Breaker() != nil {
		t.Fatal("breaker must be disabled when breaker_failures is 0")
	}
}
