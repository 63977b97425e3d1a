package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nimburion/crudkit/pkg/repository"
)

// MetadataTable records applied migration versions.
const MetadataTable = "crudkit_schema_migrations"

var migrationNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_\-]+)\.(up|down)\.sql$`)

// Migration is one versioned pair of up and down scripts.
type Migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// SQLManager applies migrations read from an fs.FS directory, one transaction per version.
type SQLManager struct {
	db         *sql.DB
	dialect    repository.Dialect
	migrations []Migration
}

// ManagerOption customizes an SQLManager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	vars map[string]string
}

// WithVariables substitutes {{name}} occurrences in every script with the given values.
func WithVariables(vars map[string]string) ManagerOption {
	return func(o *managerOptions) {
		for k, v := range vars {
			o.vars[k] = v
		}
	}
}

// NewSQLManager loads the migrations under dir. Placeholders in bookkeeping statements follow
// dialect.
func NewSQLManager(db *sql.DB, dialect repository.Dialect, files fs.FS, dir string, opts ...ManagerOption) (*SQLManager, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if files == nil {
		return nil, errors.New("migration filesystem is required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("migration directory is required")
	}
	if dialect.Placeholder == nil {
		return nil, errors.New("migration dialect is required")
	}
	o := managerOptions{vars: map[string]string{}}
	for _, opt := range opts {
		opt(&o)
	}
	migrations, err := loadMigrations(files, dir)
	if err != nil {
		return nil, err
	}
	if len(o.vars) > 0 {
		replacer := newReplacer(o.vars)
		for i := range migrations {
			migrations[i].UpSQL = replacer.Replace(migrations[i].UpSQL)
			migrations[i].DownSQL = replacer.Replace(migrations[i].DownSQL)
		}
	}
	return &SQLManager{db: db, dialect: dialect, migrations: migrations}, nil
}

func newReplacer(vars map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", vars[k])
	}
	return strings.NewReplacer(pairs...)
}

// Operations exposes the manager as migrate Operations.
func (m *SQLManager) Operations() Operations {
	return Operations{Up: m.Up, Down: m.Down, Status: m.Status}
}

// Migrations returns the loaded migrations in version order.
func (m *SQLManager) Migrations() []Migration {
	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	return out
}

// Up applies every pending migration in version order and returns how many were applied.
func (m *SQLManager) Up(ctx context.Context) (int, error) {
	if err := m.ensureMetadataTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	done := make(map[int64]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	insert := fmt.Sprintf("INSERT INTO %s (version, name) VALUES (%s, %s)",
		MetadataTable, m.dialect.Placeholder(1), m.dialect.Placeholder(2))
	count := 0
	for _, migration := range m.migrations {
		if _, ok := done[migration.Version]; ok {
			continue
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
				return fmt.Errorf("apply migration %d_%s: %w", migration.Version, migration.Name, err)
			}
			if _, err := tx.ExecContext(ctx, insert, migration.Version, migration.Name); err != nil {
				return fmt.Errorf("record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Down reverts up to steps applied migrations, newest first.
func (m *SQLManager) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	if err := m.ensureMetadataTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	sort.Slice(applied, func(i, j int) bool { return applied[i] > applied[j] })
	if steps > len(applied) {
		steps = len(applied)
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE version = %s", MetadataTable, m.dialect.Placeholder(1))
	reverted := 0
	for _, version := range applied[:steps] {
		migration, ok := m.migrationByVersion(version)
		if !ok {
			return reverted, fmt.Errorf("migration definition not found for applied version %d", version)
		}
		if strings.TrimSpace(migration.DownSQL) == "" {
			return reverted, fmt.Errorf("down migration missing for version %d", version)
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.DownSQL); err != nil {
				return fmt.Errorf("revert migration %d_%s: %w", migration.Version, migration.Name, err)
			}
			if _, err := tx.ExecContext(ctx, del, version); err != nil {
				return fmt.Errorf("delete migration record %d: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return reverted, err
		}
		reverted++
	}
	return reverted, nil
}

// Status reports applied and pending migrations.
func (m *SQLManager) Status(ctx context.Context) (*Status, error) {
	if err := m.ensureMetadataTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int64]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	status := &Status{AppliedVersions: applied, Pending: []PendingMigration{}}
	for _, migration := range m.migrations {
		if _, ok := done[migration.Version]; !ok {
			status.Pending = append(status.Pending, PendingMigration{Version: migration.Version, Name: migration.Name})
		}
	}
	return status, nil
}

func (m *SQLManager) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration transaction: %w", err)
	}
	return nil
}

// ensureMetadataTable uses types accepted by both postgres and mysql.
func (m *SQLManager) ensureMetadataTable(ctx context.Context) error {
	query := "CREATE TABLE IF NOT EXISTS " + MetadataTable + " (" +
		"version BIGINT PRIMARY KEY, " +
		"name VARCHAR(255) NOT NULL, " +
		"applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)"
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure %s table: %w", MetadataTable, err)
	}
	return nil
}

// appliedVersions returns applied versions in ascending order.
func (m *SQLManager) appliedVersions(ctx context.Context) ([]int64, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM "+MetadataTable+" ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	defer rows.Close()

	versions := []int64{}
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

func (m *SQLManager) migrationByVersion(version int64) (Migration, bool) {
	for _, migration := range m.migrations {
		if migration.Version == version {
			return migration, true
		}
	}
	return Migration{}, false
}

func loadMigrations(files fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("read migration files: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationNamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version %q: %w", matches[1], err)
		}
		payload, err := fs.ReadFile(files, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration file %q: %w", entry.Name(), err)
		}

		item, ok := byVersion[version]
		if !ok {
			item = &Migration{Version: version, Name: matches[2]}
			byVersion[version] = item
		} else if item.Name != matches[2] {
			return nil, fmt.Errorf("migration version %d has conflicting names %q and %q", version, item.Name, matches[2])
		}
		if matches[3] == "up" {
			item.UpSQL = string(payload)
		} else {
			item.DownSQL = string(payload)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, item := range byVersion {
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("missing up migration for version %d", item.Version)
		}
		migrations = append(migrations, *item)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
