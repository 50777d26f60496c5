package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/anstrom/netrecon/internal/logging"
)

//go:embed migrations
var migrationFiles embed.FS

// Migration represents an applied database migration.
type Migration struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	AppliedAt time.Time `db:"applied_at"`
	Checksum  string    `db:"checksum"`
}

// Migrator applies the embedded migrations for the database driver.
// Each driver has its own directory under migrations/.
type Migrator struct {
	db    *DB
	files fs.FS
}

// NewMigrator creates a new migrator instance.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db, files: migrationFiles}
}

var migrationsTable = map[string]string{
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			checksum TEXT NOT NULL
		)`,
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			checksum VARCHAR(64) NOT NULL
		)`,
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	query, ok := migrationsTable[m.db.Driver()]
	if !ok {
		return fmt.Errorf("no migrations for driver %q", m.db.Driver())
	}
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// Applied returns the applied migrations keyed by name.
func (m *Migrator) Applied(ctx context.Context) (map[string]Migration, error) {
	var migrations []Migration
	query := `SELECT id, name, applied_at, checksum FROM schema_migrations ORDER BY id`
	if err := m.db.SelectContext(ctx, &migrations, query); err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	applied := make(map[string]Migration, len(migrations))
	for _, migration := range migrations {
		applied[migration.Name] = migration
	}
	return applied, nil
}

// list returns the sorted migration file paths for the driver.
func (m *Migrator) list() ([]string, error) {
	dir := path.Join("migrations", m.db.Driver())
	entries, err := fs.ReadDir(m.files, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func migrationName(file string) string {
	return strings.TrimSuffix(path.Base(file), ".sql")
}

func (m *Migrator) execute(ctx context.Context, file string, content []byte) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", file, err)
	}

	insert := m.db.Rebind(`INSERT INTO schema_migrations (name, checksum) VALUES (?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, migrationName(file), checksum(content)); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", file, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", file, err)
	}
	return nil
}

// Up runs all pending migrations. An applied migration whose file content
// has changed is an error.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}

	files, err := m.list()
	if err != nil {
		return err
	}

	for _, file := range files {
		name := migrationName(file)
		content, err := fs.ReadFile(m.files, file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if prev, ok := applied[name]; ok {
			if prev.Checksum != checksum(content) {
				return fmt.Errorf("migration %s was modified after it was applied", name)
			}
			logging.Debug("Migration already applied", "component", "store", "migration", name)
			continue
		}

		if err := m.execute(ctx, file, content); err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		logging.InfoDatabase("Applied migration", "migration", name, "driver", m.db.Driver())
	}
	return nil
}
