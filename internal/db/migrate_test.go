package db

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T, driver string) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &DB{DB: sqlx.NewDb(sqlDB, driver), driver: driver}, mock
}

var migrationColumns = []string{"id", "name", "applied_at", "checksum"}

func TestEmbeddedMigrations(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverPostgres} {
		t.Run(driver, func(t *testing.T) {
			db, _ := newMockDB(t, driver)
			files, err := NewMigrator(db).list()
			require.NoError(t, err)
			require.NotEmpty(t, files)
			assert.Equal(t, "migrations/"+driver+"/001_devices.sql", files[0])

			content, err := fs.ReadFile(migrationFiles, files[0])
			require.NoError(t, err)
			assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS devices")
			assert.Contains(t, string(content), "UNIQUE (device_id, port, protocol)")
		})
	}
}

func TestMigratorUp(t *testing.T) {
	t.Run("applies pending migrations in order", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		m := NewMigrator(db)
		m.files = fstest.MapFS{
			"migrations/postgres/002_services.sql": {Data: []byte("CREATE TABLE b (id INT)")},
			"migrations/postgres/001_devices.sql":  {Data: []byte("CREATE TABLE a (id INT)")},
			"migrations/postgres/README.md":        {Data: []byte("notes")},
		}

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, name, applied_at, checksum FROM schema_migrations`).
			WillReturnRows(sqlmock.NewRows(migrationColumns))
		for _, step := range []struct{ table, name string }{{"a", "001_devices"}, {"b", "002_services"}} {
			mock.ExpectBegin()
			mock.ExpectExec(`CREATE TABLE ` + step.table).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(`INSERT INTO schema_migrations \(name, checksum\) VALUES \(\$1, \$2\)`).
				WithArgs(step.name, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectCommit()
		}

		require.NoError(t, m.Up(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips applied migrations", func(t *testing.T) {
		db, mock := newMockDB(t, DriverSQLite)
		content, err := fs.ReadFile(migrationFiles, "migrations/sqlite/001_devices.sql")
		require.NoError(t, err)

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, name, applied_at, checksum FROM schema_migrations`).
			WillReturnRows(sqlmock.NewRows(migrationColumns).
				AddRow(1, "001_devices", time.Now(), checksum(content)))

		require.NoError(t, NewMigrator(db).Up(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects modified migrations", func(t *testing.T) {
		db, mock := newMockDB(t, DriverSQLite)

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, name, applied_at, checksum FROM schema_migrations`).
			WillReturnRows(sqlmock.NewRows(migrationColumns).
				AddRow(1, "001_devices", time.Now(), "deadbeef"))

		err := NewMigrator(db).Up(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "modified")
	})

	t.Run("rolls back a failing migration", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		m := NewMigrator(db)
		m.files = fstest.MapFS{
			"migrations/postgres/001_broken.sql": {Data: []byte("CREATE TABL oops")},
		}

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, name, applied_at, checksum FROM schema_migrations`).
			WillReturnRows(sqlmock.NewRows(migrationColumns))
		mock.ExpectBegin()
		mock.ExpectExec(`CREATE TABL oops`).WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := m.Up(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "001_broken")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown driver", func(t *testing.T) {
		db, _ := newMockDB(t, "mysql")
		assert.Error(t, NewMigrator(db).Up(context.Background()))
	})
}
