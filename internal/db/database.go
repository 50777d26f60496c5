// Package db provides database connectivity and the device repository for
// netrecon. It supports an embedded SQLite file (the default) and PostgreSQL,
// runs embedded migrations, and implements netmap.Store.
package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/logging"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sanitizeDBError converts raw database errors into safe, sanitized errors
// that don't expose internal SQL details or credentials.
// The original error is preserved in the Cause field for internal debugging.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		dbErr := errors.NewDatabaseError(errors.CodeNotFound, "Resource not found")
		dbErr.Operation = operation
		return dbErr
	}
	if stderrors.Is(err, context.Canceled) {
		dbErr := errors.WrapDatabaseError(errors.CodeCanceled, "Database operation was canceled", err)
		dbErr.Operation = operation
		return dbErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		dbErr := errors.WrapDatabaseError(errors.CodeDatabaseTimeout, "Database operation timed out", err)
		dbErr.Operation = operation
		return dbErr
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		var dbErr *errors.DatabaseError
		switch pqErr.Code {
		case "23505": // unique_violation
			dbErr = errors.NewDatabaseError(errors.CodeConflict, "Resource already exists")
		case "23503": // foreign_key_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Referenced resource does not exist")
		case "23502": // not_null_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Required field is missing")
		case "57014": // query_canceled
			dbErr = errors.NewDatabaseError(errors.CodeCanceled, "Database operation was canceled")
		case "57P01", "08000", "08003", "08006":
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection error")
		default:
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery,
				fmt.Sprintf("Database operation failed: %s", operation))
		}
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	dbErr := errors.NewDatabaseError(errors.CodeDatabaseQuery, fmt.Sprintf("Database operation failed: %s", operation))
	dbErr.Operation = operation
	dbErr.Cause = err
	return dbErr
}

const (
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultConnMaxIdleTime = 5
	defaultSQLitePath      = "netrecon.db"
)

// DB wraps sqlx.DB with the driver it was opened with.
type DB struct {
	*sqlx.DB
	driver string
}

// Driver returns the database driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Config holds database configuration. Path is used by SQLite; the
// remaining connection fields by PostgreSQL.
type Config struct {
	Driver          string        `yaml:"driver" json:"driver" validate:"omitempty,oneof=sqlite postgres"`
	Path            string        `yaml:"path" json:"path"`
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port" validate:"omitempty,min=1,max=65535"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultConfig returns the default database configuration: a SQLite file
// in the working directory.
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		Path:            defaultSQLitePath,
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime * time.Minute,
		ConnMaxIdleTime: defaultConnMaxIdleTime * time.Minute,
	}
}

// driverName returns the configured driver, defaulting to SQLite.
func (c *Config) driverName() string {
	if c.Driver == "" {
		return DriverSQLite
	}
	return c.Driver
}

// DSN builds the data source name for the configured driver.
func (c *Config) DSN() (string, error) {
	switch c.driverName() {
	case DriverSQLite:
		path := c.Path
		if path == "" {
			path = defaultSQLitePath
		}
		if path == ":memory:" {
			return path, nil
		}
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path), nil
	case DriverPostgres:
		if c.Database == "" || c.Username == "" {
			return "", errors.ErrConfigMissing("database.database/database.username")
		}
		// lib/pq escapes values in key=value form.
		return fmt.Sprintf(
			"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
		), nil
	default:
		return "", errors.ErrConfigInvalid("database.driver", c.Driver)
	}
}

// Connect opens the configured database and verifies the connection.
// Returns sanitized errors that don't leak credentials or DSN details.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	driver := config.driverName()
	dsn, err := config.DSN()
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite && config.Path != "" && config.Path != ":memory:" {
		if dir := filepath.Dir(config.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.ErrDatabaseConnection(err)
			}
		}
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection, "Failed to verify database connection", err)
	}

	if driver == DriverSQLite {
		logging.InfoDatabase("Connected to database", "driver", driver, "path", config.Path)
	} else {
		logging.InfoDatabase("Connected to database",
			"driver", driver, "host", config.Host, "port", config.Port, "database", config.Database)
	}
	return &DB{DB: db, driver: driver}, nil
}

// ConnectAndMigrate connects to the database and applies pending migrations.
func ConnectAndMigrate(ctx context.Context, config *Config) (*DB, error) {
	db, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := NewMigrator(db).Up(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseMigration, "Failed to apply migrations", err)
	}
	return db, nil
}
