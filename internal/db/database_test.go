package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netrecon/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "netrecon.db", cfg.Path)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Positive(t, cfg.MaxOpenConns)
}

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr errors.ErrorCode
	}{
		{
			name: "sqlite file",
			cfg:  Config{Driver: DriverSQLite, Path: "/var/lib/netrecon/devices.db"},
			want: "file:/var/lib/netrecon/devices.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		},
		{
			name: "empty driver is sqlite",
			cfg:  Config{},
			want: "file:netrecon.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		},
		{
			name: "sqlite memory",
			cfg:  Config{Driver: DriverSQLite, Path: ":memory:"},
			want: ":memory:",
		},
		{
			name: "postgres",
			cfg: Config{
				Driver: DriverPostgres, Host: "db", Port: 5433, Database: "netrecon",
				Username: "scanner", Password: "secret", SSLMode: "require",
			},
			want: "host=db port=5433 dbname=netrecon user=scanner password=secret sslmode=require",
		},
		{
			name:    "postgres without database",
			cfg:     Config{Driver: DriverPostgres, Username: "scanner"},
			wantErr: errors.CodeConfiguration,
		},
		{
			name:    "unknown driver",
			cfg:     Config{Driver: "mysql"},
			wantErr: errors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.DSN()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeDBError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode errors.ErrorCode
	}{
		{"no rows", sql.ErrNoRows, errors.CodeNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), errors.CodeNotFound},
		{"canceled", context.Canceled, errors.CodeCanceled},
		{"deadline", context.DeadlineExceeded, errors.CodeDatabaseTimeout},
		{"unique violation", &pq.Error{Code: "23505"}, errors.CodeConflict},
		{"foreign key", &pq.Error{Code: "23503"}, errors.CodeValidation},
		{"not null", &pq.Error{Code: "23502"}, errors.CodeValidation},
		{"query canceled", &pq.Error{Code: "57014"}, errors.CodeCanceled},
		{"connection lost", &pq.Error{Code: "08006"}, errors.CodeDatabaseConnection},
		{"other pq error", &pq.Error{Code: "42601"}, errors.CodeDatabaseQuery},
		{"driver error", stderrors.New("SQLITE_BUSY"), errors.CodeDatabaseQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sanitizeDBError("upsert device", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetCode(err))

			var dbErr *errors.DatabaseError
			require.True(t, stderrors.As(err, &dbErr))
			assert.Equal(t, "upsert device", dbErr.Operation)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, sanitizeDBError("noop", nil))
	})

	t.Run("message hides driver details", func(t *testing.T) {
		err := sanitizeDBError("list devices", &pq.Error{Code: "42P01", Message: `relation "devices" does not exist`})
		assert.NotContains(t, err.Error(), "relation")

		var pqErr *pq.Error
		require.True(t, stderrors.As(err, &pqErr))
		assert.Equal(t, pq.ErrorCode("42P01"), pqErr.Code)
	})
}

func TestConnectRejectsInvalidConfig(t *testing.T) {
	_, err := Connect(context.Background(), &Config{Driver: "oracle"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}
