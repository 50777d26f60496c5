package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CodeUnknown, CodeValidation, CodeConfiguration, CodeTimeout, CodeCanceled,
		CodePermission, CodeNotFound, CodeConflict, CodeNetworkUnreachable,
		CodeHostUnreachable, CodeScanFailed, CodeScanInProgress, CodeDiscoveryFailed,
		CodeTargetInvalid, CodeCommandFailed, CodeDatabaseConnection, CodeDatabaseQuery,
		CodeDatabaseMigration, CodeDatabaseTimeout,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		assert.NotEmpty(t, string(code))
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestScanError(t *testing.T) {
	t.Run("basic error creation", func(t *testing.T) {
		err := NewScanError(CodeScanFailed, "scan failed")
		assert.Equal(t, CodeScanFailed, err.Code)
		assert.Equal(t, "[SCAN_FAILED] scan failed", err.Error())
		assert.NotNil(t, err.Context)
	})

	t.Run("error with target", func(t *testing.T) {
		err := NewScanErrorWithTarget(CodeHostUnreachable, "host down", "192.168.1.1")
		assert.Equal(t, "[HOST_UNREACHABLE] host down (target: 192.168.1.1)", err.Error())
	})

	t.Run("wrapped cause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := WrapScanError(CodeScanFailed, "connect failed", cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("context values", func(t *testing.T) {
		err := ErrInvalidPorts(0)
		assert.Equal(t, CodeValidation, err.Code)
		assert.Equal(t, 0, err.Context["ports"])
	})
}

func TestDiscoveryError(t *testing.T) {
	cause := fmt.Errorf("exec: arp not found")
	err := ErrDiscoveryFailed("arp table", cause)

	assert.Equal(t, CodeDiscoveryFailed, err.Code)
	assert.Contains(t, err.Error(), "source: arp table")
	assert.ErrorIs(t, err, cause)

	withNetwork := NewDiscoveryError(CodeNetworkUnreachable, "no route")
	withNetwork.Network = "192.168.1.0/24"
	assert.Equal(t, "[NETWORK_UNREACHABLE] no route (network: 192.168.1.0/24)", withNetwork.Error())
}

func TestDatabaseError(t *testing.T) {
	err := ErrDatabaseQuery("SELECT 1", fmt.Errorf("boom"))
	assert.Equal(t, "SELECT 1", err.Query)
	assert.Equal(t, "[DATABASE_QUERY] Database query failed", err.Error())

	err.Operation = "upsert device"
	assert.Equal(t, "[DATABASE_QUERY] Database query failed (operation: upsert device)", err.Error())
}

func TestConfigError(t *testing.T) {
	err := ErrConfigInvalid("scanning.max_concurrent_devices", -1)
	assert.Equal(t, "[VALIDATION] Invalid configuration value (field: scanning.max_concurrent_devices)", err.Error())
	assert.Equal(t, -1, err.Value)

	missing := ErrConfigMissing("database.path")
	assert.Equal(t, CodeConfiguration, missing.Code)
	assert.True(t, IsFatal(missing))
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"scan error", NewScanError(CodeTimeout, "slow"), CodeTimeout},
		{"discovery error", NewDiscoveryError(CodeDiscoveryFailed, "x"), CodeDiscoveryFailed},
		{"database error", NewDatabaseError(CodeNotFound, "x"), CodeNotFound},
		{"config error", NewConfigError(CodeConfiguration, "x"), CodeConfiguration},
		{"wrapped with fmt", fmt.Errorf("outer: %w", ErrScanInProgress()), CodeScanInProgress},
		{"plain error", stderrors.New("plain"), CodeUnknown},
		{"nil", nil, CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	require.False(t, IsCode(nil, CodeUnknown))
	assert.True(t, IsCode(fmt.Errorf("wrap: %w", ErrScanInProgress()), CodeScanInProgress))
	assert.False(t, IsCode(ErrScanInProgress(), CodeConflict))
}

func TestIsRetryableAndFatal(t *testing.T) {
	assert.True(t, IsRetryable(NewScanError(CodeTimeout, "t")))
	assert.True(t, IsRetryable(ErrScanInProgress()))
	assert.False(t, IsRetryable(NewScanError(CodeValidation, "v")))

	assert.True(t, IsFatal(NewConfigError(CodePermission, "p")))
	assert.False(t, IsFatal(NewScanError(CodeScanFailed, "s")))
}
