package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{LevelError, slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.level))
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelWarn, cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelInfo, Format: FormatJSON}, &buf)

	logger.WithComponent("scanner").WithDevice("AA:BB:CC:DD:EE:01", "192.168.1.10").
		InfoScan("port open", "192.168.1.10", "port", 22)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "port open", entry["msg"])
	assert.Equal(t, "scanner", entry["component"])
	assert.Equal(t, "AA:BB:CC:DD:EE:01", entry["mac"])
	assert.Equal(t, "192.168.1.10", entry["target"])
	assert.EqualValues(t, 22, entry["port"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelWarn, Format: FormatText}, &buf)

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestErrorHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelDebug, Format: FormatText}, &buf)

	logger.ErrorDiscovery("arp read failed", "192.168.1.0/24", errors.New("no arp"))
	logger.ErrorDatabase("upsert failed", errors.New("locked"), "mac", "AA")
	logger.WithScanID("abc").ErrorScan("scan failed", "10.0.0.1", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "network=192.168.1.0/24")
	assert.Contains(t, out, "error=\"no arp\"")
	assert.Contains(t, out, "component=database")
	assert.Contains(t, out, "scan_id=abc")
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "netrecon.log")
	logger, err := New(Config{Level: LevelInfo, Format: FormatText, Output: path})
	require.NoError(t, err)

	logger.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewWithWriter(Config{Level: LevelDebug}, &buf))

	Debug("debug line")
	InfoDiscovery("found devices", "192.168.1.0/24", "count", 3)
	InfoDatabase("migrated")

	out := buf.String()
	assert.Contains(t, out, "debug line")
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "migrated")
}
