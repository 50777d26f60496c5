// Package config loads, validates and saves the netrecon configuration.
// Files are YAML (JSON is accepted as a YAML subset); every section has
// defaults so an empty or missing file yields a working setup.
package config

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netrecon/internal/db"
	"github.com/anstrom/netrecon/internal/discovery"
	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/netmap"
	"github.com/anstrom/netrecon/internal/scanning"
)

// Config represents the complete netrecon configuration.
type Config struct {
	// Port scanning bounds
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Device discovery and active sweep
	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery"`

	// Hostname enrichment
	Enrichment EnrichmentConfig `yaml:"enrichment" json:"enrichment"`

	// Database configuration
	Database db.Config `yaml:"database" json:"database"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// API server configuration
	API APIConfig `yaml:"api" json:"api"`

	// Scheduled scans
	Watch WatchConfig `yaml:"watch" json:"watch"`

	// Simulated network
	Demo DemoConfig `yaml:"demo" json:"demo"`
}

// ScanningConfig holds port scanning settings.
type ScanningConfig struct {
	// Ports to scan, e.g. "22,80,8000-8010". Empty selects the common ports.
	Ports string `yaml:"ports" json:"ports" validate:"omitempty,ports"`

	// Timeout for a single TCP connect
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" validate:"gt=0"`

	// Timeout for reading a banner from an open port
	BannerTimeout time.Duration `yaml:"banner_timeout" json:"banner_timeout" validate:"gt=0"`

	// Devices scanned at the same time
	MaxConcurrentDevices int `yaml:"max_concurrent_devices" json:"max_concurrent_devices" validate:"min=1,max=10"`

	// Connect attempts in flight per device
	MaxConcurrentPorts int `yaml:"max_concurrent_ports" json:"max_concurrent_ports" validate:"min=1,max=50"`

	// Network name recorded with persisted devices
	Network string `yaml:"network" json:"network" validate:"max=64"`
}

// DiscoveryConfig holds device discovery settings.
type DiscoveryConfig struct {
	// Active sweep method: ping, nmap or arp
	SweepMethod string `yaml:"sweep_method" json:"sweep_method" validate:"oneof=ping nmap arp"`

	// Hosts contacted concurrently during a sweep
	SweepConcurrency int `yaml:"sweep_concurrency" json:"sweep_concurrency" validate:"min=1,max=256"`

	// Timeout for a single host
	HostTimeout time.Duration `yaml:"host_timeout" json:"host_timeout" validate:"gt=0"`

	// Timeout for sweepers that listen for replies
	SweepTimeout time.Duration `yaml:"sweep_timeout" json:"sweep_timeout" validate:"gt=0"`

	// Interface for raw ARP sweeps. Empty selects the default interface.
	Interface string `yaml:"interface" json:"interface"`
}

// EnrichmentConfig holds hostname resolution settings.
type EnrichmentConfig struct {
	MDNS        bool          `yaml:"mdns" json:"mdns"`
	MDNSTimeout time.Duration `yaml:"mdns_timeout" json:"mdns_timeout" validate:"gt=0"`

	ReverseDNS bool `yaml:"reverse_dns" json:"reverse_dns"`
	// DNS server for PTR lookups as host:port. Empty uses the gateway.
	DNSServer string `yaml:"dns_server" json:"dns_server" validate:"omitempty,hostname_port"`

	// SNMP sysName lookups against the gateway
	SNMP          bool   `yaml:"snmp" json:"snmp"`
	SNMPCommunity string `yaml:"snmp_community" json:"snmp_community" validate:"required_if=SNMP true"`
	SNMPPort      uint16 `yaml:"snmp_port" json:"snmp_port" validate:"min=1"`

	// Timeout per resolver request
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" validate:"required"`

	// Include source locations
	AddSource bool `yaml:"add_source" json:"add_source"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" validate:"required"`

	// Listen port
	Port int `yaml:"port" json:"port" validate:"min=1,max=65535"`

	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"gt=0"`

	// Origins allowed by CORS and the WebSocket upgrader
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// WatchConfig holds settings for recurring scans.
type WatchConfig struct {
	// Cron schedule (standard five fields or descriptors like @every 15m)
	Schedule string `yaml:"schedule" json:"schedule" validate:"required,cron"`

	// Run full scans with an active sweep
	Full bool `yaml:"full" json:"full"`

	// Persist every completed scan
	Persist bool `yaml:"persist" json:"persist"`
}

// DemoConfig selects the simulated network.
type DemoConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Simulated per-connection latency
	Latency time.Duration `yaml:"latency" json:"latency" validate:"min=0"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	scan := scanning.DefaultConfig()
	sweep := discovery.DefaultSweepOptions()
	return &Config{
		Scanning: ScanningConfig{
			ConnectTimeout:       scan.ConnectTimeout,
			BannerTimeout:        scan.BannerTimeout,
			MaxConcurrentDevices: scan.MaxConcurrentDevices,
			MaxConcurrentPorts:   scan.MaxConcurrentPorts,
			Network:              "default",
		},
		Discovery: DiscoveryConfig{
			SweepMethod:      discovery.SweepPing,
			SweepConcurrency: sweep.Concurrency,
			HostTimeout:      sweep.HostTimeout,
			SweepTimeout:     sweep.Timeout,
		},
		Enrichment: EnrichmentConfig{
			MDNS:          true,
			MDNSTimeout:   2 * time.Second,
			ReverseDNS:    true,
			SNMP:          false,
			SNMPCommunity: "public",
			SNMPPort:      161,
			Timeout:       time.Second,
		},
		Database: db.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  string(logging.LevelWarn),
			Format: string(logging.FormatText),
			Output: "stderr",
		},
		API: APIConfig{
			ListenAddr:     "127.0.0.1",
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: []string{"http://localhost:8080", "http://127.0.0.1:8080"},
		},
		Watch: WatchConfig{
			Schedule: "@every 15m",
			Persist:  true,
		},
		Demo: DemoConfig{
			Latency: 5 * time.Millisecond,
		},
	}
}

// Load loads configuration from a file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if stderrors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse config %s", filepath.Base(path)), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves configuration to a file as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("ports", func(fl validator.FieldLevel) bool {
		_, err := scanning.ParsePorts(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate validates the configuration. The first failing field is
// reported as a ConfigError naming the field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}
	fe := verrs[0]
	return errors.NewConfigFieldError(errors.CodeValidation,
		fmt.Sprintf("invalid configuration: %s failed %q", fe.Namespace(), fe.Tag()),
		fe.Namespace(), fe.Value())
}

// ScanPorts returns the configured port list, or the common ports when
// none are configured.
func (c *Config) ScanPorts() ([]uint16, error) {
	if c.Scanning.Ports == "" {
		return append([]uint16(nil), netmap.CommonPorts...), nil
	}
	return scanning.ParsePorts(c.Scanning.Ports)
}

// ScannerConfig returns the port scanner bounds.
func (c *Config) ScannerConfig() scanning.Config {
	return scanning.Config{
		ConnectTimeout:       c.Scanning.ConnectTimeout,
		BannerTimeout:        c.Scanning.BannerTimeout,
		MaxConcurrentDevices: c.Scanning.MaxConcurrentDevices,
		MaxConcurrentPorts:   c.Scanning.MaxConcurrentPorts,
	}
}

// SweepOptions returns the active sweep settings. Sweep diagnostics go to
// logger.
func (c *Config) SweepOptions(logger *logging.Logger) discovery.SweepOptions {
	return discovery.SweepOptions{
		Concurrency: c.Discovery.SweepConcurrency,
		HostTimeout: c.Discovery.HostTimeout,
		Timeout:     c.Discovery.SweepTimeout,
		Interface:   c.Discovery.Interface,
		Logger:      logger,
	}
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(c.Logging.Level),
		Format:    logging.LogFormat(c.Logging.Format),
		Output:    c.Logging.Output,
		AddSource: c.Logging.AddSource,
	}
}

// GetAPIAddress returns the full API address.
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.API.ListenAddr, strconv.Itoa(c.API.Port))
}
