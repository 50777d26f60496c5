// Package cli provides the command-line interface for netrecon.
// This package implements the Cobra-based CLI structure with commands for
// discovery, scanning, persisted inventory, scheduled watching and the
// API server.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netrecon/internal/config"
	"github.com/anstrom/netrecon/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. NETRECON_DATABASE_DRIVER.
const EnvPrefix = "NETRECON"

var (
	cfgFile  string
	verbose  bool
	demoMode bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netrecon",
	Short: "Local network reconnaissance",
	Long: `netrecon enumerates the devices on the local network, scans a curated
set of TCP ports on each, grabs service banners and classifies every device
by type and by any AI or developer tool it appears to be running.`,
	Version:           getVersion(),
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./netrecon.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "scan a simulated network instead of the real one")

	if err := viper.BindPFlag("demo.enabled", rootCmd.PersistentFlags().Lookup("demo")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind demo flag: %v\n", err)
	}
}

// initConfig loads the configuration and installs the default logger.
func initConfig(_ *cobra.Command, _ []string) error {
	loaded, err := loadConfig(viper.GetViper(), configPath())
	if err != nil {
		return err
	}
	cfg = loaded
	initLogging(cfg)
	return nil
}

// configPath returns the --config value or the first default location
// that exists. An empty result means defaults only.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	candidates := []string{"netrecon.yaml", "netrecon.yml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "netrecon", "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// loadConfig reads the config file, then applies NETRECON_* environment
// variables and bound flags on top through viper.
func loadConfig(v *viper.Viper, path string) (*config.Config, error) {
	c := config.Default()
	if path != "" {
		fileCfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		c = fileCfg
	}

	settings, err := settingsMap(c)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare configuration: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	if err := v.Unmarshal(c, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, fmt.Errorf("failed to apply configuration overrides: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// settingsMap flattens a config into the generic map viper merges.
func settingsMap(c *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	settings := map[string]any{}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// initLogging initializes structured logging based on configuration.
func initLogging(c *config.Config) {
	logConfig := c.LoggerConfig()
	if verbose && logConfig.Level != logging.LevelDebug {
		logConfig.Level = logging.LevelInfo
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}
