package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anstrom/netrecon/internal/logging"
)

var discoverFull bool

// discoverCmd represents the discover command.
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List devices on the local network",
	Long: `Discover devices on the local network from the ARP cache. With --full an
active sweep of the local /24 runs first so that quiet devices show up too.
The sweep method is set by discovery.sweep_method (ping, nmap or arp).`,
	Example: `  netrecon discover
  netrecon discover --full
  netrecon --demo discover`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().BoolVar(&discoverFull, "full", false, "Run an active sweep before reading the ARP cache")
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	e, err := newEngine(cfg, logging.Default())
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Discovering devices (active sweep: %v)...\n", discoverFull)
	}

	devices, err := e.discoverer.Discover(ctx, discoverFull)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	printDiscovered(cmd.OutOrStdout(), devices)
	return nil
}
