package cli

import (
	"github.com/spf13/cobra"
)

var (
	devicesNetwork string
	devicesAll     bool
)

// devicesCmd represents the devices command.
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices saved by earlier scans",
	Long: `List the device inventory persisted by scan-devices --save, watch and serve.
By default only devices from the configured network (scanning.network) are
shown.`,
	Example: `  netrecon devices
  netrecon devices --network office
  netrecon devices --all`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().StringVar(&devicesNetwork, "network", "", "Network identifier to list (default: scanning.network)")
	devicesCmd.Flags().BoolVar(&devicesAll, "all", false, "List devices from every network")
	devicesCmd.MarkFlagsMutuallyExclusive("network", "all")
}

func runDevices(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	database, repo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	network := devicesNetwork
	if network == "" {
		network = cfg.Scanning.Network
	}
	if devicesAll {
		network = ""
	}

	records, err := repo.ListDevices(ctx, network)
	if err != nil {
		return err
	}

	printStoredDevices(cmd.OutOrStdout(), records)
	return nil
}
