package cli

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/identify"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/netmap"
	"github.com/anstrom/netrecon/internal/scheduler"
)

// syntheticMAC marks a device that was not discovered.
const syntheticMAC = "00:00:00:00:00:00"

var (
	scanFull bool
	scanSave bool
	scanDeep bool
)

// scanDevicesCmd represents the scan-devices command.
var scanDevicesCmd = &cobra.Command{
	Use:   "scan-devices",
	Short: "Discover, port scan and identify every device",
	Long: `Run the full scan pipeline: discover devices, scan the configured ports on
each, grab banners and classify every device by type and by any AI or
developer tool it appears to run. Progress is written to stderr.`,
	Example: `  netrecon scan-devices
  netrecon scan-devices --full --verbose
  netrecon scan-devices --save`,
	Args: cobra.NoArgs,
	RunE: runScanDevices,
}

// scanPortsCmd represents the scan-ports command.
var scanPortsCmd = &cobra.Command{
	Use:   "scan-ports <ip>",
	Short: "Port scan and identify a single address",
	Long: `Scan the configured ports on one IPv4 address and identify it. With --deep
every TCP port from 1 to 65535 is scanned.`,
	Example: `  netrecon scan-ports 192.168.1.50
  netrecon scan-ports 192.168.1.90 --deep`,
	Args: cobra.ExactArgs(1),
	RunE: runScanPorts,
}

func init() {
	rootCmd.AddCommand(scanDevicesCmd)
	rootCmd.AddCommand(scanPortsCmd)

	scanDevicesCmd.Flags().BoolVar(&scanFull, "full", false, "Run an active sweep before reading the ARP cache")
	scanDevicesCmd.Flags().BoolVar(&scanSave, "save", false, "Persist the result to the device store")

	scanPortsCmd.Flags().BoolVar(&scanDeep, "deep", false, "Scan all TCP ports 1-65535")
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runScanDevices(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	logger := logging.Default()
	e, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	var store netmap.Store
	if scanSave {
		database, repo, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()
		store = repo
	}

	devices, err := runScan(ctx, e.coordinator(store), coordinator.ScanRequest{Full: scanFull}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	printScanResult(cmd.OutOrStdout(), devices, verbose)
	return nil
}

// runScan starts a scan and prints progress until the Complete event.
func runScan(ctx context.Context, starter scheduler.ScanStarter, req coordinator.ScanRequest,
	progress io.Writer) ([]netmap.Device, error) {
	events, err := starter.Start(ctx, req)
	if err != nil {
		return nil, err
	}

	for ev := range events {
		if ev.Err != nil {
			return nil, fmt.Errorf("scan failed: %w", ev.Err)
		}
		fmt.Fprintln(progress, formatProgress(ev.Progress))
		if ev.Progress.Phase == netmap.PhaseComplete {
			return ev.Devices, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.WrapScanError(errors.CodeCanceled, "scan cancelled", err)
	}
	return nil, errors.NewScanError(errors.CodeCanceled, "scan cancelled")
}

func runScanPorts(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	addr, err := netip.ParseAddr(args[0])
	if err != nil || !addr.Is4() {
		return errors.ErrInvalidTarget(args[0])
	}

	e, err := newEngine(cfg, logging.Default())
	if err != nil {
		return err
	}

	device := netmap.NewDevice(syntheticMAC, addr.String())
	if scanDeep {
		device, err = deepScan(ctx, e, device, cmd.ErrOrStderr())
	} else {
		device, err = e.scanner.ScanDevice(ctx, device, e.ports)
	}
	if err != nil {
		return fmt.Errorf("port scan failed: %w", err)
	}

	printPortScan(cmd.OutOrStdout(), identify.Identify(device))
	return nil
}

func deepScan(ctx context.Context, e *engine, device netmap.Device, out io.Writer) (netmap.Device, error) {
	progress := make(chan netmap.ScanProgress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			fmt.Fprintln(out, formatProgress(p))
		}
	}()

	device, err := e.scanner.DeepScan(ctx, device, progress)
	close(progress)
	<-done
	return device, err
}
