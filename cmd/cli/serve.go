package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/netrecon/internal/api"
	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/metrics"
	"github.com/anstrom/netrecon/internal/scheduler"
)

const systemMetricsInterval = 30 * time.Second

var (
	serveWatch bool
	serveStore bool
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the REST API, the WebSocket progress stream and Prometheus metrics.
Scans are started with POST /api/v1/scans and streamed to every client
connected to /api/v1/ws. With --watch the configured watch schedule runs
in the same process and its scans are streamed too.`,
	Example: `  netrecon serve
  netrecon serve --watch
  netrecon --demo serve --store=false`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Also run scans on the watch.schedule")
	serveCmd.Flags().BoolVar(&serveStore, "store", true, "Persist completed scans and serve the stored inventory")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	logger := logging.Default()
	e, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.GetGlobalMetrics()
	opts := []api.Option{api.WithLogger(logger), api.WithMetrics(m)}

	var coord *coordinator.Coordinator
	if serveStore {
		database, repo, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()
		coord = e.coordinator(repo)
		opts = append(opts, api.WithStore(repo, cfg.Scanning.Network), api.WithDatabase(database))
	} else {
		coord = e.coordinator(nil)
	}

	server := api.New(cfg.API, coord, opts...)
	go m.StartPeriodicUpdates(ctx, systemMetricsInterval)

	if serveWatch {
		publish := func(_ scheduler.Job, ev coordinator.Event) { server.Publish(ev) }
		if _, _, err := startWatch(ctx, coord, logger, publish, cfg.Watch.Schedule, cfg.Watch.Full, e.ports); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", server.GetAddress())
	return server.Start(ctx)
}
