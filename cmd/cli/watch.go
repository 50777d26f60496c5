package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/netmap"
	"github.com/anstrom/netrecon/internal/scheduler"
)

const watchJobName = "watch"

var (
	watchSchedule string
	watchFull     bool
	watchNow      bool
)

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan the network on a cron schedule",
	Long: `Run scan-devices on a cron schedule until interrupted. A run that would
overlap one still in progress is skipped. With watch.persist enabled every
completed scan is saved to the device store.`,
	Example: `  netrecon watch --schedule "*/15 * * * *"
  netrecon watch --schedule "@hourly" --full --now`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "Cron expression (default: watch.schedule)")
	watchCmd.Flags().BoolVar(&watchFull, "full", false, "Run an active sweep on every scan")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Run one scan immediately")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	schedule := watchSchedule
	if schedule == "" {
		schedule = cfg.Watch.Schedule
	}
	full := watchFull || cfg.Watch.Full

	logger := logging.Default()
	e, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	var store netmap.Store
	if cfg.Watch.Persist {
		database, repo, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()
		store = repo
	}

	sched, jobID, err := startWatch(ctx, e.coordinator(store), logger,
		watchSummary(cmd.OutOrStdout()), schedule, full, e.ports)
	if err != nil {
		return err
	}
	defer sched.Stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching on schedule %q (press Ctrl+C to stop)\n", schedule)
	if watchNow {
		go sched.RunJob(jobID)
	}

	<-ctx.Done()
	return nil
}

// watchSummary prints one line per finished scheduled scan.
func watchSummary(w io.Writer) scheduler.EventHandler {
	return func(job scheduler.Job, ev coordinator.Event) {
		switch {
		case ev.Err != nil:
			fmt.Fprintf(w, "[%s] %s: scan failed: %v\n", time.Now().Format("15:04:05"), job.Name, ev.Err)
		case ev.Progress.Phase == netmap.PhaseComplete:
			agents := 0
			for _, d := range ev.Devices {
				agents += len(d.DetectedAgents)
			}
			fmt.Fprintf(w, "[%s] %s: %d devices, %d agents\n",
				time.Now().Format("15:04:05"), job.Name, len(ev.Devices), agents)
		}
	}
}

// startWatch schedules the watch job and stops the scheduler when ctx
// is done.
func startWatch(ctx context.Context, starter scheduler.ScanStarter, logger *logging.Logger,
	handler scheduler.EventHandler, schedule string, full bool, ports []uint16) (*scheduler.Scheduler, uuid.UUID, error) {
	sched := scheduler.New(starter, scheduler.WithLogger(logger), scheduler.WithEventHandler(handler))
	jobID, err := sched.AddScanJob(watchJobName, schedule, full, ports)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if err := sched.Start(); err != nil {
		return nil, uuid.Nil, err
	}
	go func() {
		<-ctx.Done()
		sched.Stop()
	}()
	return sched, jobID, nil
}
