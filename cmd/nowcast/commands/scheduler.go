package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ejames/nowcast/internal/scheduler"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the job scheduler",
	Long: `Runs the pipeline scheduler without the API server.

Registered jobs:
  buzz_collection  - poll feeds for ticker mentions
  price_collection - fetch daily bars after the US close
  nowcast_run      - daily pipeline run

Subcommands:
  start        - run the scheduler daemon
  trigger JOB  - run one job immediately and exit

Example:
  go run ./cmd/nowcast scheduler start
  go run ./cmd/nowcast scheduler trigger price_collection`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Run the scheduler daemon",
		RunE:  runSchedulerDaemon,
	}

	schedulerTriggerCmd = &cobra.Command{
		Use:   "trigger [job_name]",
		Short: "Run one job immediately and exit",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerTrigger,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerTriggerCmd)
}

func initScheduler() (*scheduler.Scheduler, *deps, error) {
	d, err := initDeps()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(d.cfg.Scheduler.MaxRetries, d.cfg.Scheduler.RetryDelay, d.log)
	if err := registerJobs(sched, d, nil); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("register jobs: %w", err)
	}
	return sched, d, nil
}

func runSchedulerDaemon(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler()
	if err != nil {
		return err
	}
	defer d.Close()

	sched.Start()

	fmt.Println("✅ Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.Jobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func runSchedulerTrigger(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, d, err := initScheduler()
	if err != nil {
		return err
	}
	defer d.Close()

	fmt.Printf("Triggering %s...\n", jobName)
	if err := sched.TriggerJob(jobName); err != nil {
		return err
	}

	// TriggerJob runs asynchronously; poll until the run is recorded
	for {
		time.Sleep(500 * time.Millisecond)
		st, ok := sched.Stats()[jobName]
		if !ok || st.TotalRuns == 0 {
			continue
		}
		if st.LastError != "" {
			return fmt.Errorf("job %s failed: %s", jobName, st.LastError)
		}
		PrintSuccess(fmt.Sprintf("Job %s completed", jobName))
		return nil
	}
}
