package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ejames/nowcast/internal/api"
	"github.com/ejames/nowcast/internal/api/handlers"
	"github.com/ejames/nowcast/internal/scheduler"
	"github.com/ejames/nowcast/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server, the websocket hub, and (unless
disabled) the job scheduler for the daily pipeline.

Endpoints:
  GET  /health               - Health check
  GET  /ws                   - Websocket metrics feed
  GET  /api/metrics/latest   - Latest run metrics
  GET  /api/metrics/history  - Metrics across recent runs
  GET  /api/attention        - Attention records by date range
  POST /api/run              - Trigger a pipeline run
  POST /api/collect          - Trigger data collection

Example:
  go run ./cmd/nowcast api
  go run ./cmd/nowcast api --port 8089`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	log := d.log
	log.WithFields(map[string]interface{}{
		"port": d.cfg.Port,
		"env":  d.cfg.Env,
	}).Info("Initializing API server")

	hub := api.NewHub(log)

	nowcastHandler := handlers.NewNowcastHandler(d.metricsRepo, d.attentionRepo, d.service, hub, d.cache, log)
	collectHandler := handlers.NewCollectHandler(d.cfg, d.feedCollector, d.priceFetcher, d.attentionRepo, d.priceRepo, d.universes, log)

	router := api.NewRouter(nowcastHandler, collectHandler, hub, log)
	server := api.New(d.cfg, log, router)

	var sched *scheduler.Scheduler
	if d.cfg.Scheduler.Enabled {
		sched = scheduler.New(d.cfg.Scheduler.MaxRetries, d.cfg.Scheduler.RetryDelay, log)
		if err := registerJobs(sched, d, hub); err != nil {
			return fmt.Errorf("register jobs: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	if sched != nil {
		fmt.Println("\nScheduled jobs:")
		for _, name := range sched.Jobs() {
			fmt.Printf("  - %s\n", name)
		}
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// registerJobs wires the daily pipeline jobs. The broadcaster may be
// nil when no websocket hub is running.
func registerJobs(sched *scheduler.Scheduler, d *deps, broadcaster jobs.Broadcaster) error {
	buzz := jobs.NewBuzzJob(d.feedCollector, d.attentionRepo, d.universes, d.cfg, d.log)
	if err := sched.AddJob(buzz); err != nil {
		return err
	}

	bars := jobs.NewPriceJob(d.priceFetcher, d.priceRepo, d.universes, d.cfg, d.log)
	if err := sched.AddJob(bars); err != nil {
		return err
	}

	run := jobs.NewNowcastRunJob(d.service, broadcaster, d.cache, d.cfg, d.log)
	return sched.AddJob(run)
}
