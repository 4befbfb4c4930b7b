package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/groveapp/grove/pkg/log"
	"github.com/groveapp/grove/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background sync worker",
	Long: `Run the sync worker in the foreground. The worker drains the queue
on a fixed interval and serves Prometheus metrics over HTTP. Progress
events are logged as they happen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if !a.remoteConfigured() {
			return fmt.Errorf("no sync.remote_url configured; nothing to sync")
		}

		logger := log.WithComponent("serve")

		a.broker.Start()
		defer a.broker.Stop()

		// Log progress events as they arrive.
		sub := a.broker.Subscribe()
		go func() {
			for ev := range sub {
				logger.Info().
					Str("event", string(ev.Type)).
					Str("user_id", ev.UserID).
					Str("habit_id", ev.HabitID).
					Msg(ev.Message)
			}
		}()

		a.queue.Start()
		defer a.queue.Stop()

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()

		fmt.Printf("Sync worker running. Metrics on %s/metrics. Press Ctrl+C to stop.\n", metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		srv.Close()
		a.broker.Unsubscribe(sub)

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9464", "Address for the metrics endpoint")
}
