package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groveapp/grove/pkg/clock"
	"github.com/groveapp/grove/pkg/config"
	"github.com/groveapp/grove/pkg/coordinator"
	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/events"
	"github.com/groveapp/grove/pkg/log"
	"github.com/groveapp/grove/pkg/outbox"
	"github.com/groveapp/grove/pkg/remote"
	"github.com/groveapp/grove/pkg/storage"
)

// app holds the wired-up core for one command invocation.
type app struct {
	cfg    *config.Config
	userID string
	store  storage.Store
	queue  *outbox.Queue
	broker *events.Broker
	coord  *coordinator.Coordinator
}

// newApp loads configuration and wires the core. The sync queue is always
// created so writes accumulate durably, but it only drains when a remote
// is configured.
func newApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	userID, _ := cmd.Flags().GetString("user")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: !cfg.Log.Pretty,
		Output:     os.Stderr,
	})

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	norm := dates.Normalizer{Grace: cfg.Dates.GracePeriod, Location: loc}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	broker := events.NewBroker()

	clk := clock.System{}
	rs := remote.NewHTTPStore(cfg.Sync.RemoteURL, cfg.Sync.RequestTimeout)
	queue, err := outbox.New(store, rs, clk, broker, outbox.LogReporter{}, outbox.Config{
		MaxRetries:     cfg.Sync.MaxRetries,
		Capacity:       cfg.Sync.QueueCapacity,
		RequestTimeout: cfg.Sync.RequestTimeout,
		DrainInterval:  cfg.Sync.DrainInterval,
		Retention:      cfg.Sync.Retention,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	coord := coordinator.New(store, queue, broker, clk, norm, coordinator.Config{
		MaxHabits:          cfg.Limits.MaxHabits,
		RewardedAdDailyCap: cfg.Limits.RewardedAdDailyCap,
	})

	return &app{
		cfg:    cfg,
		userID: userID,
		store:  store,
		queue:  queue,
		broker: broker,
		coord:  coord,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
	}
}

func (a *app) remoteConfigured() bool {
	return a.cfg.Sync.RemoteURL != ""
}
