package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/groveapp/grove/pkg/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage the sync queue",
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Drain the sync queue immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if !a.remoteConfigured() {
			return fmt.Errorf("no sync.remote_url configured; running local-only")
		}

		if err := a.queue.Drain(context.Background()); err != nil {
			return err
		}
		counts, err := a.queue.Status()
		if err != nil {
			return err
		}

		fmt.Printf("✓ Drained: %d synced, %d still pending, %d abandoned\n",
			counts[types.SyncSynced], counts[types.SyncPending], counts[types.SyncFailed])
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued operations by state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		counts, err := a.queue.Status()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STATE\tCOUNT")
		for _, st := range []types.SyncStatus{types.SyncPending, types.SyncSyncing, types.SyncSynced, types.SyncFailed} {
			fmt.Fprintf(w, "%s\t%d\n", st, counts[st])
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if !a.remoteConfigured() {
			fmt.Println("\nNote: no sync.remote_url configured; operations will queue but not drain.")
		}
		return nil
	},
}

var syncListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ops, err := a.store.ListSyncOperations()
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ENQUEUED\tKIND\tENTITY\tSTATE\tRETRIES\tLAST ERROR")
		for _, op := range ops {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				op.EnqueuedAt.Format("2006-01-02 15:04:05"),
				op.Kind, op.EntityType, op.Status, op.RetryCount, op.LastError)
		}
		return w.Flush()
	},
}

func init() {
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncListCmd)
}
