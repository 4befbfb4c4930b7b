package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "grove",
	Short: "Grove - local-first habit tracker",
	Long: `Grove is a habit tracker that works fully offline. Completions,
XP and progress live in a local append-only log; streaks, decay, growth
and weather are derived from it on demand, and every change is queued
for background sync with the backend.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Grove version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("user", "local", "User ID to act as")

	rootCmd.AddCommand(habitCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(xpCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(adCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
}
