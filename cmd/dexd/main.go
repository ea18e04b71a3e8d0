package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "dexd",
		Short:        "Constant-product liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("store", "pebble", "pool store backend (memory, pebble, postgres)")
	root.PersistentFlags().String("data-dir", "./data/pools", "pebble data directory")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("events-out", "./data/events.jsonl", "events JSONL path, empty to disable")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(poolCommands()...)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pool engine over HTTP",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	root.AddCommand(serveCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare recorded reserves with on-chain custody balances",
		RunE:  runReconcile,
	}
	reconcileCmd.Flags().String("rpc", "", "EVM RPC URL")
	reconcileCmd.Flags().String("custody", "", "custody account address")
	reconcileCmd.Flags().StringSlice("token", nil, "only reconcile these tokens (comma-separated)")
	reconcileCmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	reconcileCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	reconcileCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.AddCommand(reconcileCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate the event log into pool window statistics",
		RunE:  runStats,
	}
	statsCmd.Flags().String("in", "", "input events JSONL (defaults to events-out)")
	statsCmd.Flags().String("out", "", "output JSONL path (used when pg-dsn is empty)")
	statsCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	statsCmd.Flags().Int("batch-size", 1000, "batch size for writes")
	statsCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	statsCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	root.AddCommand(statsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
