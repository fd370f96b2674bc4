// Command strumsim plays the strum game with a synthetic hand.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/airstrum/internal/strumsim"
	"github.com/okian/airstrum/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := strumsim.DefaultConfig()
	var logLevel string

	root := &cobra.Command{
		Use:   "strumsim",
		Short: "Simulate an air-guitar session",
		Long: `strumsim drives the strum-matching engine with a synthetic hand that
sweeps across the strum zone whenever a note reaches the hit line. Runs are
reproducible for a given --seed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return err
			}
			return logger.SetLevelString(logLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := strumsim.Run(cmd.Context(), cfg, cmd.OutOrStdout())
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.Int64Var(&cfg.Seed, "seed", 0, "seed for labels, timing error and skips")
	flags.DurationVar(&cfg.Duration, "duration", cfg.Duration, "session length")
	flags.Float64Var(&cfg.BPM, "bpm", cfg.BPM, "notes per minute")
	flags.StringSliceVar(&cfg.Labels, "labels", nil, "chord labels to replay in order (default: random)")
	flags.DurationVar(&cfg.Tick, "tick", cfg.Tick, "engine tick period")
	flags.DurationVar(&cfg.Jitter, "jitter", cfg.Jitter, "standard deviation of strum timing error")
	flags.Float64Var(&cfg.Skip, "skip", 0, "probability of letting a note pass")
	flags.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.Flags().StringVar(&cfg.Record, "record", "", "write the session to a MIDI file")
	root.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "print every strum")

	root.AddCommand(newStreamCmd(&cfg))
	return root
}

func newStreamCmd(cfg *strumsim.Config) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Play a real-time session against a running service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := strumsim.Stream(cmd.Context(), strumsim.NewClient(url), *cfg, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:9080", "base URL of the service")
	return cmd
}
