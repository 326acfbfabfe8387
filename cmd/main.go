package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/zkpresence/internal/config"
	"github.com/okian/zkpresence/pkg/logger"
	"github.com/okian/zkpresence/pkg/metrics"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the zkpresence command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zkpresence",
		Short: "Scores a username's presence across the Union leaderboard seasons.",
		Long: `zkpresence reads the season 0 and season 1 mindshare leaderboards and derives
four percentages for a username: zkConsistency, zkEffectiveness, zkUnionMaxi
and the overall zkPresence Score. Results are cached per username.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.AddCommand(newServeCmd(), newScoreCmd())
	return root
}

// setup initializes logging on the command's stderr, loads configuration
// (defaults -> optional file -> env) and configures the metrics manager.
func setup(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	if err := logger.InitWithWriter(cmd.ErrOrStderr()); err != nil {
		return nil, nil, err
	}
	log := logger.Get()

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithMetricPrefix(cfg.MetricsPrefix),
	)

	return cfg, log, nil
}
