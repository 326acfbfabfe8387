package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/zkpresence/internal/app"
	"github.com/okian/zkpresence/internal/config"
	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/internal/presentation"
	"github.com/okian/zkpresence/pkg/logger"
)

type scoreFlags struct {
	json        bool
	noAnimation bool
	wait        bool
}

func newScoreCmd() *cobra.Command {
	var flags scoreFlags

	cmd := &cobra.Command{
		Use:   "score <username>",
		Short: "Scores a username and prints its presence card.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			result, err := scoreOnce(cmd.Context(), cfg, log, args[0], flags.wait)
			if err != nil {
				return err
			}
			return printResult(cmd.Context(), cmd.OutOrStdout(), cfg, result, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.json, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&flags.noAnimation, "no-animation", false, "skip the loading animation")
	cmd.Flags().BoolVar(&flags.wait, "wait", true, "wait for both datasets before scoring")

	return cmd
}

// scoreOnce runs a short-lived service for a single lookup. Without wait the
// lookup races the dataset load like the server does.
func scoreOnce(ctx context.Context, cfg *config.Config, log logger.Logger, raw string, wait bool) (model.PresenceResult, error) {
	opts := append(service.FromConfig(cfg), service.WithLogger(log))
	if wait {
		opts = append(opts, service.WithAwaitDatasets(true, cfg.FetchTimeout()*time.Duration(cfg.FetchRetries+1)))
	}

	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return model.PresenceResult{}, fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	return svc.Score(ctx, raw)
}

// printResult writes the animation, the card and the share link, or only the
// JSON document when requested.
func printResult(ctx context.Context, w io.Writer, cfg *config.Config, result model.PresenceResult, flags scoreFlags) error {
	if flags.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if !flags.noAnimation {
		animator := presentation.NewAnimator(
			presentation.WithDuration(cfg.AnimationDuration()),
			presentation.WithFrames(cfg.AnimationFrames),
		)
		err := animator.Run(ctx, func(f presentation.Frame) {
			fmt.Fprintf(w, "\r%s", presentation.ProgressLine(f))
		}, func() {
			fmt.Fprintln(w)
		})
		if err != nil {
			return err
		}
	}

	if err := presentation.RenderCard(w, result); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nShare: %s\n", presentation.IntentURL(result))
	return err
}
