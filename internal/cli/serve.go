package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crypto-analyst/internal/scheduler"
	"crypto-analyst/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr     string
		schedule bool
		prewarm  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analyses over HTTP",
		Long: `Start the HTTP API. With --schedule (or schedule.enabled in config.toml)
the configured symbols are pre-warmed daily and old entries are pruned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.init(ctx); err != nil {
				return err
			}
			cfg := app.Config
			if addr != "" {
				cfg.Server.Addr = addr
			}

			if schedule || cfg.Schedule.Enabled {
				sched, err := scheduler.New(cfg, app.Service, app.Store, app.Logger)
				if err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop()
				if prewarm {
					go sched.Prewarm(ctx)
				}
			}

			srv := server.New(cfg.Server, app.Service, app.Metrics, app.Registry, app.Logger)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "run the daily pre-warm and prune jobs")
	cmd.Flags().BoolVar(&prewarm, "prewarm", false, "pre-warm the scheduled symbols at startup")
	return cmd
}

// Execute runs the root command until completion or interrupt.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
