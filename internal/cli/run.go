package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"portfolio-alerts/internal/engine"
	"portfolio-alerts/internal/feed"
	"portfolio-alerts/internal/notify"
	"portfolio-alerts/internal/scheduler"
)

// addRunCommand adds the scheduler run command.
func addRunCommand(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the recurrence scheduler",
		Long: `Run the recurrence scheduler until interrupted.

Each tick pulls due alerts from the store, evaluates them against the metric
feed and fires trigger notifications. Stop with SIGINT or SIGTERM; writes are
single-step, so stopping between ticks is always safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if app.Feed == nil {
				app.Feed = feed.NewHTTPFeed(app.Config.Feed)
			}
			if app.Notifier == nil {
				if app.Config.Notifications.Enabled {
					app.Notifier = notify.NewMultiNotifier(app.Config.Notifications)
				} else {
					app.Notifier = notify.NewNoOpNotifier()
				}
			}

			if app.Config.Metrics.Enabled {
				go serveMetrics(app, app.Config.Metrics.ListenAddr)
			}

			sink := engine.NewTriggerSink(app.Store, app.Notifier, app.Logger)
			sched := scheduler.New(
				app.Store,
				app.Feed,
				sink,
				app.Logger,
				app.Config.Scheduler.Interval,
				app.Config.Scheduler.FeedTimeout,
				app.Config.Scheduler.Workers,
			)

			return sched.Run(ctx)
		},
	}

	rootCmd.AddCommand(cmd)
}

func serveMetrics(app *App, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	app.Logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		app.Logger.Warn().Err(err).Msg("metrics endpoint stopped")
	}
}
