// Package cli provides the command-line interface for the alert engine.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"portfolio-alerts/internal/config"
	"portfolio-alerts/internal/feed"
	"portfolio-alerts/internal/notify"
	"portfolio-alerts/internal/store"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.AlertStore
	Feed     feed.Feed
	Notifier notify.Notifier
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "alertd",
		Short: "Alert engine for the investment dashboard",
		Long: `alertd watches asset metrics for alert conditions.

It stores alert rules, periodically evaluates them against a metric feed and
forwards trigger events to the configured notification channels.

Use 'alertd help <command>' for more information about a command.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return app.initStore()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.Store != nil {
				app.Store.Close()
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	addAlertCommands(rootCmd, app)
	addWatchlistCommands(rootCmd, app)
	addRunCommand(rootCmd, app)

	return rootCmd
}

// initStore opens the configured store backend.
func (app *App) initStore() error {
	if app.Store != nil {
		return nil
	}

	var err error
	switch app.Config.Store.Backend {
	case "postgres":
		app.Store, err = store.NewPostgresStore(app.Config.Store.DSN)
	default:
		app.Store, err = store.NewSQLiteStore(app.Config.Store.Path)
	}
	if err != nil {
		return fmt.Errorf("failed to open alert store: %w", err)
	}

	app.Logger.Debug().Str("backend", app.Config.Store.Backend).Msg("alert store initialized")
	return nil
}
