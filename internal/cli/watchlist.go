package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"portfolio-alerts/internal/models"
	"portfolio-alerts/internal/watchlist"
)

// addWatchlistCommands adds watchlist commands.
func addWatchlistCommands(rootCmd *cobra.Command, app *App) {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the watchlist",
	}

	watchCmd.AddCommand(newWatchAddCmd(app))
	watchCmd.AddCommand(newWatchRemoveCmd(app))
	watchCmd.AddCommand(newWatchListCmd(app))
	watchCmd.AddCommand(newWatchTargetCmd(app))

	rootCmd.AddCommand(watchCmd)
}

func newWatchAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add SYMBOL",
		Short:   "Add a symbol to the watchlist",
		Example: `  alertd watch add BTC --asset crypto`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			assetType, _ := cmd.Flags().GetString("asset")
			bridge := watchlist.NewBridge(app.Store, app.Logger)

			entry, err := bridge.Watch(ctx, args[0], models.AssetType(assetType))
			if err != nil {
				return err
			}
			fmt.Printf("Watching %s (%s)\n", entry.Symbol, entry.AssetType)
			return nil
		},
	}

	cmd.Flags().String("asset", "crypto", "Asset type: crypto or stock")
	return cmd
}

func newWatchRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove SYMBOL",
		Short: "Remove a symbol from the watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			bridge := watchlist.NewBridge(app.Store, app.Logger)
			if err := bridge.Unwatch(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s from watchlist\n", args[0])
			return nil
		},
	}
}

func newWatchListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List watched symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			bridge := watchlist.NewBridge(app.Store, app.Logger)
			entries, err := bridge.List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tASSET\tTARGET")
			for _, e := range entries {
				target := "-"
				if e.TargetPrice > 0 {
					target = fmt.Sprintf("%.2f", e.TargetPrice)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Symbol, e.AssetType, target)
			}
			return w.Flush()
		},
	}
}

func newWatchTargetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "target SYMBOL PRICE",
		Short:   "Set a target price on a watched symbol",
		Long:    "Set a target price on a watched symbol and derive a one-shot price alert armed above it.",
		Example: `  alertd watch target BTC 50000`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var price float64
			if _, err := fmt.Sscanf(args[1], "%g", &price); err != nil {
				return fmt.Errorf("invalid price %q", args[1])
			}

			assetType, _ := cmd.Flags().GetString("asset")
			bridge := watchlist.NewBridge(app.Store, app.Logger)

			alert, err := bridge.OnTargetPriceSet(ctx, args[0], models.AssetType(assetType), price)
			if err != nil {
				return err
			}
			fmt.Printf("Created alert %s: %s\n", alert.ID, alert.Describe())
			return nil
		},
	}

	cmd.Flags().String("asset", "crypto", "Asset type: crypto or stock")
	return cmd
}
