package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"portfolio-alerts/internal/models"
)

// addAlertCommands adds alert management commands.
func addAlertCommands(rootCmd *cobra.Command, app *App) {
	alertCmd := &cobra.Command{
		Use:   "alert",
		Short: "Manage alert rules",
	}

	alertCmd.AddCommand(newAlertCreateCmd(app))
	alertCmd.AddCommand(newAlertListCmd(app))
	alertCmd.AddCommand(newAlertDeleteCmd(app))
	alertCmd.AddCommand(newAlertResetCmd(app))

	rootCmd.AddCommand(alertCmd)
}

func newAlertCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create SYMBOL",
		Short: "Create an alert rule",
		Long: `Create an alert rule for a symbol.

The alert type is selected by the flags given:
  --target with --condition        price alert
  --percent with --direction       percentage alert against --base
  --conditions (JSON) with --op    multi-condition alert`,
		Example: `  alertd alert create BTC --asset crypto --target 50000 --condition above
  alertd alert create AAPL --asset stock --percent 10 --direction loss --base 180
  alertd alert create ETH --asset crypto --op AND \
      --conditions '[{"metric":"price","comparator":"above","value":3000},{"metric":"volume","comparator":"above","value":1e9}]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			symbol := args[0]
			assetType, _ := cmd.Flags().GetString("asset")
			recurring, _ := cmd.Flags().GetString("recurring")
			notes, _ := cmd.Flags().GetString("notes")

			alert, err := buildAlert(cmd, symbol, models.AssetType(assetType), models.Recurrence(recurring))
			if err != nil {
				return err
			}
			alert.Notes = notes

			if err := alert.Validate(); err != nil {
				return err
			}
			if err := app.Store.SaveAlert(ctx, alert); err != nil {
				return err
			}

			fmt.Printf("Created alert %s: %s (%s)\n", alert.ID, alert.Describe(), alert.Recurring)
			return nil
		},
	}

	cmd.Flags().String("asset", "crypto", "Asset type: crypto or stock")
	cmd.Flags().String("recurring", "once", "Recurrence: once, daily or weekly")
	cmd.Flags().String("notes", "", "Free-text notes")
	cmd.Flags().Float64("target", 0, "Target price (price alert)")
	cmd.Flags().String("condition", "above", "Price condition: above or below")
	cmd.Flags().Float64("percent", 0, "Percentage change magnitude (percentage alert)")
	cmd.Flags().String("direction", "gain", "Percentage direction: gain or loss")
	cmd.Flags().Float64("base", 0, "Base reference price (percentage alert)")
	cmd.Flags().String("conditions", "", "Conditions as JSON (multi-condition alert)")
	cmd.Flags().String("op", "AND", "Condition operator: AND or OR")

	return cmd
}

// buildAlert selects the alert type from the flags that were set.
func buildAlert(cmd *cobra.Command, symbol string, assetType models.AssetType, recurring models.Recurrence) (*models.Alert, error) {
	conditionsJSON, _ := cmd.Flags().GetString("conditions")
	if conditionsJSON != "" {
		var conditions []models.Condition
		if err := json.Unmarshal([]byte(conditionsJSON), &conditions); err != nil {
			return nil, fmt.Errorf("invalid --conditions: %w", err)
		}
		op, _ := cmd.Flags().GetString("op")
		return models.NewMultiConditionAlert(symbol, assetType, models.Operator(strings.ToUpper(op)), conditions, recurring), nil
	}

	if cmd.Flags().Changed("percent") {
		percent, _ := cmd.Flags().GetFloat64("percent")
		direction, _ := cmd.Flags().GetString("direction")
		base, _ := cmd.Flags().GetFloat64("base")
		return models.NewPercentageAlert(symbol, assetType, models.PercentCondition(direction), percent, base, recurring), nil
	}

	target, _ := cmd.Flags().GetFloat64("target")
	condition, _ := cmd.Flags().GetString("condition")
	return models.NewPriceAlert(symbol, assetType, models.Comparator(condition), target, recurring), nil
}

func newAlertListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alert rules",
		Example: `  alertd alert list
  alertd alert list --symbol BTC
  alertd alert list --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			symbol, _ := cmd.Flags().GetString("symbol")
			all, _ := cmd.Flags().GetBool("all")

			var alerts []models.Alert
			var err error
			if symbol != "" {
				alerts, err = app.Store.ListBySymbol(ctx, strings.ToUpper(symbol))
			} else {
				alerts, err = app.Store.ListActive(ctx)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tRULE\tRECURRING\tSTATUS\tCREATED")
			for _, a := range alerts {
				if a.Triggered && !all && symbol == "" {
					continue
				}
				status := "active"
				if a.Triggered {
					status = fmt.Sprintf("triggered %s", a.TriggeredAt.Format("2006-01-02 15:04"))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.ID, a.Describe(), a.Recurring, status, a.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("symbol", "", "Filter by symbol")
	cmd.Flags().Bool("all", false, "Include triggered alerts")

	return cmd
}

func newAlertDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := app.Store.DeleteAlert(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted alert %s\n", args[0])
			return nil
		},
	}
}

func newAlertResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset ID",
		Short: "Re-arm a triggered alert",
		Long:  "Return a triggered alert to the active state so the scheduler evaluates it again.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := app.Store.ResetAlert(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Reset alert %s\n", args[0])
			return nil
		},
	}
}
