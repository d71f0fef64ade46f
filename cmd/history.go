package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"hardcore/internal/bootstrap"
	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
)

var historyCmd = &cobra.Command{
	Use:   "history <participant>",
	Short: "List every stored record for a participant, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		group, _ := cmd.Flags().GetString("group")
		limit, _ := cmd.Flags().GetInt("limit")

		id, err := resolveParticipant(ctx, app, positional(cmd, 0))
		if err != nil {
			return err
		}

		records, err := app.Lifecycle.History(ctx, id, group, limit)
		if err != nil {
			logging.Error(ctx, "list history failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list history")
		}
		if len(records) == 0 {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "no records for %s\n", id)
			return errs.Wrap(err, "write history output")
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(cmd.OutOrStdout())
		tw.AppendHeader(table.Row{"ID", "Updated", "Began", "Eligible", "Cause", "Restore", "Completed"})
		for _, record := range records {
			began, eligible, cause := "-", "-", "-"
			if data, err := revival.DecodeEventData(record.EventData); err == nil {
				began = data.BeganAt.Format(time.RFC3339)
				eligible = data.EligibleAt.Format(time.RFC3339)
				cause = firstNonEmpty(data.Cause, "-")
			}
			tw.AppendRow(table.Row{
				record.ID,
				record.UpdatedAt.UTC().Format(time.RFC3339),
				began,
				eligible,
				cause,
				firstNonEmpty(record.Method(), "-"),
				record.Completed,
			})
		}
		tw.Render()
		return nil
	}),
}

var purgeCmd = &cobra.Command{
	Use:   "purge <participant>",
	Short: "Delete every stored record for a participant in one group",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		group, _ := cmd.Flags().GetString("group")
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("purge deletes history permanently; rerun with --yes")
		}

		id, err := resolveParticipant(ctx, app, positional(cmd, 0))
		if err != nil {
			return err
		}

		deleted, err := app.Lifecycle.Purge(ctx, id, group)
		if err != nil {
			logging.Error(ctx, "purge history failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "purge history")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records for %s\n", deleted, id); err != nil {
			return errs.Wrap(err, "write purge output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("group", "", "Group key (default: settings.serverName)")
	historyCmd.Flags().Int("limit", 20, "Maximum records to show (0 for all)")

	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().String("group", "", "Group key (default: settings.serverName)")
	purgeCmd.Flags().Bool("yes", false, "Confirm the deletion")
}
