package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"hardcore/internal/bootstrap"
	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
)

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Manage the balances spent by paid revival",
}

var pointsGrantCmd = &cobra.Command{
	Use:   "grant <participant> <currency> <amount>",
	Short: "Add to a participant's balance",
	Args:  cobra.ExactArgs(3),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		id, err := resolveParticipant(ctx, app, positional(cmd, 0))
		if err != nil {
			return err
		}
		currency := positional(cmd, 1)
		amount, err := strconv.ParseInt(positional(cmd, 2), 10, 64)
		if err != nil {
			return errs.Wrap(err, "parse amount")
		}

		balance, err := app.Wallet.Grant(ctx, id, currency, amount)
		if err != nil {
			logging.Error(ctx, "grant points failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "grant points")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s balance: %d\n", id, currency, balance); err != nil {
			return errs.Wrap(err, "write grant output")
		}
		return nil
	}),
}

var pointsBalanceCmd = &cobra.Command{
	Use:   "balance <participant>",
	Short: "Show balances for every currency the revive price uses",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		id, err := resolveParticipant(ctx, app, positional(cmd, 0))
		if err != nil {
			return err
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(cmd.OutOrStdout())
		tw.AppendHeader(table.Row{"Currency", "Balance", "Revive Price"})
		for _, currency := range app.Config.Settings.ReviveCurrencies() {
			balance, err := app.Wallet.Balance(ctx, id, currency)
			if err != nil {
				return errs.Wrapf(err, "read %s balance", currency)
			}
			tw.AppendRow(table.Row{currency, balance, app.Config.Settings.ReviveNeed[currency]})
		}
		tw.Render()
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(pointsCmd)
	pointsCmd.AddCommand(pointsGrantCmd)
	pointsCmd.AddCommand(pointsBalanceCmd)
}
