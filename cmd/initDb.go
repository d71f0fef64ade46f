/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"hardcore/internal/bootstrap"
	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
)

// initDbCmd represents the initDb command
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or verify the records, directory and wallet tables",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)
		logging.Info(ctx, "start init-db")

		if err := app.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		logging.Info(ctx, "init-db finished", slog.String("table", app.Config.Database.TableName))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema ready: driver=%s table=%s\n", app.Config.Database.Driver, app.Config.Database.TableName); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
