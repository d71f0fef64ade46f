package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"hardcore/internal/bootstrap"
	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/usecase/command"
	"hardcore/internal/usecase/messages"
)

var incapacitateCmd = &cobra.Command{
	Use:   "incapacitate <participant>",
	Short: "Record a death for a participant, as a session host would",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		group, _ := cmd.Flags().GetString("group")
		cause, _ := cmd.Flags().GetString("cause")
		world, _ := cmd.Flags().GetString("world")

		id, err := resolveParticipant(ctx, app, positional(cmd, 0))
		if err != nil {
			return err
		}

		var location *revival.Location
		if world != "" {
			x, _ := cmd.Flags().GetFloat64("x")
			y, _ := cmd.Flags().GetFloat64("y")
			z, _ := cmd.Flags().GetFloat64("z")
			location = &revival.Location{World: world, X: x, Y: y, Z: z}
		}

		result, err := app.Commands.Death(ctx, command.DeathInput{
			ParticipantID: id,
			GroupKey:      group,
			Cause:         cause,
			Location:      location,
		})
		if err != nil {
			logging.Error(ctx, "record death failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "record death")
		}
		if err := flush(ctx, app); err != nil {
			return err
		}

		msg := fmt.Sprintf("incapacitated %s for %s\n", id, messages.FormatDuration(result.Status.Remaining))
		if result.Duplicate {
			msg = fmt.Sprintf("%s is already incapacitated (%s left)\n", id, messages.FormatDuration(result.Status.Remaining))
		}
		if _, err := fmt.Fprint(cmd.OutOrStdout(), msg); err != nil {
			return errs.Wrap(err, "write incapacitate output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(incapacitateCmd)
	incapacitateCmd.Flags().String("group", "", "Group key (default: settings.serverName)")
	incapacitateCmd.Flags().String("cause", "", "Death cause recorded in event data")
	incapacitateCmd.Flags().String("world", "", "World of the death location")
	incapacitateCmd.Flags().Float64("x", 0, "Death location x")
	incapacitateCmd.Flags().Float64("y", 0, "Death location y")
	incapacitateCmd.Flags().Float64("z", 0, "Death location z")
}
