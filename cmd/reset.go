package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hardcore/internal/bootstrap"
	"hardcore/internal/errs"
	"hardcore/internal/usecase/command"
)

var resetCmd = &cobra.Command{
	Use:   "reset <name|uuid>",
	Short: "Clear a participant's cooldown as an administrator",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		reply := app.Commands.Execute(ctx, command.Console(), []string{"reset", positional(cmd, 0)})
		if err := flush(ctx, app); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), reply.String()); err != nil {
			return errs.Wrap(err, "write reset output")
		}
		return nil
	}),
}

var execCmd = &cobra.Command{
	Use:   "exec [args...]",
	Short: "Run one hardcore command line, as the console or as a participant",
	Long:  "Runs help, revive, revive pay or reset through the command surface. With --as the sender is that participant; otherwise it is the console.",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		as, _ := cmd.Flags().GetString("as")
		perms, _ := cmd.Flags().GetStringSlice("perm")

		sender := command.Console()
		if as != "" {
			id, err := resolveParticipant(ctx, app, as)
			if err != nil {
				return err
			}
			sender = command.Sender{ParticipantID: id, Name: as, IsParticipant: true, Permissions: perms}
		}

		confirm, _ := cmd.Flags().GetBool("confirm")
		reply := app.Commands.Execute(ctx, sender, cmd.Flags().Args())
		if confirm {
			// Confirmation tokens live in memory, so the repeat has to
			// happen inside this process.
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), reply.String()); err != nil {
				return errs.Wrap(err, "write exec output")
			}
			reply = app.Commands.Execute(ctx, sender, cmd.Flags().Args())
		}
		if err := flush(ctx, app); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), reply.String()); err != nil {
			return errs.Wrap(err, "write exec output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().String("as", "", "Participant name or uuid to run as")
	execCmd.Flags().Bool("confirm", false, "Repeat the command once, answering a confirmation prompt")
	execCmd.Flags().StringSlice("perm", []string{command.PermissionRevive}, "Permissions granted to --as")
}
