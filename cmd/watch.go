package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"hardcore/internal/bootstrap"
	"hardcore/internal/errs"
	"hardcore/internal/usecase/watchconsole"
)

var watchCmd = &cobra.Command{
	Use:   "watch <participant>",
	Short: "Live terminal view of one participant's cooldown",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		group, _ := cmd.Flags().GetString("group")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		id, err := resolveParticipant(ctx, app, positional(cmd, 0))
		if err != nil {
			return err
		}
		if group == "" {
			group = app.Lifecycle.DefaultGroup()
		}

		model := watchconsole.NewModel(ctx, app.Lifecycle, watchconsole.Options{
			ParticipantID:   id,
			GroupKey:        group,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run watch console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("group", "", "Group key (default: settings.serverName)")
	watchCmd.Flags().Duration("refresh-interval", time.Second, "Auto refresh interval")
}
