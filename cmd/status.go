package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hardcore/internal/bootstrap"
	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/usecase/command"
	"hardcore/internal/usecase/messages"
)

type statusView struct {
	ParticipantID    string            `json:"participantId" yaml:"participantId"`
	GroupKey         string            `json:"groupKey" yaml:"groupKey"`
	Incapacitated    bool              `json:"incapacitated" yaml:"incapacitated"`
	Remaining        string            `json:"remaining" yaml:"remaining"`
	RemainingSeconds int64             `json:"remainingSeconds" yaml:"remainingSeconds"`
	EligibleAt       string            `json:"eligibleAt,omitempty" yaml:"eligibleAt,omitempty"`
	Unacknowledged   bool              `json:"unacknowledged" yaml:"unacknowledged"`
	RestoreMethod    string            `json:"restoreMethod,omitempty" yaml:"restoreMethod,omitempty"`
	Cause            string            `json:"cause,omitempty" yaml:"cause,omitempty"`
	Degraded         bool              `json:"degraded" yaml:"degraded"`
	Placeholders     map[string]string `json:"placeholders" yaml:"placeholders"`
}

var statusCmd = &cobra.Command{
	Use:   "status <participant>",
	Short: "Show the authoritative record and classification for a participant",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		group, _ := cmd.Flags().GetString("group")
		output, _ := cmd.Flags().GetString("output")

		id, err := resolveParticipant(ctx, app, positional(cmd, 0))
		if err != nil {
			return err
		}

		snapshot, err := app.Lifecycle.Inspect(ctx, id, group)
		if err != nil && !errors.Is(err, revival.ErrParse) {
			logging.Error(ctx, "inspect participant failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "inspect participant")
		}

		view := statusView{
			ParticipantID:    id.String(),
			GroupKey:         firstNonEmpty(snapshot.Record.GroupKey, group, app.Lifecycle.DefaultGroup()),
			Incapacitated:    snapshot.Status.Incapacitated,
			Remaining:        messages.FormatDuration(snapshot.Status.Remaining),
			RemainingSeconds: snapshot.Status.RemainingSeconds(),
			Unacknowledged:   snapshot.Unacknowledged,
			RestoreMethod:    snapshot.Record.Method(),
			Degraded:         app.Degraded(),
			Placeholders:     app.Commands.Placeholders(ctx, id),
		}
		if snapshot.Status.Incapacitated {
			view.EligibleAt = snapshot.Status.EligibleAt.UTC().Format(time.RFC3339)
		}
		if data, decodeErr := revival.DecodeEventData(snapshot.Record.EventData); decodeErr == nil {
			view.Cause = data.Cause
		}

		return writeStatus(cmd, output, view)
	}),
}

func writeStatus(cmd *cobra.Command, output string, view statusView) error {
	out := cmd.OutOrStdout()
	switch strings.ToLower(output) {
	case "yaml":
		data, err := yaml.Marshal(view)
		if err != nil {
			return errs.Wrap(err, "encode status yaml")
		}
		_, err = out.Write(data)
		return errs.Wrap(err, "write status output")
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return errs.Wrap(encoder.Encode(view), "write status output")
	case "", "text":
		state := "active"
		if view.Incapacitated {
			state = "incapacitated (" + view.Remaining + " left, eligible at " + view.EligibleAt + ")"
		}
		lines := []string{
			"participant: " + view.ParticipantID,
			"group: " + view.GroupKey,
			"state: " + state,
			fmt.Sprintf("revival pending: %t", view.Unacknowledged),
			"restore method: " + firstNonEmpty(view.RestoreMethod, "-"),
		}
		for _, key := range command.PlaceholderKeys() {
			lines = append(lines, fmt.Sprintf("%%hardcore_%s%%: %s", key, view.Placeholders[key]))
		}
		if view.Degraded {
			lines = append(lines, "warning: state store degraded, showing defaults")
		}
		_, err := fmt.Fprintln(out, strings.Join(lines, "\n"))
		return errs.Wrap(err, "write status output")
	default:
		return fmt.Errorf("unsupported output %q (text|yaml|json)", output)
	}
}

func positional(cmd *cobra.Command, index int) string {
	if args := cmd.Flags().Args(); index < len(args) {
		return args[index]
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("group", "", "Group key (default: settings.serverName)")
	statusCmd.Flags().StringP("output", "o", "text", "Output format: text|yaml|json")
}
