package notify

import (
	"context"
	"log/slog"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/ports"
)

// LogNotifier writes notifications to the context logger. One-shot CLI
// commands use it as their only delivery channel.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n ports.Notification) error {
	logCtx := logging.WithParticipant(ctx, n.ParticipantID.String(), n.GroupKey)
	logging.Info(logCtx, "notification", slog.String("kind", string(n.Kind)), slog.String("message", n.Message))
	return nil
}
