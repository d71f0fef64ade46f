package command

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/ports"
	"hardcore/internal/usecase/lifecycle"
)

// reset clears a cooldown without running the revive side effects and
// without flagging the episode completed.
func (h *Handler) reset(ctx context.Context, sender Sender, args []string) Reply {
	if !sender.HasPermission(PermissionAdmin) {
		return reply(h.deps.Catalog.NoPermission())
	}
	if len(args) == 0 || args[0] == "" {
		return reply(h.deps.Catalog.ResetUsage())
	}
	name := args[0]

	participantID, err := h.resolve(ctx, name)
	if errors.Is(err, revival.ErrNotFound) {
		return reply(h.deps.Catalog.UnknownParticipant(name), h.deps.Catalog.ResetUsage())
	}
	if err != nil {
		logging.Error(ctx, "resolve participant failed", slog.String("name", name), slog.Any("err", errs.Loggable(err)))
		return reply(h.deps.Catalog.StoreError())
	}
	ctx = logging.WithParticipant(ctx, participantID.String(), "")

	if err := h.deps.Lifecycle.MarkRestored(ctx, lifecycle.RestoreInput{
		ParticipantID: participantID,
		Method:        revival.MethodAdminReset,
		MarkCompleted: false,
	}); err != nil {
		logging.Error(ctx, "record reset failed", slog.Any("err", errs.Loggable(err)))
	}

	if err := h.deps.Notifier.Notify(ctx, ports.Notification{
		Kind:          ports.NotifyReset,
		ParticipantID: participantID,
		Message:       h.deps.Catalog.ResetNotice(),
	}); err != nil {
		logging.Warn(ctx, "reset notice failed", slog.Any("err", errs.Loggable(err)))
	}

	logging.Info(ctx, "participant reset", slog.String("name", name))
	return reply(h.deps.Catalog.ResetDone(name))
}

// resolve prefers a live session and falls back to the directory for
// offline participants. A literal participant id is accepted as is.
func (h *Handler) resolve(ctx context.Context, name string) (uuid.UUID, error) {
	if id, err := uuid.Parse(name); err == nil {
		return id, nil
	}
	if h.deps.Presence != nil {
		if id, ok := h.deps.Presence.LookupOnline(name); ok {
			return id, nil
		}
	}
	return h.deps.Directory.LookupByName(ctx, name)
}
