package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/ports"
	"hardcore/internal/usecase/lifecycle"
)

type JoinResult struct {
	Status         revival.Status
	Unacknowledged bool
}

// Join runs when a participant's session starts on this host.
func (h *Handler) Join(ctx context.Context, participantID uuid.UUID, name string) JoinResult {
	ctx = logging.WithParticipant(h.logCtx(ctx, Sender{Name: name}), participantID.String(), "")

	if name != "" {
		if err := h.deps.Directory.Remember(ctx, participantID, name); err != nil {
			logging.Warn(ctx, "remember participant name failed", slog.Any("err", errs.Loggable(err)))
		}
	}

	status := h.deps.Lifecycle.Classify(ctx, participantID)
	if status.Incapacitated {
		h.notify(ctx, ports.Notification{
			Kind:             ports.NotifyTimeRemaining,
			ParticipantID:    participantID,
			Message:          h.deps.Catalog.StillCoolingDown(status.Remaining),
			RemainingSeconds: status.RemainingSeconds(),
		})
		h.deps.Reminders.OnJoin(ctx, participantID, "", status.Remaining)
		return JoinResult{Status: status, Unacknowledged: true}
	}

	if h.deps.Lifecycle.HasUnacknowledgedRestoration(ctx, participantID) {
		h.notify(ctx, ports.Notification{
			Kind:          ports.NotifyRevivalAvailable,
			ParticipantID: participantID,
			Message:       strings.Join(h.deps.Catalog.RevivalAvailable(), "\n"),
		})
		return JoinResult{Status: status, Unacknowledged: true}
	}
	return JoinResult{Status: status}
}

type DeathInput struct {
	ParticipantID uuid.UUID
	GroupKey      string
	Cause         string
	Location      *revival.Location
}

type DeathResult struct {
	Duplicate bool
	Status    revival.Status
	// KeepInventory is passed through for the host, which owns inventory.
	KeepInventory bool
}

// Death records an incapacitation. A dropped write is logged and the
// participant is still told about the cooldown.
func (h *Handler) Death(ctx context.Context, in DeathInput) (DeathResult, error) {
	ctx = logging.WithParticipant(h.logCtx(ctx, Sender{}), in.ParticipantID.String(), in.GroupKey)

	result, err := h.deps.Lifecycle.BeginIncapacitation(ctx, lifecycle.BeginInput{
		ParticipantID: in.ParticipantID,
		GroupKey:      in.GroupKey,
		Cause:         in.Cause,
		Location:      in.Location,
	})
	switch {
	case errors.Is(err, lifecycle.ErrWriteDropped):
		logging.Error(ctx, "incapacitation not persisted", slog.Any("err", errs.Loggable(err)))
	case err != nil:
		return DeathResult{}, err
	}

	out := DeathResult{
		Duplicate:     result.Duplicate,
		Status:        result.Status,
		KeepInventory: h.deps.Settings.KeepInventory,
	}
	if result.Duplicate {
		h.notify(ctx, ports.Notification{
			Kind:          ports.NotifyAlreadyDown,
			ParticipantID: in.ParticipantID,
			GroupKey:      in.GroupKey,
			Message:       h.deps.Catalog.AlreadyIncapacitated(),
		})
		return out, nil
	}

	h.notify(ctx, ports.Notification{
		Kind:             ports.NotifyIncapacitated,
		ParticipantID:    in.ParticipantID,
		GroupKey:         in.GroupKey,
		Message:          h.deps.Catalog.Incapacitated(h.deps.Lifecycle.Cooldown()),
		RemainingSeconds: result.Status.RemainingSeconds(),
	})
	if result.Status.Incapacitated && h.deps.Presence != nil && h.deps.Presence.IsOnline(in.ParticipantID) {
		h.deps.Reminders.OnJoin(ctx, in.ParticipantID, in.GroupKey, result.Status.Remaining)
	}
	return out, nil
}

func (h *Handler) notify(ctx context.Context, n ports.Notification) {
	if err := h.deps.Notifier.Notify(ctx, n); err != nil {
		logging.Warn(ctx, "notification failed", slog.String("kind", string(n.Kind)), slog.Any("err", errs.Loggable(err)))
	}
}
