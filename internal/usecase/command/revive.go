package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/usecase/confirmation"
	"hardcore/internal/usecase/lifecycle"
	"hardcore/internal/usecase/messages"
)

func (h *Handler) revive(ctx context.Context, sender Sender) Reply {
	if !sender.IsParticipant {
		return reply(h.deps.Catalog.ParticipantsOnly())
	}
	ctx = logging.WithParticipant(ctx, sender.ParticipantID.String(), "")

	if status := h.deps.Lifecycle.Classify(ctx, sender.ParticipantID); status.Incapacitated {
		return reply(h.deps.Catalog.StillCoolingDown(status.Remaining))
	}
	// Only a participant with no record in the group has nothing to revive.
	// An admin reset or an earlier revive still lets the side effects rerun.
	snapshot, err := h.deps.Lifecycle.Inspect(ctx, sender.ParticipantID, "")
	if err != nil {
		logging.Warn(ctx, "inspect before revive failed", slog.Any("err", errs.Loggable(err)))
	} else if !snapshot.Found {
		return reply(h.deps.Catalog.NothingToRevive())
	}

	h.restore(ctx, sender, revival.MethodCommand)
	return reply(h.deps.Catalog.Revived())
}

// revivePay needs the command to be repeated inside the confirmation
// window. The second call spends every configured currency in one
// transaction and always clears the token, paid or not.
func (h *Handler) revivePay(ctx context.Context, sender Sender) Reply {
	if !sender.HasPermission(PermissionRevive) {
		return reply(h.deps.Catalog.NoPermission())
	}
	if !sender.IsParticipant {
		return reply(h.deps.Catalog.ParticipantsOnly())
	}
	ctx = logging.WithParticipant(ctx, sender.ParticipantID.String(), "")

	if status := h.deps.Lifecycle.Classify(ctx, sender.ParticipantID); !status.Incapacitated {
		return reply(h.deps.Catalog.NotCoolingDown())
	}

	result := h.deps.Confirmations.Request(sender.ParticipantID)
	if result.State == confirmation.NewlyIssued {
		needs := messages.FormatNeeds(h.currencies, h.deps.Settings.ReviveNeed)
		return reply(h.deps.Catalog.PayPrompt(needs, h.deps.Confirmations.Window())...)
	}
	defer h.deps.Confirmations.Consume(sender.ParticipantID)

	logging.Debug(ctx, "paid revive confirmed", slog.Duration("elapsed", result.Elapsed))
	if err := h.spend(ctx, sender); err != nil {
		if errors.Is(err, revival.ErrInsufficientBalance) {
			logging.Info(ctx, "paid revive refused", slog.Any("err", errs.Loggable(err)))
			return reply(h.deps.Catalog.InsufficientBalance())
		}
		logging.Error(ctx, "paid revive failed", slog.Any("err", errs.Loggable(err)))
		return reply(h.deps.Catalog.StoreError())
	}

	h.restore(ctx, sender, revival.MethodCommandPay)
	return reply(h.deps.Catalog.Revived(), h.deps.Catalog.RevivedBy("payment"))
}

func (h *Handler) spend(ctx context.Context, sender Sender) error {
	return h.deps.UnitOfWork.WithTx(ctx, func(txCtx context.Context) error {
		for _, currency := range h.currencies {
			amount := h.deps.Settings.ReviveNeed[currency]
			if amount <= 0 {
				continue
			}
			if err := h.deps.Wallet.Spend(txCtx, sender.ParticipantID, currency, amount); err != nil {
				return err
			}
		}
		return nil
	})
}

// restore runs the configured side effects and records the transition.
// Neither failure is surfaced to the participant.
func (h *Handler) restore(ctx context.Context, sender Sender, method string) {
	for _, template := range h.deps.Settings.ReviveProcessCommands {
		command := renderCommand(template, sender)
		if err := h.deps.Runner.Run(ctx, command); err != nil {
			logging.Warn(ctx, "revive side effect failed", slog.String("command", command), slog.Any("err", errs.Loggable(err)))
		}
	}

	if err := h.deps.Lifecycle.MarkRestored(ctx, lifecycle.RestoreInput{
		ParticipantID: sender.ParticipantID,
		Method:        method,
		MarkCompleted: true,
	}); err != nil {
		logging.Error(ctx, "record restore failed", slog.String("method", method), slog.Any("err", errs.Loggable(err)))
	}
}

// renderCommand fills the {player} and {uuid} placeholders.
func renderCommand(template string, sender Sender) string {
	return strings.NewReplacer("{player}", sender.Name, "{uuid}", sender.ParticipantID.String()).Replace(template)
}
