package command

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"hardcore/internal/domain/revival"
	"hardcore/internal/usecase/messages"
)

// Placeholder keys served to external templating.
const (
	PlaceholderTimeRemain          = "time_remain"
	PlaceholderTimeRemainFormatted = "time_remain_formatted"
	PlaceholderIsCoolingDown       = "is_coolingdown"
	PlaceholderReviveNeeds         = "revive_needs"
	PlaceholderCooldownFormatted   = "cooldown_formatted"
)

func PlaceholderKeys() []string {
	return []string{
		PlaceholderTimeRemain,
		PlaceholderTimeRemainFormatted,
		PlaceholderIsCoolingDown,
		PlaceholderReviveNeeds,
		PlaceholderCooldownFormatted,
	}
}

// Placeholder resolves one read-only value. Unknown keys report false.
func (h *Handler) Placeholder(ctx context.Context, participantID uuid.UUID, key string) (string, bool) {
	switch key {
	case PlaceholderReviveNeeds:
		return h.placeholderValue(key, revival.Active)
	case PlaceholderTimeRemain, PlaceholderTimeRemainFormatted, PlaceholderIsCoolingDown, PlaceholderCooldownFormatted:
		return h.placeholderValue(key, h.deps.Lifecycle.Classify(ctx, participantID))
	default:
		return "", false
	}
}

// Placeholders resolves every key from a single read.
func (h *Handler) Placeholders(ctx context.Context, participantID uuid.UUID) map[string]string {
	status := h.deps.Lifecycle.Classify(ctx, participantID)
	out := make(map[string]string, len(PlaceholderKeys()))
	for _, key := range PlaceholderKeys() {
		if value, ok := h.placeholderValue(key, status); ok {
			out[key] = value
		}
	}
	return out
}

func (h *Handler) placeholderValue(key string, status revival.Status) (string, bool) {
	remaining := status.RemainingSeconds()
	switch key {
	case PlaceholderTimeRemain:
		return strconv.FormatInt(remaining, 10), true
	case PlaceholderTimeRemainFormatted:
		return messages.FormatUnits(remaining), true
	case PlaceholderIsCoolingDown:
		return strconv.FormatBool(status.Incapacitated), true
	case PlaceholderReviveNeeds:
		return messages.FormatNeeds(h.currencies, h.deps.Settings.ReviveNeed), true
	case PlaceholderCooldownFormatted:
		return messages.FormatClock(remaining), true
	default:
		return "", false
	}
}
