package ports

import (
	"context"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifyIncapacitated    NotificationKind = "incapacitated"
	NotifyAlreadyDown      NotificationKind = "already_incapacitated"
	NotifyTimeRemaining    NotificationKind = "time_remaining"
	NotifyRevivalAvailable NotificationKind = "revival_available"
	NotifyRevived          NotificationKind = "revived"
	NotifyReset            NotificationKind = "reset"
	NotifyCommandReply     NotificationKind = "command_reply"
)

type Notification struct {
	Kind             NotificationKind `json:"kind"`
	ParticipantID    uuid.UUID        `json:"participantId"`
	GroupKey         string           `json:"groupKey,omitempty"`
	Message          string           `json:"message"`
	RemainingSeconds int64            `json:"remainingSeconds,omitempty"`
}

// Notifier delivers a message to one participant. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Presence answers whether a participant currently has a live session on
// this host.
type Presence interface {
	IsOnline(participantID uuid.UUID) bool
	LookupOnline(name string) (uuid.UUID, bool)
}
