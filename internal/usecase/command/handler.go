package command

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/ports"
	"hardcore/internal/usecase/confirmation"
	"hardcore/internal/usecase/lifecycle"
	"hardcore/internal/usecase/messages"
)

const (
	PermissionRevive = "hardcore.revive"
	PermissionAdmin  = "hardcore.admin"
)

// Lifecycle is the part of lifecycle.Service the command surface drives.
type Lifecycle interface {
	Classify(ctx context.Context, participantID uuid.UUID) revival.Status
	HasUnacknowledgedRestoration(ctx context.Context, participantID uuid.UUID) bool
	Inspect(ctx context.Context, participantID uuid.UUID, groupKey string) (lifecycle.Snapshot, error)
	BeginIncapacitation(ctx context.Context, in lifecycle.BeginInput) (lifecycle.BeginResult, error)
	MarkRestored(ctx context.Context, in lifecycle.RestoreInput) error
	Cooldown() time.Duration
}

type Confirmations interface {
	Request(participantID uuid.UUID) confirmation.Result
	Consume(participantID uuid.UUID)
	Window() time.Duration
}

type Reminders interface {
	OnJoin(ctx context.Context, participantID uuid.UUID, groupKey string, remaining time.Duration)
}

// Sender is whoever issued a command. Console senders are not
// participants and hold every permission.
type Sender struct {
	ParticipantID uuid.UUID
	Name          string
	IsParticipant bool
	Permissions   []string
}

func Console() Sender {
	return Sender{Name: "console", Permissions: []string{PermissionRevive, PermissionAdmin}}
}

func (s Sender) HasPermission(permission string) bool {
	for _, p := range s.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

type Reply struct {
	Lines []string
}

func reply(lines ...string) Reply {
	return Reply{Lines: lines}
}

func (r Reply) String() string {
	return strings.Join(r.Lines, "\n")
}

type Settings struct {
	ReviveNeed            map[string]int64
	ReviveProcessCommands []string
	KeepInventory         bool
}

type Deps struct {
	Lifecycle     Lifecycle
	Confirmations Confirmations
	Reminders     Reminders
	Presence      ports.Presence
	Directory     ports.Directory
	Wallet        ports.Wallet
	UnitOfWork    ports.UnitOfWork
	Notifier      ports.Notifier
	Runner        ports.ProcessRunner
	Catalog       messages.Catalog
	Settings      Settings
}

// Handler is the participant and operator command surface plus the join
// and death hooks of a session host.
type Handler struct {
	deps       Deps
	currencies []string
}

func NewHandler(deps Deps) *Handler {
	currencies := make([]string, 0, len(deps.Settings.ReviveNeed))
	for currency := range deps.Settings.ReviveNeed {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	return &Handler{deps: deps, currencies: currencies}
}

func (h *Handler) logCtx(ctx context.Context, sender Sender) context.Context {
	return logging.WithAttrs(
		ctx,
		slog.String("component", "usecase.command"),
		slog.String("sender", sender.Name),
	)
}

// Execute dispatches one command line already split into words. Unknown or
// empty input shows the help text.
func (h *Handler) Execute(ctx context.Context, sender Sender, args []string) Reply {
	ctx = h.logCtx(ctx, sender)
	if len(args) == 0 {
		return h.help(sender)
	}

	switch strings.ToLower(args[0]) {
	case "revive":
		if len(args) > 1 && strings.EqualFold(args[1], "pay") {
			return h.revivePay(ctx, sender)
		}
		return h.revive(ctx, sender)
	case "reset":
		return h.reset(ctx, sender, args[1:])
	default:
		return h.help(sender)
	}
}

func (h *Handler) help(sender Sender) Reply {
	return reply(h.deps.Catalog.Help(sender.HasPermission(PermissionAdmin))...)
}

// Complete lists the next-word candidates for a partially typed command.
func (h *Handler) Complete(sender Sender, args []string) []string {
	var candidates []string
	switch len(args) {
	case 0, 1:
		candidates = []string{"help", "revive"}
		if sender.HasPermission(PermissionAdmin) {
			candidates = append(candidates, "reset")
		}
	case 2:
		if strings.EqualFold(args[0], "revive") {
			candidates = []string{"pay"}
		}
	}

	prefix := ""
	if len(args) > 0 {
		prefix = strings.ToLower(args[len(args)-1])
	}
	out := candidates[:0]
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
