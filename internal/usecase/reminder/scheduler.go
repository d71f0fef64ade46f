package reminder

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/infrastructure/timer"
	"hardcore/internal/ports"
	"hardcore/internal/usecase/messages"
)

const (
	DefaultInterval  = 5 * time.Minute
	DefaultThreshold = 5 * time.Minute
)

// StatusSource is the read side of the lifecycle service.
type StatusSource interface {
	ClassifyGroup(ctx context.Context, participantID uuid.UUID, groupKey string) revival.Status
	DefaultGroup() string
}

type Options struct {
	Interval  time.Duration
	Threshold time.Duration
	Catalog   messages.Catalog
	Registry  prometheus.Registerer
}

// Scheduler tells participants when their cooldown is over and, for long
// cooldowns, how much of it is left. Every callback re-reads state; nothing
// captured at join time is trusted when a task fires.
type Scheduler struct {
	timer    *timer.Facility
	status   StatusSource
	presence ports.Presence
	notifier ports.Notifier
	opts     Options

	mu    sync.Mutex
	gen   uint64
	armed map[armKey]*armed

	sent *prometheus.CounterVec
}

type armKey struct {
	participantID uuid.UUID
	group         string
}

// armed holds the checks of one participant and group. gen tells a stale
// callback from the current one after a re-arm.
type armed struct {
	gen  uint64
	once *timer.Handle
	loop *timer.Handle
}

func NewScheduler(ctx context.Context, status StatusSource, presence ports.Presence, notifier ports.Notifier, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Threshold < 0 {
		opts.Threshold = DefaultThreshold
	}

	s := &Scheduler{
		timer:    timer.New(logging.WithAttrs(ctx, slog.String("component", "usecase.reminder"))),
		status:   status,
		presence: presence,
		notifier: notifier,
		opts:     opts,
		armed:    make(map[armKey]*armed),
	}
	if opts.Registry != nil {
		factory := promauto.With(opts.Registry)
		s.sent = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hardcore_reminders_sent_total",
			Help: "Scheduler notifications by kind.",
		}, []string{"kind"})
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "hardcore_reminders_pending",
			Help: "Scheduled availability checks and reminder loops.",
		}, func() float64 { return float64(s.timer.Pending()) })
	}
	return s
}

// OnJoin arms the checks for a participant who joined or went down while
// incapacitated. Arming again for the same group replaces the earlier checks.
func (s *Scheduler) OnJoin(ctx context.Context, participantID uuid.UUID, groupKey string, remaining time.Duration) {
	key := armKey{participantID: participantID, group: s.group(groupKey)}
	logCtx := logging.WithParticipant(ctx, participantID.String(), key.group)
	periodic := remaining > s.opts.Threshold

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	if prev, ok := s.armed[key]; ok {
		prev.once.Cancel()
		prev.loop.Cancel()
		replaced = true
	}
	s.gen++
	entry := &armed{gen: s.gen}
	s.armed[key] = entry

	gen := entry.gen
	entry.once = s.timer.After(remaining, func(taskCtx context.Context) {
		s.checkAvailable(taskCtx, key)
		s.release(key, gen, false)
	})
	if periodic {
		entry.loop = s.timer.Every(s.opts.Interval, s.opts.Interval, func(taskCtx context.Context) bool {
			if s.remind(taskCtx, key) {
				return true
			}
			s.release(key, gen, true)
			return false
		})
	}

	logging.Debug(logCtx, "reminders scheduled", slog.Duration("remaining", remaining), slog.Bool("periodic", periodic), slog.Bool("replaced", replaced))
}

func (s *Scheduler) group(groupKey string) string {
	if g := strings.TrimSpace(groupKey); g != "" {
		return g
	}
	return s.status.DefaultGroup()
}

// release forgets a finished check unless a newer OnJoin replaced it.
func (s *Scheduler) release(key armKey, gen uint64, loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.armed[key]
	if !ok || entry.gen != gen {
		return
	}
	if loop {
		entry.loop = nil
	} else {
		entry.once = nil
	}
	if entry.once == nil && entry.loop == nil {
		delete(s.armed, key)
	}
}

// checkAvailable is a one-shot; a participant still incapacitated (clock
// drift or a fresh episode) gets nothing and no reschedule.
func (s *Scheduler) checkAvailable(ctx context.Context, key armKey) {
	ctx = logging.WithParticipant(ctx, key.participantID.String(), key.group)
	if status := s.status.ClassifyGroup(ctx, key.participantID, key.group); status.Incapacitated {
		logging.Debug(ctx, "availability check fired early", slog.Int64("remaining_seconds", status.RemainingSeconds()))
		return
	}
	if !s.presence.IsOnline(key.participantID) {
		return
	}
	s.notify(ctx, ports.Notification{
		Kind:          ports.NotifyRevivalAvailable,
		ParticipantID: key.participantID,
		GroupKey:      key.group,
		Message:       strings.Join(s.opts.Catalog.RevivalAvailable(), "\n"),
	})
}

// remind reports whether the loop should keep running.
func (s *Scheduler) remind(ctx context.Context, key armKey) bool {
	ctx = logging.WithParticipant(ctx, key.participantID.String(), key.group)
	if !s.presence.IsOnline(key.participantID) {
		logging.Debug(ctx, "reminder loop stopped, participant offline")
		return false
	}
	status := s.status.ClassifyGroup(ctx, key.participantID, key.group)
	if !status.Incapacitated {
		logging.Debug(ctx, "reminder loop stopped, participant no longer incapacitated")
		return false
	}
	s.notify(ctx, ports.Notification{
		Kind:             ports.NotifyTimeRemaining,
		ParticipantID:    key.participantID,
		GroupKey:         key.group,
		Message:          s.opts.Catalog.TimeRemaining(status.Remaining),
		RemainingSeconds: status.RemainingSeconds(),
	})
	return true
}

func (s *Scheduler) notify(ctx context.Context, n ports.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		logging.Warn(ctx, "reminder delivery failed", slog.String("kind", string(n.Kind)), slog.Any("err", errs.Loggable(err)))
		return
	}
	if s.sent != nil {
		s.sent.WithLabelValues(string(n.Kind)).Inc()
	}
}

func (s *Scheduler) Pending() int {
	return s.timer.Pending()
}

// Close cancels every pending check. It is a shutdown action; a session
// leaving does not cancel its loop, which stops at its next tick instead.
func (s *Scheduler) Close() {
	s.timer.Close()

	s.mu.Lock()
	s.armed = make(map[armKey]*armed)
	s.mu.Unlock()
}
