package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/ports"
)

// ErrWriteDropped is returned when the write queue refused a task. The
// transition is lost; callers log it and carry on.
var ErrWriteDropped = errors.New("write dropped by queue")

type Options struct {
	// DefaultGroup is used whenever a call leaves the group key empty.
	DefaultGroup string
	Cooldown     time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service owns the incapacitation lifecycle. Reads go straight to the
// store; writes are handed to the queue and never block the caller.
type Service struct {
	store ports.StateStore
	queue ports.WriteQueue
	opts  Options
	now   func() time.Time
}

type BeginInput struct {
	ParticipantID uuid.UUID
	GroupKey      string
	Cause         string
	Location      *revival.Location
}

type BeginResult struct {
	// Duplicate is set when the participant was already incapacitated and
	// nothing was written.
	Duplicate bool
	Status    revival.Status
}

type RestoreInput struct {
	ParticipantID uuid.UUID
	GroupKey      string
	Method        string
	MarkCompleted bool
}

// Snapshot is the unfiltered view used by operator tooling. Unlike
// Classify it reports read errors instead of mapping them to Active.
type Snapshot struct {
	Record         revival.Record
	Found          bool
	Status         revival.Status
	Unacknowledged bool
}

func NewService(store ports.StateStore, queue ports.WriteQueue, opts Options) *Service {
	if opts.Cooldown < 0 {
		opts.Cooldown = 0
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, queue: queue, opts: opts, now: now}
}

func (s *Service) DefaultGroup() string {
	return s.opts.DefaultGroup
}

func (s *Service) Cooldown() time.Duration {
	return s.opts.Cooldown
}

func (s *Service) group(groupKey string) string {
	if g := strings.TrimSpace(groupKey); g != "" {
		return g
	}
	return s.opts.DefaultGroup
}

// writeKey routes every write of one participant and group to the same
// queue shard.
func writeKey(participantID uuid.UUID, group string) string {
	return participantID.String() + "/" + group
}

func (s *Service) logCtx(ctx context.Context, participantID uuid.UUID, groupKey string) context.Context {
	return logging.WithParticipant(
		logging.WithAttrs(ctx, slog.String("component", "usecase.lifecycle")),
		participantID.String(),
		groupKey,
	)
}

// Classify reports whether the participant is inside a cooldown in the
// default group. Store and parse errors are logged and read as Active.
func (s *Service) Classify(ctx context.Context, participantID uuid.UUID) revival.Status {
	return s.ClassifyGroup(ctx, participantID, "")
}

func (s *Service) ClassifyGroup(ctx context.Context, participantID uuid.UUID, groupKey string) revival.Status {
	group := s.group(groupKey)
	logCtx := s.logCtx(ctx, participantID, group)

	record, found, err := s.store.SelectLatest(logCtx, participantID, group)
	if err != nil {
		logging.Warn(logCtx, "read latest record failed, treating as active", slog.Any("err", errs.Loggable(err)))
		return revival.Active
	}

	status, err := revival.Classify(record, found, s.now())
	if err != nil {
		logging.Warn(logCtx, "event data unreadable, treating as active", slog.Uint64("record_id", record.ID), slog.Any("err", errs.Loggable(err)))
		return revival.Active
	}
	return status
}

// HasUnacknowledgedRestoration stays true after the cooldown elapses until
// an explicit restore is recorded.
func (s *Service) HasUnacknowledgedRestoration(ctx context.Context, participantID uuid.UUID) bool {
	return s.HasUnacknowledgedRestorationIn(ctx, participantID, "")
}

func (s *Service) HasUnacknowledgedRestorationIn(ctx context.Context, participantID uuid.UUID, groupKey string) bool {
	group := s.group(groupKey)
	logCtx := s.logCtx(ctx, participantID, group)

	record, found, err := s.store.SelectLatest(logCtx, participantID, group)
	if err != nil {
		logging.Warn(logCtx, "read latest record failed, treating as acknowledged", slog.Any("err", errs.Loggable(err)))
		return false
	}
	return revival.Unacknowledged(record, found)
}

func (s *Service) Inspect(ctx context.Context, participantID uuid.UUID, groupKey string) (Snapshot, error) {
	group := s.group(groupKey)
	record, found, err := s.store.SelectLatest(s.logCtx(ctx, participantID, group), participantID, group)
	if err != nil {
		return Snapshot{}, err
	}

	status, err := revival.Classify(record, found, s.now())
	snapshot := Snapshot{
		Record:         record,
		Found:          found,
		Status:         status,
		Unacknowledged: revival.Unacknowledged(record, found),
	}
	return snapshot, err
}

func (s *Service) BeginIncapacitation(ctx context.Context, in BeginInput) (BeginResult, error) {
	if in.ParticipantID == uuid.Nil {
		return BeginResult{}, revival.ErrParticipantRequired
	}
	group := s.group(in.GroupKey)
	logCtx := s.logCtx(ctx, in.ParticipantID, group)

	if current := s.ClassifyGroup(ctx, in.ParticipantID, group); current.Incapacitated {
		logging.Info(logCtx, "duplicate incapacitation ignored", slog.Int64("remaining_seconds", current.RemainingSeconds()))
		return BeginResult{Duplicate: true, Status: current}, nil
	}

	data := revival.NewEventData(s.now(), s.opts.Cooldown, in.Cause, in.Location)
	record, err := revival.NewEpisode(in.ParticipantID, group, data)
	if err != nil {
		return BeginResult{}, err
	}

	status := revival.Status{
		Incapacitated: data.EligibleAt.After(data.BeganAt),
		Remaining:     data.EligibleAt.Sub(data.BeganAt),
		EligibleAt:    data.EligibleAt,
	}
	if !status.Incapacitated {
		status = revival.Active
	}

	if !s.queue.Submit(writeKey(in.ParticipantID, group), "lifecycle.begin", func(taskCtx context.Context) error {
		return s.store.Insert(s.logCtx(taskCtx, in.ParticipantID, group), record)
	}) {
		return BeginResult{Status: status}, ErrWriteDropped
	}

	logging.Info(
		logCtx,
		"incapacitation recorded",
		slog.String("cause", in.Cause),
		slog.Time("eligible_at", data.EligibleAt),
	)
	return BeginResult{Status: status}, nil
}

// MarkRestored records the restore on the latest row. When the participant
// has no row in the group, an already-completed marker is appended so the
// restored state is still representable.
func (s *Service) MarkRestored(ctx context.Context, in RestoreInput) error {
	if in.ParticipantID == uuid.Nil {
		return revival.ErrParticipantRequired
	}
	if strings.TrimSpace(in.Method) == "" {
		return revival.ErrMethodRequired
	}
	group := s.group(in.GroupKey)
	logCtx := s.logCtx(ctx, in.ParticipantID, group)

	if !s.queue.Submit(writeKey(in.ParticipantID, group), "lifecycle.restore", func(taskCtx context.Context) error {
		taskCtx = s.logCtx(taskCtx, in.ParticipantID, group)
		affected, err := s.store.UpdateLatestRestoreMethod(taskCtx, in.ParticipantID, group, in.Method, in.MarkCompleted)
		if err != nil {
			return err
		}
		if affected > 0 {
			return nil
		}
		logging.Info(taskCtx, "no record to restore, inserting completed marker", slog.String("method", in.Method))
		return s.store.Insert(taskCtx, revival.NewCompletedMarker(in.ParticipantID, group, in.Method))
	}) {
		return ErrWriteDropped
	}

	logging.Info(logCtx, "restore recorded", slog.String("method", in.Method), slog.Bool("mark_completed", in.MarkCompleted))
	return nil
}

// History lists the key's rows newest first.
func (s *Service) History(ctx context.Context, participantID uuid.UUID, groupKey string, limit int) ([]revival.Record, error) {
	group := s.group(groupKey)
	return s.store.ListHistory(s.logCtx(ctx, participantID, group), participantID, group, limit)
}

// Purge deletes the key's history synchronously. It is an operator action
// outside the lifecycle; no transition calls it.
func (s *Service) Purge(ctx context.Context, participantID uuid.UUID, groupKey string) (int64, error) {
	group := s.group(groupKey)
	logCtx := s.logCtx(ctx, participantID, group)

	deleted, err := s.store.DeleteAll(logCtx, participantID, group)
	if err != nil {
		return 0, err
	}
	logging.Warn(logCtx, "participant history purged", slog.Int64("deleted", deleted))
	return deleted, nil
}
