package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
)

// DisabledStateStore stands in when the records table could not be verified
// at startup. Reads find nothing and writes are logged and dropped, so every
// participant classifies as active instead of the host failing.
type DisabledStateStore struct {
	reason error
}

func NewDisabledStateStore(reason error) *DisabledStateStore {
	return &DisabledStateStore{reason: reason}
}

func (s *DisabledStateStore) Reason() error {
	return s.reason
}

func (s *DisabledStateStore) SelectLatest(context.Context, uuid.UUID, string) (revival.Record, bool, error) {
	return revival.Record{}, false, nil
}

func (s *DisabledStateStore) Insert(ctx context.Context, record revival.Record) error {
	s.dropped(ctx, "insert", record.ParticipantID, record.GroupKey)
	return nil
}

func (s *DisabledStateStore) UpdateLatestRestoreMethod(ctx context.Context, participantID uuid.UUID, groupKey string, _ string, _ bool) (int64, error) {
	s.dropped(ctx, "update_latest", participantID, groupKey)
	return 0, nil
}

func (s *DisabledStateStore) ListHistory(context.Context, uuid.UUID, string, int) ([]revival.Record, error) {
	return nil, nil
}

func (s *DisabledStateStore) DeleteAll(ctx context.Context, participantID uuid.UUID, groupKey string) (int64, error) {
	s.dropped(ctx, "delete_all", participantID, groupKey)
	return 0, nil
}

func (s *DisabledStateStore) dropped(ctx context.Context, op string, participantID uuid.UUID, groupKey string) {
	logCtx := logging.WithParticipant(
		logging.WithAttrs(ctx, slog.String("component", "persistence.disabled")),
		participantID.String(),
		groupKey,
	)
	logging.Warn(logCtx, "persistence disabled, write dropped", slog.String("op", op), slog.Any("err", errs.Loggable(s.reason)))
}
