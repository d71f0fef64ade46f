package ports

import (
	"context"

	"github.com/google/uuid"

	"hardcore/internal/domain/revival"
)

// StateStore is the shared, append-only record table. Implementations take
// no locks; readers always resolve the latest row by updated_at.
type StateStore interface {
	// SelectLatest returns found=false when the participant has no row in the group.
	SelectLatest(ctx context.Context, participantID uuid.UUID, groupKey string) (revival.Record, bool, error)
	Insert(ctx context.Context, record revival.Record) error
	// UpdateLatestRestoreMethod touches only the latest row and reports rows affected.
	UpdateLatestRestoreMethod(ctx context.Context, participantID uuid.UUID, groupKey string, method string, completed bool) (int64, error)
	ListHistory(ctx context.Context, participantID uuid.UUID, groupKey string, limit int) ([]revival.Record, error)
	DeleteAll(ctx context.Context, participantID uuid.UUID, groupKey string) (int64, error)
}
