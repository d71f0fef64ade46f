package ports

import (
	"context"

	"github.com/google/uuid"
)

// Directory maps display names to participant ids for offline lookups.
type Directory interface {
	Remember(ctx context.Context, participantID uuid.UUID, name string) error
	LookupByName(ctx context.Context, name string) (uuid.UUID, error)
}

// Wallet is the "spend N units" capability used by paid revival.
type Wallet interface {
	Balance(ctx context.Context, participantID uuid.UUID, currency string) (int64, error)
	Spend(ctx context.Context, participantID uuid.UUID, currency string, amount int64) error
	Grant(ctx context.Context, participantID uuid.UUID, currency string, amount int64) (int64, error)
}

// ProcessRunner executes one rendered revive side-effect command.
type ProcessRunner interface {
	Run(ctx context.Context, command string) error
}
