package revival

import (
	"time"

	"github.com/google/uuid"
)

const (
	MethodCommand    = "command.revive"
	MethodCommandPay = "command.revive.pay"
	MethodAdminReset = "admin.reset"
)

// Record is one row of the append-only incapacitation history. For a given
// (ParticipantID, GroupKey) only the row with the greatest UpdatedAt is
// authoritative.
type Record struct {
	ID            uint64
	ParticipantID uuid.UUID
	GroupKey      string
	EventData     string
	RestoreMethod *string
	Completed     bool
	UpdatedAt     time.Time
	CreatedAt     time.Time
}

func (r Record) Restored() bool {
	return r.RestoreMethod != nil && *r.RestoreMethod != ""
}

func (r Record) Method() string {
	if r.RestoreMethod == nil {
		return ""
	}
	return *r.RestoreMethod
}

// NewEpisode builds the open record written when an incapacitation begins.
func NewEpisode(participantID uuid.UUID, groupKey string, data EventData) (Record, error) {
	encoded, err := EncodeEventData(data)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ParticipantID: participantID,
		GroupKey:      groupKey,
		EventData:     encoded,
	}, nil
}

// NewCompletedMarker is inserted when a restore targets a participant with no
// row in the group, so the restored state is still representable.
func NewCompletedMarker(participantID uuid.UUID, groupKey string, method string) Record {
	m := method
	return Record{
		ParticipantID: participantID,
		GroupKey:      groupKey,
		RestoreMethod: &m,
		Completed:     true,
	}
}
