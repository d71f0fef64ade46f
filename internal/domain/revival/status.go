package revival

import (
	"time"
)

// Status is the answer to "is this participant incapacitated right now".
// A zero Status means active.
type Status struct {
	Incapacitated bool
	Remaining     time.Duration
	EligibleAt    time.Time
}

var Active = Status{}

// RemainingSeconds rounds up so a participant is never told 0s while still
// waiting.
func (s Status) RemainingSeconds() int64 {
	if !s.Incapacitated || s.Remaining <= 0 {
		return 0
	}
	secs := int64(s.Remaining / time.Second)
	if s.Remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// Classify derives a Status from the authoritative record. A restored
// record is active regardless of the clock. An unreadable event blob
// returns the parse error alongside Active.
func Classify(record Record, found bool, now time.Time) (Status, error) {
	if !found || record.Restored() {
		return Active, nil
	}
	if record.EventData == "" {
		return Active, nil
	}

	data, err := DecodeEventData(record.EventData)
	if err != nil {
		return Active, err
	}
	if now.Before(data.EligibleAt) {
		return Status{
			Incapacitated: true,
			Remaining:     data.EligibleAt.Sub(now),
			EligibleAt:    data.EligibleAt,
		}, nil
	}
	return Active, nil
}

// Unacknowledged reports an episode whose terminal restore action has not
// happened yet, whether or not its timer has run out.
func Unacknowledged(record Record, found bool) bool {
	if !found {
		return false
	}
	return record.EventData != "" && record.RestoreMethod == nil && !record.Completed
}
