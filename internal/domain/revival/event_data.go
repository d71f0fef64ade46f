package revival

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hardcore/internal/errs"
)

// EventData is the structured blob stored with every episode. Timestamps
// are kept at second precision so a round trip through the store is exact.
type EventData struct {
	BeganAt    time.Time
	EligibleAt time.Time
	Cause      string
	Location   *Location
}

// Location is the optional snapshot of where the participant went down.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// NewEventData resolves the cooldown at event time; it is never recomputed.
func NewEventData(now time.Time, cooldown time.Duration, cause string, location *Location) EventData {
	if cooldown < 0 {
		cooldown = 0
	}
	began := now.UTC().Truncate(time.Second)
	return EventData{
		BeganAt:    began,
		EligibleAt: began.Add(cooldown.Truncate(time.Second)),
		Cause:      cause,
		Location:   location,
	}
}

type eventDataWire struct {
	BeganAt    *int64    `json:"beganAt,omitempty"`
	EligibleAt *int64    `json:"eligibleAt,omitempty"`
	Cause      string    `json:"cause"`
	Location   *Location `json:"location,omitempty"`

	// Rows written by older hosts used these keys.
	LegacyDeathAt  *int64   `json:"deathAt,omitempty"`
	LegacyReviveAt *int64   `json:"reviveAt,omitempty"`
	LegacyCause    string   `json:"deathCaused,omitempty"`
	LegacyWorld    string   `json:"deathWorld,omitempty"`
	LegacyX        *float64 `json:"deathX,omitempty"`
	LegacyY        *float64 `json:"deathY,omitempty"`
	LegacyZ        *float64 `json:"deathZ,omitempty"`
}

func EncodeEventData(data EventData) (string, error) {
	if data.EligibleAt.Before(data.BeganAt) {
		return "", errs.Mark(fmt.Errorf("eligibleAt %s before beganAt %s", data.EligibleAt, data.BeganAt), ErrParse)
	}

	began := data.BeganAt.Unix()
	eligible := data.EligibleAt.Unix()
	raw, err := json.Marshal(eventDataWire{
		BeganAt:    &began,
		EligibleAt: &eligible,
		Cause:      data.Cause,
		Location:   data.Location,
	})
	if err != nil {
		return "", errs.Mark(errs.Wrap(err, "encode event data"), ErrParse)
	}
	return string(raw), nil
}

func DecodeEventData(raw string) (EventData, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EventData{}, errs.Mark(fmt.Errorf("event data is empty"), ErrParse)
	}

	var wire eventDataWire
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return EventData{}, errs.Mark(errs.Wrap(err, "decode event data"), ErrParse)
	}

	began := firstInt(wire.BeganAt, wire.LegacyDeathAt)
	eligible := firstInt(wire.EligibleAt, wire.LegacyReviveAt)
	if eligible == nil {
		return EventData{}, errs.Mark(fmt.Errorf("event data has no eligibleAt"), ErrParse)
	}
	if began == nil {
		began = eligible
	}
	if *eligible < *began {
		return EventData{}, errs.Mark(fmt.Errorf("eligibleAt %d before beganAt %d", *eligible, *began), ErrParse)
	}

	data := EventData{
		BeganAt:    time.Unix(*began, 0).UTC(),
		EligibleAt: time.Unix(*eligible, 0).UTC(),
		Cause:      wire.Cause,
		Location:   wire.Location,
	}
	if data.Cause == "" {
		data.Cause = wire.LegacyCause
	}
	if data.Location == nil && wire.LegacyWorld != "" {
		data.Location = &Location{
			World: wire.LegacyWorld,
			X:     deref(wire.LegacyX),
			Y:     deref(wire.LegacyY),
			Z:     deref(wire.LegacyZ),
		}
	}
	return data, nil
}

func firstInt(values ...*int64) *int64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
