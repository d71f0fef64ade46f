package revival

import (
	"errors"
	"testing"
	"time"
)

func TestEventDataRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 15, 987654321, time.UTC)
	data := NewEventData(now, time.Hour, "fell from a high place", &Location{World: "world_nether", X: 12.5, Y: 64, Z: -3.25})

	raw, err := EncodeEventData(data)
	if err != nil {
		t.Fatalf("EncodeEventData() error = %v", err)
	}
	got, err := DecodeEventData(raw)
	if err != nil {
		t.Fatalf("DecodeEventData() error = %v", err)
	}

	if !got.BeganAt.Equal(data.BeganAt) || !got.EligibleAt.Equal(data.EligibleAt) || got.Cause != data.Cause {
		t.Fatalf("round trip = %+v, want %+v", got, data)
	}
	if got.BeganAt.Nanosecond() != 0 {
		t.Fatalf("BeganAt not truncated: %s", got.BeganAt)
	}
	if got.EligibleAt.Sub(got.BeganAt) != time.Hour {
		t.Fatalf("cooldown = %s", got.EligibleAt.Sub(got.BeganAt))
	}
	if got.Location == nil || *got.Location != *data.Location {
		t.Fatalf("location = %+v", got.Location)
	}
}

func TestDecodeEventDataLegacyKeys(t *testing.T) {
	raw := `{"deathAt":1700000000,"reviveAt":1700003600,"deathCaused":"Steve was slain by Zombie","deathX":1.5,"deathY":70,"deathZ":-8,"deathWorld":"world"}`

	got, err := DecodeEventData(raw)
	if err != nil {
		t.Fatalf("DecodeEventData() error = %v", err)
	}
	if got.BeganAt.Unix() != 1700000000 || got.EligibleAt.Unix() != 1700003600 {
		t.Fatalf("timestamps = %s / %s", got.BeganAt, got.EligibleAt)
	}
	if got.Cause != "Steve was slain by Zombie" {
		t.Fatalf("cause = %q", got.Cause)
	}
	if got.Location == nil || got.Location.World != "world" || got.Location.X != 1.5 || got.Location.Z != -8 {
		t.Fatalf("location = %+v", got.Location)
	}
}

func TestDecodeEventDataRejectsMalformed(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: "  "},
		{name: "not json", raw: `{"deathAt": "2024-01-01T00:00`},
		{name: "missing eligible", raw: `{"beganAt":10,"cause":"x"}`},
		{name: "eligible before began", raw: `{"beganAt":10,"eligibleAt":5}`},
		{name: "string timestamp", raw: `{"beganAt":"2024-01-01T00:00:00","eligibleAt":"2024-01-01T01:00:00"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEventData(tc.raw)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("DecodeEventData() error = %v, want ErrParse", err)
			}
		})
	}
}

func TestNewEventDataClampsNegativeCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	data := NewEventData(now, -time.Minute, "void", nil)
	if !data.EligibleAt.Equal(data.BeganAt) {
		t.Fatalf("EligibleAt = %s, BeganAt = %s", data.EligibleAt, data.BeganAt)
	}
}
