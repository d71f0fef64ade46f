package revival

import "errors"

var (
	// ErrStoreUnavailable marks failures talking to the shared store.
	ErrStoreUnavailable = errors.New("state store unavailable")
	// ErrSchema marks a missing or unrepairable records table.
	ErrSchema = errors.New("state store schema invalid")
	// ErrParse marks malformed serialized event data.
	ErrParse = errors.New("event data malformed")
	// ErrNotFound marks a missing name→id lookup.
	ErrNotFound = errors.New("participant not found")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrParticipantRequired = errors.New("participant id is required")
	ErrMethodRequired      = errors.New("restore method is required")
)
