package instances

import "errors"

var (
	// ErrNotFound is returned when an instance is not found
	ErrNotFound = errors.New("instance not found")

	// ErrInvalidState is returned when a state transition is not valid
	ErrInvalidState = errors.New("invalid state transition")

	// ErrAlreadyExists is returned when creating an instance that already exists
	ErrAlreadyExists = errors.New("instance already exists")

	// ErrAmbiguousName is returned when an ID prefix matches more than one instance
	ErrAmbiguousName = errors.New("multiple instances match")

	// ErrInvalidRequest is returned when a create request fails validation
	ErrInvalidRequest = errors.New("invalid instance request")

	// ErrReplayFailed marks a failure while replaying queued devices after boot.
	// The VM stays running; devices applied before the failure stay attached.
	ErrReplayFailed = errors.New("replay_pending")
)
