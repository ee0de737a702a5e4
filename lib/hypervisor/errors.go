package hypervisor

import "errors"

var (
	// ErrMissingSocket is returned when a hot-plug is attempted without a VMM API socket
	ErrMissingSocket = errors.New("missing socket")

	// ErrQueueSizeOverflow is returned when a queue size does not fit the VMM's 16-bit field
	ErrQueueSizeOverflow = errors.New("queue size out of range")

	// ErrMissingBootFile is returned when neither an initrd nor an image is configured
	ErrMissingBootFile = errors.New("missing boot file (no image or initrd)")

	// ErrNoConfig is returned when no hypervisor config was supplied
	ErrNoConfig = errors.New("no hypervisor config")

	// ErrInvalidState is returned when an operation is not allowed in the current VM state
	ErrInvalidState = errors.New("invalid vm state")
)
