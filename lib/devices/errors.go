package devices

import "errors"

var (
	// ErrUnsupportedKind is returned when a device kind has no attach handler
	ErrUnsupportedKind = errors.New("unhandled device")

	// ErrUnsupportedFsType is returned when a shared filesystem is not virtio-fs
	ErrUnsupportedFsType = errors.New("cannot handle share fs type")

	// ErrInvalidRequest is returned when a device request cannot be decoded
	ErrInvalidRequest = errors.New("invalid device request")
)
