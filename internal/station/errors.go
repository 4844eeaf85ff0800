package station

import "errors"

var (
	// ErrStationNotFound is returned when no station has the given ID.
	ErrStationNotFound = errors.New("station: not found")

	// ErrStationExists is returned when provisioning an ID already in use.
	ErrStationExists = errors.New("station: already exists")

	ErrInvalidID         = errors.New("station: id must be positive")
	ErrInvalidName       = errors.New("station: name too long")
	ErrInvalidState      = errors.New("station: state must be 1-64 bytes")
	ErrInvalidConfig     = errors.New("station: config too long")
	ErrMissingCredential = errors.New("station: token hash is required")
)
