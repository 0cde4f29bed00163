package observatory

import "errors"

var (
	// ErrHardwareUnavailable is wrapped by any capability call that fails or
	// times out.
	ErrHardwareUnavailable = errors.New("observatory: hardware unavailable")

	// ErrSunTimesUnavailable is returned when sunrise/sunset cannot be
	// looked up.
	ErrSunTimesUnavailable = errors.New("observatory: sun times unavailable")

	// ErrNoHandle is returned by Session helpers when a device is not attached.
	ErrNoHandle = errors.New("observatory: device not attached")
)
