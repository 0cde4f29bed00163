package daycycle

import "errors"

var (
	// ErrBlackout is returned when the cycle starts too close to sunrise
	// or sunset.
	ErrBlackout = errors.New("daycycle: within sunrise/sunset blackout")

	// ErrDaybreak is the cancellation cause when the night ends before the
	// cycle does.
	ErrDaybreak = errors.New("daycycle: shutdown due before sunrise")

	// ErrStartup wraps any failure of the mount/dome startup sequence.
	ErrStartup = errors.New("daycycle: startup failed")

	// ErrNotReady is returned when the health check did not pass.
	ErrNotReady = errors.New("daycycle: observatory not ready")

	// ErrEmptyPlan is returned when the plan file holds no entries.
	ErrEmptyPlan = errors.New("daycycle: plan has no entries")

	// ErrPanic is returned when a cycle step panicked.
	ErrPanic = errors.New("daycycle: cycle panicked")

	// ErrOperatorAbort is the cancellation cause set by Abort.
	ErrOperatorAbort = errors.New("daycycle: aborted by operator")

	// ErrNotRunning is returned by Abort when no cycle is active.
	ErrNotRunning = errors.New("daycycle: no cycle running")
)
