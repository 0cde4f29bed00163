package bridge

import "errors"

var (
	// ErrTimeout is returned when a bridge does not answer in time.
	ErrTimeout = errors.New("bridge: request timed out")

	// ErrRemote is returned when a bridge answers with Success false.
	ErrRemote = errors.New("bridge: remote error")

	// ErrBadResponse is returned when a response lacks an expected field.
	ErrBadResponse = errors.New("bridge: malformed response")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("bridge: caller closed")
)

// Error codes carried in ResponseError.Code.
const (
	ErrCodeInvalidAction = "INVALID_ACTION"
	ErrCodeInvalidParams = "INVALID_PARAMS"
	ErrCodeDeviceError   = "DEVICE_ERROR"
)
