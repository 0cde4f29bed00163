package observatory

import (
	"context"
	"time"
)

// Mount axes.
const (
	Axis0 = 0
	Axis1 = 1
)

// Axes lists every mount axis, in enable/disable order.
var Axes = []int{Axis0, Axis1}

// Telemetry is the live mount state recorded with each frame.
type Telemetry struct {
	Azimuth  float64 `json:"azimuth"`
	Altitude float64 `json:"altitude"`

	// AxisErrorArcsec is the pointing error of axis 0 and axis 1.
	AxisErrorArcsec [2]float64 `json:"axis_error_arcsec"`
}

// MountController drives the telescope mount.
type MountController interface {
	Connect(ctx context.Context) error
	IsConnected(ctx context.Context) (bool, error)
	EnableAxis(ctx context.Context, axis int) error
	DisableAxis(ctx context.Context, axis int) error

	// FindHome blocks until the mount has settled at its home position.
	FindHome(ctx context.Context) error

	// FollowElements starts tracking the object described by the three
	// element lines. The returned acknowledgement is informational only.
	FollowElements(ctx context.Context, line1, line2, line3 string) (string, error)

	Stop(ctx context.Context) error
	Telemetry(ctx context.Context) (Telemetry, error)
}

// DomeController drives the dome and its shutter.
type DomeController interface {
	IsBusy(ctx context.Context) (bool, error)
	IsOnline(ctx context.Context) (bool, error)
	IsShutterOpen(ctx context.Context) (bool, error)
	IsDoorOpen(ctx context.Context) (bool, error)
	OpenShutter(ctx context.Context) error
	CloseShutter(ctx context.Context) error

	// SetSlaveMode makes the dome follow the mount's pointing.
	SetSlaveMode(ctx context.Context, enabled bool) error
}

// CameraController drives the imaging camera.
type CameraController interface {
	Expose(ctx context.Context, seconds float64) error
	IsImageReady(ctx context.Context) (bool, error)
	SaveImage(ctx context.Context, path string) error
	SetCoolerEnabled(ctx context.Context, enabled bool) error
}

// SunTimesProvider looks up sunrise and sunset for a date and location.
// Failures wrap ErrSunTimesUnavailable.
type SunTimesProvider interface {
	SunTimes(ctx context.Context, date time.Time, lat, lng float64) (sunrise, sunset time.Time, err error)
}
