package bridge

import (
	"context"
	"fmt"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// Mount is a MountController backed by the mount bridge.
type Mount struct {
	c *Caller
}

var _ observatory.MountController = (*Mount)(nil)

// NewMount wraps a caller for the mount bridge.
func NewMount(c *Caller) *Mount { return &Mount{c: c} }

func (m *Mount) Connect(ctx context.Context) error {
	return m.c.do(ctx, ActionConnect, nil)
}

func (m *Mount) IsConnected(ctx context.Context) (bool, error) {
	return m.c.value(ctx, ActionIsConnected)
}

func (m *Mount) EnableAxis(ctx context.Context, axis int) error {
	return m.c.do(ctx, ActionEnableAxis, map[string]any{fieldAxis: axis})
}

func (m *Mount) DisableAxis(ctx context.Context, axis int) error {
	return m.c.do(ctx, ActionDisableAxis, map[string]any{fieldAxis: axis})
}

// FindHome waits for the bridge until ctx ends rather than for the
// per-request timeout; the bridge answers once the mount has settled.
func (m *Mount) FindHome(ctx context.Context) error {
	_, err := m.c.CallUntil(ctx, ActionFindHome, nil)
	return err
}

func (m *Mount) FollowElements(ctx context.Context, line1, line2, line3 string) (string, error) {
	data, err := m.c.Call(ctx, ActionFollowElements, map[string]any{
		fieldLine1: line1,
		fieldLine2: line2,
		fieldLine3: line3,
	})
	if err != nil {
		return "", err
	}
	ack, _ := data[fieldResponse].(string) //nolint:errcheck // acknowledgement is informational
	return ack, nil
}

func (m *Mount) Stop(ctx context.Context) error {
	return m.c.do(ctx, ActionStop, nil)
}

func (m *Mount) Telemetry(ctx context.Context) (observatory.Telemetry, error) {
	data, err := m.c.Call(ctx, ActionStatus, nil)
	if err != nil {
		return observatory.Telemetry{}, err
	}
	f := fields{m: data}
	t := observatory.Telemetry{
		Azimuth:  f.float(fieldAzimuth),
		Altitude: f.float(fieldAltitude),
		AxisErrorArcsec: [2]float64{
			f.float(fieldAxis0),
			f.float(fieldAxis1),
		},
	}
	if f.err != nil {
		return observatory.Telemetry{}, m.c.fail(ActionStatus, fmt.Errorf("%w: %w", ErrBadResponse, f.err))
	}
	return t, nil
}

// Dome is a DomeController backed by the dome bridge.
type Dome struct {
	c *Caller
}

var _ observatory.DomeController = (*Dome)(nil)

// NewDome wraps a caller for the dome bridge.
func NewDome(c *Caller) *Dome { return &Dome{c: c} }

func (d *Dome) IsBusy(ctx context.Context) (bool, error) { return d.c.value(ctx, ActionIsBusy) }

func (d *Dome) IsOnline(ctx context.Context) (bool, error) { return d.c.value(ctx, ActionIsOnline) }

func (d *Dome) IsShutterOpen(ctx context.Context) (bool, error) {
	return d.c.value(ctx, ActionIsShutterOpen)
}

func (d *Dome) IsDoorOpen(ctx context.Context) (bool, error) {
	return d.c.value(ctx, ActionIsDoorOpen)
}

func (d *Dome) OpenShutter(ctx context.Context) error {
	return d.c.do(ctx, ActionOpenShutter, nil)
}

func (d *Dome) CloseShutter(ctx context.Context) error {
	return d.c.do(ctx, ActionCloseShutter, nil)
}

func (d *Dome) SetSlaveMode(ctx context.Context, enabled bool) error {
	return d.c.do(ctx, ActionSetSlaveMode, map[string]any{fieldEnabled: enabled})
}

// Camera is a CameraController backed by the camera bridge.
type Camera struct {
	c *Caller
}

var _ observatory.CameraController = (*Camera)(nil)

// NewCamera wraps a caller for the camera bridge.
func NewCamera(c *Caller) *Camera { return &Camera{c: c} }

func (cam *Camera) Expose(ctx context.Context, seconds float64) error {
	return cam.c.do(ctx, ActionExpose, map[string]any{fieldSeconds: seconds})
}

func (cam *Camera) IsImageReady(ctx context.Context) (bool, error) {
	return cam.c.value(ctx, ActionIsImageReady)
}

func (cam *Camera) SaveImage(ctx context.Context, path string) error {
	return cam.c.do(ctx, ActionSaveImage, map[string]any{fieldPath: path})
}

func (cam *Camera) SetCoolerEnabled(ctx context.Context, enabled bool) error {
	return cam.c.do(ctx, ActionSetCoolerEnabled, map[string]any{fieldEnabled: enabled})
}
