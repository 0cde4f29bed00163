package sim

import (
	"context"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// Mount is a simulated telescope mount.
type Mount struct {
	recorder

	connected    bool
	connectedSeq script
	axes         [2]bool
	tracking     bool
	telemetry    observatory.Telemetry
}

var _ observatory.MountController = (*Mount)(nil)

// NewMount returns a disconnected mount reporting the given telemetry.
func NewMount(t observatory.Telemetry) *Mount {
	return &Mount{telemetry: t}
}

// ScriptConnected makes the next IsConnected calls return values in order
// before falling back to the real simulated state.
func (m *Mount) ScriptConnected(values ...bool) {
	m.mu.Lock()
	m.connectedSeq.values = append(m.connectedSeq.values, values...)
	m.mu.Unlock()
}

// SetConnected forces the connection state.
func (m *Mount) SetConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

// AxisEnabled reports whether axis is enabled.
func (m *Mount) AxisEnabled(axis int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.axes[axis]
}

// Tracking reports whether the mount is following an object.
func (m *Mount) Tracking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracking
}

func (m *Mount) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Connect"); err != nil {
		return err
	}
	m.connected = true
	return nil
}

func (m *Mount) IsConnected(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("IsConnected"); err != nil {
		return false, err
	}
	return m.connectedSeq.next(m.connected), nil
}

func (m *Mount) EnableAxis(_ context.Context, axis int) error {
	return m.setAxis("EnableAxis", axis, true)
}

func (m *Mount) DisableAxis(_ context.Context, axis int) error {
	return m.setAxis("DisableAxis", axis, false)
}

func (m *Mount) setAxis(method string, axis int, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(method, axis); err != nil {
		return err
	}
	if axis >= 0 && axis < len(m.axes) {
		m.axes[axis] = enabled
	}
	return nil
}

func (m *Mount) FindHome(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.record("FindHome")
}

func (m *Mount) FollowElements(_ context.Context, line1, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FollowElements", line1); err != nil {
		return "", err
	}
	m.tracking = true
	return "following " + line1, nil
}

func (m *Mount) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Stop"); err != nil {
		return err
	}
	m.tracking = false
	return nil
}

func (m *Mount) Telemetry(_ context.Context) (observatory.Telemetry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Telemetry"); err != nil {
		return observatory.Telemetry{}, err
	}
	return m.telemetry, nil
}
