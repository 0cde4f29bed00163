package observatory

import (
	"context"
	"fmt"
	"sync"
)

// Session owns the device handles and the dome-open flag for one cycle.
//
// Handles returned by Mount, Dome and Camera are guarded: a command holds
// the device until it returns, so the executor and the shutdown sequencer
// never interleave commands on the same device. Waiting for a busy device
// honours the caller's context.
//
// Thread Safety: all methods are safe for concurrent use.
type Session struct {
	mount  MountController
	dome   DomeController
	camera CameraController

	mu       sync.Mutex
	domeOpen bool
}

// NewSession wraps the given handles. Any of them may be nil when the
// device is not attached.
func NewSession(mount MountController, dome DomeController, camera CameraController) *Session {
	s := &Session{}
	if mount != nil {
		s.mount = &guardedMount{lock: newDeviceLock("mount"), next: mount}
	}
	if dome != nil {
		s.dome = &guardedDome{lock: newDeviceLock("dome"), next: dome}
	}
	if camera != nil {
		s.camera = &guardedCamera{lock: newDeviceLock("camera"), next: camera}
	}
	return s
}

// Mount returns the guarded mount handle, or nil.
func (s *Session) Mount() MountController { return s.mount }

// Dome returns the guarded dome handle, or nil.
func (s *Session) Dome() DomeController { return s.dome }

// Camera returns the guarded camera handle, or nil.
func (s *Session) Camera() CameraController { return s.camera }

// DomeOpen returns the last commanded shutter state. It can be stale and
// must be checked against IsShutterOpen before being trusted.
func (s *Session) DomeOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domeOpen
}

// SetDomeOpen records the commanded shutter state.
func (s *Session) SetDomeOpen(open bool) {
	s.mu.Lock()
	s.domeOpen = open
	s.mu.Unlock()
}

// deviceLock is a one-slot semaphore so waiting can be cancelled.
type deviceLock struct {
	name string
	slot chan struct{}
}

func newDeviceLock(name string) deviceLock {
	return deviceLock{name: name, slot: make(chan struct{}, 1)}
}

func (l deviceLock) acquire(ctx context.Context) error {
	select {
	case l.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for %s: %w", ErrHardwareUnavailable, l.name, ctx.Err())
	}
}

func (l deviceLock) release() { <-l.slot }

// do runs fn while holding the device.
func (l deviceLock) do(ctx context.Context, fn func() error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	return fn()
}

type guardedMount struct {
	lock deviceLock
	next MountController
}

func (g *guardedMount) Connect(ctx context.Context) error {
	return g.lock.do(ctx, func() error { return g.next.Connect(ctx) })
}

func (g *guardedMount) IsConnected(ctx context.Context) (ok bool, err error) {
	err = g.lock.do(ctx, func() error { ok, err = g.next.IsConnected(ctx); return err })
	return ok, err
}

func (g *guardedMount) EnableAxis(ctx context.Context, axis int) error {
	return g.lock.do(ctx, func() error { return g.next.EnableAxis(ctx, axis) })
}

func (g *guardedMount) DisableAxis(ctx context.Context, axis int) error {
	return g.lock.do(ctx, func() error { return g.next.DisableAxis(ctx, axis) })
}

func (g *guardedMount) FindHome(ctx context.Context) error {
	return g.lock.do(ctx, func() error { return g.next.FindHome(ctx) })
}

func (g *guardedMount) FollowElements(ctx context.Context, l1, l2, l3 string) (ack string, err error) {
	err = g.lock.do(ctx, func() error { ack, err = g.next.FollowElements(ctx, l1, l2, l3); return err })
	return ack, err
}

func (g *guardedMount) Stop(ctx context.Context) error {
	return g.lock.do(ctx, func() error { return g.next.Stop(ctx) })
}

func (g *guardedMount) Telemetry(ctx context.Context) (t Telemetry, err error) {
	err = g.lock.do(ctx, func() error { t, err = g.next.Telemetry(ctx); return err })
	return t, err
}

type guardedDome struct {
	lock deviceLock
	next DomeController
}

func (g *guardedDome) query(ctx context.Context, fn func(context.Context) (bool, error)) (v bool, err error) {
	err = g.lock.do(ctx, func() error { v, err = fn(ctx); return err })
	return v, err
}

func (g *guardedDome) IsBusy(ctx context.Context) (bool, error) { return g.query(ctx, g.next.IsBusy) }

func (g *guardedDome) IsOnline(ctx context.Context) (bool, error) { return g.query(ctx, g.next.IsOnline) }

func (g *guardedDome) IsShutterOpen(ctx context.Context) (bool, error) {
	return g.query(ctx, g.next.IsShutterOpen)
}

func (g *guardedDome) IsDoorOpen(ctx context.Context) (bool, error) {
	return g.query(ctx, g.next.IsDoorOpen)
}

func (g *guardedDome) OpenShutter(ctx context.Context) error {
	return g.lock.do(ctx, func() error { return g.next.OpenShutter(ctx) })
}

func (g *guardedDome) CloseShutter(ctx context.Context) error {
	return g.lock.do(ctx, func() error { return g.next.CloseShutter(ctx) })
}

func (g *guardedDome) SetSlaveMode(ctx context.Context, enabled bool) error {
	return g.lock.do(ctx, func() error { return g.next.SetSlaveMode(ctx, enabled) })
}

type guardedCamera struct {
	lock deviceLock
	next CameraController
}

func (g *guardedCamera) Expose(ctx context.Context, seconds float64) error {
	return g.lock.do(ctx, func() error { return g.next.Expose(ctx, seconds) })
}

func (g *guardedCamera) IsImageReady(ctx context.Context) (ok bool, err error) {
	err = g.lock.do(ctx, func() error { ok, err = g.next.IsImageReady(ctx); return err })
	return ok, err
}

func (g *guardedCamera) SaveImage(ctx context.Context, path string) error {
	return g.lock.do(ctx, func() error { return g.next.SaveImage(ctx, path) })
}

func (g *guardedCamera) SetCoolerEnabled(ctx context.Context, enabled bool) error {
	return g.lock.do(ctx, func() error { return g.next.SetCoolerEnabled(ctx, enabled) })
}
