package sim

import (
	"context"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// Dome is a simulated dome. It starts online, idle and closed.
type Dome struct {
	recorder

	online    bool
	busy      bool
	shutter   bool
	door      bool
	slaved    bool
	jammed    bool
	onlineSeq script
	busySeq   script
}

var _ observatory.DomeController = (*Dome)(nil)

// NewDome returns an online, idle dome with the shutter closed.
func NewDome() *Dome {
	return &Dome{online: true}
}

// ScriptOnline queues IsOnline results.
func (d *Dome) ScriptOnline(values ...bool) {
	d.mu.Lock()
	d.onlineSeq.values = append(d.onlineSeq.values, values...)
	d.mu.Unlock()
}

// ScriptBusy queues IsBusy results.
func (d *Dome) ScriptBusy(values ...bool) {
	d.mu.Lock()
	d.busySeq.values = append(d.busySeq.values, values...)
	d.mu.Unlock()
}

// SetOnline sets the fallback online state.
func (d *Dome) SetOnline(v bool) {
	d.mu.Lock()
	d.online = v
	d.mu.Unlock()
}

// SetShutterOpen forces the physical shutter state.
func (d *Dome) SetShutterOpen(v bool) {
	d.mu.Lock()
	d.shutter = v
	d.mu.Unlock()
}

// Jam makes shutter commands succeed without moving the shutter.
func (d *Dome) Jam(v bool) {
	d.mu.Lock()
	d.jammed = v
	d.mu.Unlock()
}

// ShutterOpen reports the physical shutter state.
func (d *Dome) ShutterOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutter
}

// Slaved reports whether slave mode is enabled.
func (d *Dome) Slaved() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.slaved
}

func (d *Dome) IsBusy(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("IsBusy"); err != nil {
		return false, err
	}
	return d.busySeq.next(d.busy), nil
}

func (d *Dome) IsOnline(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("IsOnline"); err != nil {
		return false, err
	}
	return d.onlineSeq.next(d.online), nil
}

func (d *Dome) IsShutterOpen(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("IsShutterOpen"); err != nil {
		return false, err
	}
	return d.shutter, nil
}

func (d *Dome) IsDoorOpen(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("IsDoorOpen"); err != nil {
		return false, err
	}
	return d.door, nil
}

func (d *Dome) OpenShutter(_ context.Context) error {
	return d.moveShutter("OpenShutter", true)
}

func (d *Dome) CloseShutter(_ context.Context) error {
	return d.moveShutter("CloseShutter", false)
}

func (d *Dome) moveShutter(method string, open bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(method); err != nil {
		return err
	}
	if !d.jammed {
		d.shutter = open
	}
	return nil
}

func (d *Dome) SetSlaveMode(_ context.Context, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("SetSlaveMode", enabled); err != nil {
		return err
	}
	d.slaved = enabled
	return nil
}
