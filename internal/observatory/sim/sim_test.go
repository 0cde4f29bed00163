package sim

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

func TestMount_FailTimesAndScript(t *testing.T) {
	ctx := context.Background()
	m := NewMount(observatory.Telemetry{Azimuth: 10})
	boom := errors.New("com port closed")
	m.FailTimes("Connect", boom, 1)

	if err := m.Connect(ctx); !errors.Is(err, observatory.ErrHardwareUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("first Connect() error = %v", err)
	}
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	m.ScriptConnected(false)
	if ok, _ := m.IsConnected(ctx); ok { //nolint:errcheck // scripted
		t.Error("scripted IsConnected should be false")
	}
	if ok, _ := m.IsConnected(ctx); !ok { //nolint:errcheck // scripted
		t.Error("IsConnected should fall back to the connected state")
	}

	want := []string{"Connect", "Connect", "IsConnected", "IsConnected"}
	if got := m.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("Calls() = %v, want %v", got, want)
	}
	if m.Count("Connect") != 2 {
		t.Errorf("Count(Connect) = %d", m.Count("Connect"))
	}
}

func TestDome_JammedShutter(t *testing.T) {
	ctx := context.Background()
	d := NewDome()
	d.Jam(true)

	if err := d.OpenShutter(ctx); err != nil {
		t.Fatalf("OpenShutter() error = %v", err)
	}
	if open, _ := d.IsShutterOpen(ctx); open { //nolint:errcheck // never fails here
		t.Error("jammed shutter opened")
	}
}

func TestCamera_ReadyAfter(t *testing.T) {
	ctx := context.Background()
	c := NewCamera(false)
	c.SetReadyAfter(2)

	if ready, _ := c.IsImageReady(ctx); ready { //nolint:errcheck // never fails here
		t.Error("ready before any exposure")
	}
	_ = c.Expose(ctx, 0) //nolint:errcheck // never fails here
	var polls int
	for ready := false; !ready; polls++ {
		ready, _ = c.IsImageReady(ctx) //nolint:errcheck // never fails here
	}
	if polls != 3 {
		t.Errorf("polls to ready = %d, want 3", polls)
	}
}

func TestCamera_ReadyAfterExposureTime(t *testing.T) {
	ctx := context.Background()
	c := NewCamera(false)

	start := time.Now()
	_ = c.Expose(ctx, 0.05) //nolint:errcheck // never fails here
	if ready, _ := c.IsImageReady(ctx); ready { //nolint:errcheck // never fails here
		t.Fatal("ready as soon as the exposure started")
	}
	for {
		ready, _ := c.IsImageReady(ctx) //nolint:errcheck // never fails here
		if ready {
			break
		}
		if time.Since(start) > time.Second {
			t.Fatal("exposure never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("ready after %s, want at least 50ms", elapsed)
	}
}

func TestSunTimes(t *testing.T) {
	loc := time.FixedZone("MST", -7*60*60)
	s := NewSunTimes(loc, 6*time.Hour, 18*time.Hour)

	rise, set, err := s.SunTimes(context.Background(), time.Date(2026, 10, 17, 23, 0, 0, 0, loc), 0, 0)
	if err != nil {
		t.Fatalf("SunTimes() error = %v", err)
	}
	if !rise.Equal(time.Date(2026, 10, 17, 6, 0, 0, 0, loc)) || !set.Equal(time.Date(2026, 10, 17, 18, 0, 0, 0, loc)) {
		t.Errorf("SunTimes() = %v, %v", rise, set)
	}

	s.Fail("SunTimes", errors.New("offline"))
	if _, _, err := s.SunTimes(context.Background(), rise, 0, 0); !errors.Is(err, observatory.ErrSunTimesUnavailable) {
		t.Errorf("error = %v, want ErrSunTimesUnavailable", err)
	}
}
