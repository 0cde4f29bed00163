package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/nightwatch/internal/observatory"
	"github.com/nerrad567/nightwatch/internal/observatory/sim"
	"github.com/nerrad567/nightwatch/internal/plan"
)

var errInjected = errors.New("injected")

type mockRecorder struct {
	mu      sync.Mutex
	frames  []Frame
	entries []EntryReport
}

func (r *mockRecorder) RecordFrame(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *mockRecorder) RecordEntry(er EntryReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, er)
}

func (r *mockRecorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

type rig struct {
	mount    *sim.Mount
	camera   *sim.Camera
	recorder *mockRecorder
	out      string
	exec     *Executor
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		mount: sim.NewMount(observatory.Telemetry{
			Azimuth:         181.2044,
			Altitude:        43.1181,
			AxisErrorArcsec: [2]float64{1.204, 0.851},
		}),
		camera:   sim.NewCamera(true),
		recorder: &mockRecorder{},
		out:      t.TempDir(),
	}
	r.camera.SetReadyAfter(1)
	r.exec = New(Config{
		Session:           observatory.NewSession(r.mount, sim.NewDome(), r.camera),
		OutputDir:         r.out,
		ExposureSeconds:   0.005,
		PollInterval:      10 * time.Millisecond,
		ReadyPollInterval: 5 * time.Millisecond,
		ReadyTimeout:      50 * time.Millisecond,
		StopTimeout:       time.Second,
		Recorder:          r.recorder,
	})
	return r
}

func entryAt(name string, begin, end time.Time) plan.Entry {
	return plan.Entry{
		BeginLocal: begin,
		EndLocal:   end,
		Name:       name,
		TLELine2:   "1 25544U 98067A   26290.51782528  .00016717  00000-0  30571-3 0  9993",
		TLELine3:   "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
	}
}

func TestFrameName(t *testing.T) {
	tests := []struct {
		name string
		seq  int
		tel  observatory.Telemetry
		want string
	}{
		{
			name: "rounds telemetry",
			seq:  1,
			tel:  observatory.Telemetry{Azimuth: 181.2044, Altitude: 43.1181, AxisErrorArcsec: [2]float64{1.204, 0.851}},
			want: "0001_Azm_181.204_Alt_43.118_Axis0Dist_1.20_Axis1Dist_0.85.fits",
		},
		{
			name: "zero padded sequence",
			seq:  42,
			tel:  observatory.Telemetry{},
			want: "0042_Azm_0.000_Alt_0.000_Axis0Dist_0.00_Axis1Dist_0.00.fits",
		},
		{
			name: "wide sequence",
			seq:  12345,
			tel:  observatory.Telemetry{Azimuth: 5, Altitude: -1.5},
			want: "12345_Azm_5.000_Alt_-1.500_Axis0Dist_0.00_Axis1Dist_0.00.fits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameName(tt.seq, tt.tel); got != tt.want {
				t.Errorf("FrameName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDirName(t *testing.T) {
	at := time.Date(2026, 10, 17, 21, 30, 5, 0, time.UTC)

	tests := []struct {
		target string
		want   string
	}{
		{"ISS (ZARYA)", "20261017_213005_ISS_(ZARYA)"},
		{"STARLINK-1007", "20261017_213005_STARLINK-1007"},
		{"../etc/passwd", "20261017_213005_.._etc_passwd"},
		{"  ", "20261017_213005_unnamed"},
	}

	for _, tt := range tests {
		if got := DirName(at, tt.target); got != tt.want {
			t.Errorf("DirName(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestRun_CapturesDuringWindow(t *testing.T) {
	r := newRig(t)
	now := time.Now()
	p := &plan.Plan{Entries: []plan.Entry{
		entryAt("SAT-A", now.Add(50*time.Millisecond), now.Add(250*time.Millisecond)),
	}}

	rep := r.exec.Run(context.Background(), p)

	if rep.Aborted {
		t.Fatal("Report.Aborted = true")
	}
	if len(rep.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(rep.Entries))
	}
	er := rep.Entries[0]
	if er.Err != nil || er.Skipped {
		t.Fatalf("entry = %+v", er)
	}
	if er.Frames == 0 || er.FrameFailures != 0 {
		t.Errorf("Frames = %d, FrameFailures = %d", er.Frames, er.FrameFailures)
	}
	if !strings.HasSuffix(filepath.Base(er.Directory), "_SAT-A") {
		t.Errorf("Directory = %q", er.Directory)
	}

	if got := r.mount.Count("FollowElements"); got != 1 {
		t.Errorf("FollowElements calls = %d, want 1", got)
	}
	if r.mount.Calls()[0] != "FollowElements(0 SAT-A)" {
		t.Errorf("first mount call = %q", r.mount.Calls()[0])
	}
	if r.mount.Tracking() {
		t.Error("mount still tracking after window closed")
	}

	saved := r.camera.Saved()
	if len(saved) != er.Frames {
		t.Fatalf("saved %d files, report says %d", len(saved), er.Frames)
	}
	if want := filepath.Join(er.Directory, "0001_Azm_181.204_Alt_43.118_Axis0Dist_1.20_Axis1Dist_0.85.fits"); saved[0] != want {
		t.Errorf("first frame = %q, want %q", saved[0], want)
	}
	for _, path := range saved {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("frame missing: %v", err)
		}
	}

	if r.recorder.frameCount() != er.Frames {
		t.Errorf("recorded frames = %d, want %d", r.recorder.frameCount(), er.Frames)
	}
	for i, f := range r.recorder.frames {
		if f.Sequence != i+1 || f.Target != "SAT-A" {
			t.Errorf("frame %d = %+v", i, f)
		}
		if f.SavedAt.Before(p.Entries[0].BeginLocal) {
			t.Errorf("frame %d saved before window opened", i)
		}
	}
	if len(r.recorder.entries) != 1 {
		t.Errorf("recorded entries = %d, want 1", len(r.recorder.entries))
	}
}

func TestRun_FrameCadenceFollowsExposure(t *testing.T) {
	const (
		window   = 600 * time.Millisecond
		exposure = 100 * time.Millisecond
	)
	r := newRig(t)
	r.exec = New(Config{
		Session:           observatory.NewSession(r.mount, sim.NewDome(), r.camera),
		OutputDir:         r.out,
		ExposureSeconds:   exposure.Seconds(),
		PollInterval:      5 * time.Millisecond,
		ReadyPollInterval: 5 * time.Millisecond,
		ReadyTimeout:      time.Second,
		StopTimeout:       time.Second,
		Recorder:          r.recorder,
	})
	begin := time.Now().Add(20 * time.Millisecond)
	p := &plan.Plan{Entries: []plan.Entry{entryAt("SAT-A", begin, begin.Add(window))}}

	rep := r.exec.Run(context.Background(), p)

	if rep.Aborted || len(rep.Entries) != 1 {
		t.Fatalf("Report = %+v", rep)
	}
	er := rep.Entries[0]
	if er.Err != nil || er.FrameFailures != 0 {
		t.Fatalf("entry = %+v", er)
	}

	// An exposure may still start just before the window closes, and each
	// frame adds up to one ready poll of latency.
	want := int(window / exposure)
	if er.Frames < want-2 || er.Frames > want+1 {
		t.Errorf("Frames = %d, want about %d", er.Frames, want)
	}
	if got := r.camera.Count("Expose"); got != er.Frames {
		t.Errorf("Expose calls = %d, want %d", got, er.Frames)
	}
	if got := r.mount.Count("FollowElements"); got != 1 {
		t.Errorf("FollowElements calls = %d, want 1", got)
	}
	if got := r.mount.Count("Stop"); got != 1 {
		t.Errorf("Stop calls = %d, want 1", got)
	}
}

func TestRun_PastEntryIsSkipped(t *testing.T) {
	r := newRig(t)
	now := time.Now()
	p := &plan.Plan{Entries: []plan.Entry{
		entryAt("GONE", now.Add(-time.Hour), now.Add(-time.Minute)),
	}}

	start := time.Now()
	rep := r.exec.Run(context.Background(), p)

	if time.Since(start) > time.Second {
		t.Error("past entry blocked the run")
	}
	if rep.Aborted || len(rep.Entries) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	er := rep.Entries[0]
	if !er.Skipped || er.Frames != 0 || er.Err != nil || er.Directory != "" {
		t.Errorf("entry = %+v", er)
	}
	if len(r.mount.Calls()) != 0 || len(r.camera.Calls()) != 0 {
		t.Errorf("hardware touched: mount %v camera %v", r.mount.Calls(), r.camera.Calls())
	}
	if dirs, _ := os.ReadDir(r.out); len(dirs) != 0 { //nolint:errcheck // empty on error
		t.Errorf("output dir has %d entries, want 0", len(dirs))
	}
}

func TestRun_FrameFailuresDoNotEndEntry(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *rig)
	}{
		{
			name:  "expose fails",
			setup: func(r *rig) { r.camera.FailTimes("Expose", errInjected, 2) },
		},
		{
			name:  "save fails",
			setup: func(r *rig) { r.camera.FailTimes("SaveImage", errInjected, 2) },
		},
		{
			name:  "ready query fails",
			setup: func(r *rig) { r.camera.FailTimes("IsImageReady", errInjected, 2) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			tt.setup(r)
			now := time.Now()
			p := &plan.Plan{Entries: []plan.Entry{entryAt("SAT-A", now, now.Add(300*time.Millisecond))}}

			rep := r.exec.Run(context.Background(), p)

			er := rep.Entries[0]
			if er.Err != nil {
				t.Fatalf("entry Err = %v", er.Err)
			}
			if er.FrameFailures != 2 {
				t.Errorf("FrameFailures = %d, want 2", er.FrameFailures)
			}
			if er.Frames == 0 {
				t.Error("no frames after transient failures")
			}
		})
	}
}

func TestRun_ImageNeverReady(t *testing.T) {
	r := newRig(t)
	r.camera.SetNeverReady(true)
	now := time.Now()
	p := &plan.Plan{Entries: []plan.Entry{entryAt("SAT-A", now, now.Add(200*time.Millisecond))}}

	rep := r.exec.Run(context.Background(), p)

	er := rep.Entries[0]
	if er.Frames != 0 || er.FrameFailures == 0 {
		t.Errorf("Frames = %d, FrameFailures = %d", er.Frames, er.FrameFailures)
	}
	if er.Err != nil {
		t.Errorf("Err = %v, want nil", er.Err)
	}
	if r.mount.Count("Stop") != 1 {
		t.Errorf("Stop calls = %d, want 1", r.mount.Count("Stop"))
	}
}

func TestRun_MountFailureAbortsEntryOnly(t *testing.T) {
	tests := []struct {
		name   string
		method string
	}{
		{"follow fails", "FollowElements"},
		{"telemetry fails", "Telemetry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.mount.FailTimes(tt.method, errInjected, 1)
			now := time.Now()
			p := &plan.Plan{Entries: []plan.Entry{
				entryAt("SAT-A", now, now.Add(150*time.Millisecond)),
				entryAt("SAT-B", now.Add(200*time.Millisecond), now.Add(350*time.Millisecond)),
			}}

			rep := r.exec.Run(context.Background(), p)

			if rep.Aborted || len(rep.Entries) != 2 {
				t.Fatalf("report = %+v", rep)
			}
			first, second := rep.Entries[0], rep.Entries[1]
			if !errors.Is(first.Err, ErrEntryAborted) || !errors.Is(first.Err, observatory.ErrHardwareUnavailable) {
				t.Errorf("first Err = %v", first.Err)
			}
			if second.Err != nil || second.Frames == 0 {
				t.Errorf("second entry = %+v", second)
			}
			if r.mount.Count("Stop") != 2 {
				t.Errorf("Stop calls = %d, want 2", r.mount.Count("Stop"))
			}
		})
	}
}

func TestRun_EntriesInOrder(t *testing.T) {
	r := newRig(t)
	now := time.Now()
	p := &plan.Plan{Entries: []plan.Entry{
		entryAt("SAT-A", now, now.Add(80*time.Millisecond)),
		entryAt("SAT-B", now.Add(40*time.Millisecond), now.Add(160*time.Millisecond)),
		entryAt("SAT-C", now.Add(170*time.Millisecond), now.Add(240*time.Millisecond)),
	}}

	rep := r.exec.Run(context.Background(), p)

	var follows []string
	for _, c := range r.mount.Calls() {
		if strings.HasPrefix(c, "FollowElements") {
			follows = append(follows, c)
		}
	}
	want := []string{"FollowElements(0 SAT-A)", "FollowElements(0 SAT-B)", "FollowElements(0 SAT-C)"}
	if strings.Join(follows, "|") != strings.Join(want, "|") {
		t.Errorf("follow order = %v, want %v", follows, want)
	}
	for i := 1; i < len(rep.Entries); i++ {
		if rep.Entries[i].Name == rep.Entries[i-1].Name {
			t.Errorf("entry %d repeated", i)
		}
	}
}

func TestRun_CancelDuringWait(t *testing.T) {
	r := newRig(t)
	now := time.Now()
	p := &plan.Plan{Entries: []plan.Entry{
		entryAt("LATER", now.Add(time.Hour), now.Add(2*time.Hour)),
		entryAt("MUCH-LATER", now.Add(3*time.Hour), now.Add(4*time.Hour)),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	rep := r.exec.Run(ctx, p)

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %s", elapsed)
	}
	if !rep.Aborted {
		t.Error("Report.Aborted = false")
	}
	if len(rep.Entries) != 1 {
		t.Fatalf("entries = %d, want 1 (partial)", len(rep.Entries))
	}
	if err := rep.Entries[0].Err; !errors.Is(err, ErrRunAborted) || !errors.Is(err, context.Canceled) {
		t.Errorf("Err = %v", err)
	}
	if r.mount.Count("FollowElements") != 0 {
		t.Error("mount commanded after cancellation")
	}
}

func TestRun_CancelDuringCapture(t *testing.T) {
	r := newRig(t)
	now := time.Now()
	p := &plan.Plan{Entries: []plan.Entry{entryAt("LONG", now, now.Add(time.Hour))}}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	rep := r.exec.Run(ctx, p)

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %s", elapsed)
	}
	if !rep.Aborted {
		t.Error("Report.Aborted = false")
	}
	if !errors.Is(rep.Entries[0].Err, ErrRunAborted) {
		t.Errorf("Err = %v", rep.Entries[0].Err)
	}
	if rep.Entries[0].Frames == 0 {
		t.Error("no frames before cancellation")
	}
	if r.mount.Count("Stop") != 1 || r.mount.Tracking() {
		t.Error("mount not stopped after cancellation")
	}
}

func TestRun_MissingCamera(t *testing.T) {
	mount := sim.NewMount(observatory.Telemetry{})
	exec := New(Config{Session: observatory.NewSession(mount, nil, nil), OutputDir: t.TempDir()})
	now := time.Now()
	p := &plan.Plan{Entries: []plan.Entry{entryAt("SAT-A", now, now.Add(time.Hour))}}

	rep := exec.Run(context.Background(), p)

	if !rep.Aborted || !errors.Is(rep.Entries[0].Err, observatory.ErrNoHandle) {
		t.Errorf("report = %+v", rep)
	}
	if len(mount.Calls()) != 0 {
		t.Errorf("mount calls = %v", mount.Calls())
	}
}

func TestRun_EmptyPlan(t *testing.T) {
	r := newRig(t)
	for _, p := range []*plan.Plan{nil, {}} {
		rep := r.exec.Run(context.Background(), p)
		if rep == nil || rep.Aborted || len(rep.Entries) != 0 {
			t.Errorf("Run(%v) = %+v", p, rep)
		}
		if rep.FinishedAt.Before(rep.StartedAt) {
			t.Error("FinishedAt before StartedAt")
		}
	}
}

func TestReport_Totals(t *testing.T) {
	rep := &Report{Entries: []EntryReport{
		{Frames: 3},
		{Frames: 2, Err: errInjected},
		{Skipped: true},
	}}
	if rep.Frames() != 5 {
		t.Errorf("Frames() = %d, want 5", rep.Frames())
	}
	if rep.Completed() != 1 {
		t.Errorf("Completed() = %d, want 1", rep.Completed())
	}
	if rep.Entries[1].ErrorText() != "injected" || rep.Entries[0].ErrorText() != "" {
		t.Error("ErrorText() mismatch")
	}

	var nilReport *Report
	if nilReport.Frames() != 0 || nilReport.Completed() != 0 {
		t.Error("nil report totals not zero")
	}
}
