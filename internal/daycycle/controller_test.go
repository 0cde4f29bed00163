package daycycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/health"
	"github.com/nerrad567/nightwatch/internal/observatory"
	"github.com/nerrad567/nightwatch/internal/observatory/sim"
	"github.com/nerrad567/nightwatch/internal/plan"
	"github.com/nerrad567/nightwatch/internal/shutdown"
)

var errInjected = errors.New("injected")

// fixedSun returns the same sunrise and sunset for every date.
type fixedSun struct {
	sunrise, sunset time.Time
	err             error
}

func (f fixedSun) SunTimes(context.Context, time.Time, float64, float64) (time.Time, time.Time, error) {
	if f.err != nil {
		return time.Time{}, time.Time{}, f.err
	}
	return f.sunrise, f.sunset, nil
}

// sunAround returns a date-aware sun clock whose sunrise and sunset today
// fall at the given offsets from now.
func sunAround(now time.Time, sunrise, sunset time.Duration) *sim.SunTimes {
	local := now.In(time.Local)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	since := local.Sub(midnight)
	return sim.NewSunTimes(time.Local, since+sunrise, since+sunset)
}

type recordingSink struct {
	mu          sync.Mutex
	transitions []Transition
	outcomes    []Outcome
}

func (s *recordingSink) StateChanged(t Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, t)
}

func (s *recordingSink) CycleFinished(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

func (s *recordingSink) states() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.transitions))
	for i, t := range s.transitions {
		out[i] = t.To
	}
	return out
}

type healthFunc func(ctx context.Context) health.Result

func (f healthFunc) Check(ctx context.Context) health.Result { return f(ctx) }

type runnerFunc func(ctx context.Context, p *plan.Plan) *executor.Report

func (f runnerFunc) Run(ctx context.Context, p *plan.Plan) *executor.Report { return f(ctx, p) }

type rig struct {
	mount  *sim.Mount
	dome   *sim.Dome
	camera *sim.Camera
	sess   *observatory.Session
	sink   *recordingSink
	cfg    Config
}

// newRig returns a night-time setup: sunset an hour ago, sunrise in ten
// hours, and a plan with one short window starting now.
func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		mount:  sim.NewMount(observatory.Telemetry{Azimuth: 90, Altitude: 45}),
		dome:   sim.NewDome(),
		camera: sim.NewCamera(false),
		sink:   &recordingSink{},
	}
	r.camera.SetReadyAfter(1)
	r.sess = observatory.NewSession(r.mount, r.dome, r.camera)

	now := time.Now()
	planFile := filepath.Join(t.TempDir(), "tleplan.txt")
	writePlan(t, planFile, plan.Entry{
		BeginLocal: now.Truncate(time.Second),
		EndLocal:   now.Add(1500 * time.Millisecond).Truncate(time.Second).Add(time.Second),
		Name:       "SAT-A",
		TLELine2:   "1 25544U 98067A   26290.51782528  .00016717  00000-0  30571-3 0  9993",
		TLELine3:   "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
	})

	r.cfg = Config{
		Session:  r.sess,
		SunTimes: fixedSun{sunrise: now.Add(10 * time.Hour), sunset: now.Add(-time.Hour)},
		Health: health.NewMonitor(health.Config{
			Mount:       r.mount,
			Dome:        r.dome,
			MaxAttempts: 3,
			Interval:    10 * time.Millisecond,
		}),
		Executor: executor.New(executor.Config{
			Session:           r.sess,
			OutputDir:         t.TempDir(),
			ExposureSeconds:   0.01,
			PollInterval:      10 * time.Millisecond,
			ReadyPollInterval: 5 * time.Millisecond,
			ReadyTimeout:      50 * time.Millisecond,
		}),
		Shutdown:         shutdown.NewSequencer(shutdown.Config{Session: r.sess}),
		Sink:             r.sink,
		PlanFile:         planFile,
		Location:         time.Local,
		BlackoutBuffer:   10 * time.Minute,
		StartOffset:      10 * time.Minute,
		ReadyTimeout:     200 * time.Millisecond,
		HomeTimeout:      time.Second,
		DomeOpenAttempts: 2,
		DomeSettle:       time.Millisecond,
		PollInterval:     10 * time.Millisecond,
	}
	return r
}

func writePlan(t *testing.T, path string, entries ...plan.Entry) {
	t.Helper()
	if err := plan.Save(path, &plan.Plan{Entries: entries}); err != nil {
		t.Fatalf("plan.Save() error = %v", err)
	}
}

func assertStates(t *testing.T, got []State, want ...State) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
}

func assertSafe(t *testing.T, r *rig) {
	t.Helper()
	if r.mount.AxisEnabled(observatory.Axis0) || r.mount.AxisEnabled(observatory.Axis1) {
		t.Error("mount axes left enabled")
	}
	if r.dome.ShutterOpen() {
		t.Error("shutter left open")
	}
	if r.sess.DomeOpen() {
		t.Error("dome-open flag left set")
	}
}

func TestRunCycle_Completed(t *testing.T) {
	r := newRig(t)
	c := NewController(r.cfg)

	out := c.RunCycle(context.Background())

	if out.State != Completed || out.Err != nil {
		t.Fatalf("Outcome = %s (%v), reason %q", out.State, out.Err, out.Reason)
	}
	assertStates(t, r.sink.states(),
		AwaitingObservationWindow, StartingUp, HealthChecking, Observing, ShuttingDown, Completed)

	if out.Report == nil || out.Report.Frames() == 0 {
		t.Errorf("Report = %+v, want frames", out.Report)
	}
	if out.CycleID == "" {
		t.Error("CycleID empty")
	}
	for _, tr := range r.sink.transitions {
		if tr.CycleID != out.CycleID {
			t.Errorf("transition cycle id = %q, want %q", tr.CycleID, out.CycleID)
		}
	}
	if !r.dome.Slaved() {
		t.Error("dome not slaved during startup")
	}
	if r.mount.Count("FindHome") != 1 {
		t.Errorf("FindHome calls = %d, want 1", r.mount.Count("FindHome"))
	}
	if r.dome.Count("CloseShutter") != 1 {
		t.Errorf("CloseShutter calls = %d, want 1", r.dome.Count("CloseShutter"))
	}
	assertSafe(t, r)

	if len(r.sink.outcomes) != 1 {
		t.Errorf("CycleFinished calls = %d, want 1", len(r.sink.outcomes))
	}
	st := c.Status()
	if st.State != Completed || st.Last == nil || st.Last.CycleID != out.CycleID {
		t.Errorf("Status() = %+v", st)
	}
}

func TestRunCycle_Blackout(t *testing.T) {
	tests := []struct {
		name    string
		sunrise time.Duration
		sunset  time.Duration
	}{
		{"just before sunset", -12 * time.Hour, 5 * time.Minute},
		{"just after sunrise", -3 * time.Minute, 10 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			now := time.Now()
			sun := sunAround(now, tt.sunrise, tt.sunset)
			r.cfg.SunTimes = sun

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			out := NewController(r.cfg).RunCycle(ctx)

			if out.State != Aborted || !errors.Is(out.Err, ErrBlackout) {
				t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
			}
			assertStates(t, r.sink.states(), AwaitingObservationWindow, ShuttingDown, Aborted)
			if r.mount.Count("Connect") != 0 || r.dome.Count("OpenShutter") != 0 {
				t.Error("hardware started during blackout")
			}
			if r.mount.Count("DisableAxis") != 2 {
				t.Errorf("DisableAxis calls = %d, want 2", r.mount.Count("DisableAxis"))
			}

			today := now.Format(time.DateOnly)
			tomorrow := now.AddDate(0, 0, 1).Format(time.DateOnly)
			want := []string{"SunTimes(" + today + ")", "SunTimes(" + tomorrow + ")"}
			if calls := sun.Calls(); len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
				t.Errorf("sun lookups = %v, want %v", calls, want)
			}
		})
	}
}

func TestRunCycle_ShutsDownBeforeSunrise(t *testing.T) {
	r := newRig(t)
	now := time.Now()
	writePlan(t, r.cfg.PlanFile, plan.Entry{
		BeginLocal: now.Truncate(time.Second),
		EndLocal:   now.Add(time.Hour).Truncate(time.Second),
		Name:       "LONG",
		TLELine2:   "1 25544U",
		TLELine3:   "2 25544",
	})
	sunrise := now.Add(time.Second)
	r.cfg.SunTimes = fixedSun{sunrise: sunrise, sunset: now.Add(-time.Hour)}
	r.cfg.ShutdownBeforeSunrise = 300 * time.Millisecond
	deadline := sunrise.Add(-r.cfg.ShutdownBeforeSunrise)

	start := time.Now()
	out := NewController(r.cfg).RunCycle(context.Background())

	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("cycle took %s", elapsed)
	}
	if out.State != Aborted || !errors.Is(out.Err, ErrDaybreak) {
		t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
	}
	assertStates(t, r.sink.states(),
		AwaitingObservationWindow, StartingUp, HealthChecking, Observing, ShuttingDown, Aborted)
	if out.Report == nil || !out.Report.Aborted {
		t.Fatalf("Report = %+v, want partial", out.Report)
	}
	if out.Report.Frames() == 0 {
		t.Error("no frames captured before the deadline")
	}
	for _, tr := range r.sink.transitions {
		if tr.To == ShuttingDown && tr.At.Before(deadline) {
			t.Errorf("shut down at %s, before deadline %s", tr.At, deadline)
		}
	}
	if r.mount.Tracking() {
		t.Error("mount still tracking")
	}
	assertSafe(t, r)
}

func TestRunCycle_WaitsForSunset(t *testing.T) {
	r := newRig(t)
	now := time.Now()
	sunset := now.Add(100 * time.Millisecond)
	r.cfg.SunTimes = fixedSun{sunrise: now.Add(10 * time.Hour), sunset: sunset}
	r.cfg.BlackoutBuffer = 10 * time.Millisecond
	r.cfg.StartOffset = 50 * time.Millisecond

	out := NewController(r.cfg).RunCycle(context.Background())

	if out.State != Completed {
		t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
	}
	for _, tr := range r.sink.transitions {
		if tr.To == StartingUp && tr.At.Before(sunset.Add(r.cfg.StartOffset)) {
			t.Errorf("started up at %s, before sunset+offset %s", tr.At, sunset.Add(r.cfg.StartOffset))
		}
	}
}

func TestRunCycle_CancelDuringSunsetWait(t *testing.T) {
	r := newRig(t)
	now := time.Now()
	r.cfg.SunTimes = fixedSun{sunrise: now.Add(20 * time.Hour), sunset: now.Add(time.Hour)}
	r.cfg.PollInterval = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	out := NewController(r.cfg).RunCycle(ctx)

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("abort took %s", elapsed)
	}
	if out.State != Aborted || !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
	}
	assertStates(t, r.sink.states(), AwaitingObservationWindow, ShuttingDown, Aborted)
	if r.mount.Count("DisableAxis") != 2 {
		t.Error("shutdown did not run after cancellation")
	}
}

func TestRunCycle_SunTimesUnavailable(t *testing.T) {
	r := newRig(t)
	r.cfg.SunTimes = fixedSun{err: observatory.ErrSunTimesUnavailable}

	out := NewController(r.cfg).RunCycle(context.Background())

	if out.State != Aborted || !errors.Is(out.Err, observatory.ErrSunTimesUnavailable) {
		t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
	}
	assertStates(t, r.sink.states(), ShuttingDown, Aborted)
}

func TestRunCycle_StartupFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *rig)
	}{
		{"connect fails", func(r *rig) { r.mount.Fail("Connect", errInjected) }},
		{"never connects", func(r *rig) { r.mount.Fail("IsConnected", errInjected) }},
		{"axis enable fails", func(r *rig) { r.mount.FailTimes("EnableAxis", errInjected, 1) }},
		{"homing fails", func(r *rig) { r.mount.Fail("FindHome", errInjected) }},
		{"shutter jammed", func(r *rig) { r.dome.Jam(true) }},
		{"dome offline", func(r *rig) { r.dome.SetOnline(false) }},
		{"slaving fails", func(r *rig) { r.dome.Fail("SetSlaveMode", errInjected) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			tt.setup(r)

			out := NewController(r.cfg).RunCycle(context.Background())

			if out.State != Aborted || !errors.Is(out.Err, ErrStartup) {
				t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
			}
			assertStates(t, r.sink.states(), AwaitingObservationWindow, StartingUp, ShuttingDown, Aborted)
			if out.Report != nil {
				t.Error("executor ran after failed startup")
			}
			assertSafe(t, r)
		})
	}
}

func TestRunCycle_OpenDomeRetries(t *testing.T) {
	r := newRig(t)
	r.dome.FailTimes("OpenShutter", errInjected, 1)

	out := NewController(r.cfg).RunCycle(context.Background())

	if out.State != Completed {
		t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
	}
	if got := r.dome.Count("OpenShutter"); got != 2 {
		t.Errorf("OpenShutter calls = %d, want 2", got)
	}
}

func TestRunCycle_NotReady(t *testing.T) {
	r := newRig(t)
	r.cfg.Health = healthFunc(func(context.Context) health.Result {
		return health.Result{Attempts: 10, Err: health.ErrHealthCheckExhausted}
	})

	out := NewController(r.cfg).RunCycle(context.Background())

	if out.State != Aborted || !errors.Is(out.Err, ErrNotReady) || !errors.Is(out.Err, health.ErrHealthCheckExhausted) {
		t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
	}
	assertStates(t, r.sink.states(),
		AwaitingObservationWindow, StartingUp, HealthChecking, ShuttingDown, Aborted)
	assertSafe(t, r)
}

func TestRunCycle_BadPlan(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty", "\n\n", ErrEmptyPlan},
		{"malformed", "BEGINLOCAL 2026-10-17 21:00:00\nSTART 2026-10-17 21:05:00\n", plan.ErrParse},
		{"missing", "", os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			if tt.content == "" {
				r.cfg.PlanFile = filepath.Join(t.TempDir(), "absent.txt")
			} else if err := os.WriteFile(r.cfg.PlanFile, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write plan: %v", err)
			}

			out := NewController(r.cfg).RunCycle(context.Background())

			if out.State != Aborted || !errors.Is(out.Err, tt.wantErr) {
				t.Fatalf("Outcome = %s (%v), want error %v", out.State, out.Err, tt.wantErr)
			}
			assertStates(t, r.sink.states(),
				AwaitingObservationWindow, StartingUp, HealthChecking, Observing, ShuttingDown, Aborted)
			assertSafe(t, r)
		})
	}
}

func TestRunCycle_PartialFailuresStillComplete(t *testing.T) {
	r := newRig(t)
	r.cfg.Executor = runnerFunc(func(context.Context, *plan.Plan) *executor.Report {
		return &executor.Report{Entries: []executor.EntryReport{
			{Name: "SAT-A", Err: executor.ErrEntryAborted},
			{Name: "SAT-B", Frames: 4},
		}}
	})

	out := NewController(r.cfg).RunCycle(context.Background())

	if out.State != Completed {
		t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
	}
}

func TestRunCycle_CancelDuringObservation(t *testing.T) {
	r := newRig(t)
	now := time.Now()
	writePlan(t, r.cfg.PlanFile, plan.Entry{
		BeginLocal: now.Truncate(time.Second),
		EndLocal:   now.Add(time.Hour).Truncate(time.Second),
		Name:       "LONG",
		TLELine2:   "1 25544U",
		TLELine3:   "2 25544",
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	out := NewController(r.cfg).RunCycle(ctx)

	if out.State != Aborted || !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
	}
	if out.Report == nil || !out.Report.Aborted {
		t.Errorf("Report = %+v, want partial", out.Report)
	}
	if r.mount.Tracking() {
		t.Error("mount still tracking")
	}
	assertSafe(t, r)
}

func TestController_Abort(t *testing.T) {
	t.Run("no cycle running", func(t *testing.T) {
		c := NewController(newRig(t).cfg)
		if err := c.Abort("test"); !errors.Is(err, ErrNotRunning) {
			t.Errorf("Abort() error = %v, want ErrNotRunning", err)
		}
	})

	t.Run("during observation", func(t *testing.T) {
		r := newRig(t)
		now := time.Now()
		writePlan(t, r.cfg.PlanFile, plan.Entry{
			BeginLocal: now.Truncate(time.Second),
			EndLocal:   now.Add(time.Hour).Truncate(time.Second),
			Name:       "LONG",
			TLELine2:   "1 25544U",
			TLELine3:   "2 25544",
		})
		c := NewController(r.cfg)

		go func() {
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if c.Status().State == Observing {
					if err := c.Abort("clouds"); err != nil {
						t.Errorf("Abort() error = %v", err)
					}
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()

		out := c.RunCycle(context.Background())

		if out.State != Aborted || !errors.Is(out.Err, ErrOperatorAbort) {
			t.Fatalf("Outcome = %s (%v), want Aborted by operator", out.State, out.Err)
		}
		if !strings.Contains(out.Reason, "clouds") {
			t.Errorf("Reason = %q, want the operator's reason", out.Reason)
		}
		assertSafe(t, r)

		if err := c.Abort("again"); !errors.Is(err, ErrNotRunning) {
			t.Errorf("Abort() after finish error = %v, want ErrNotRunning", err)
		}
	})
}

func TestRunCycle_PanicStillShutsDown(t *testing.T) {
	r := newRig(t)
	r.cfg.Executor = runnerFunc(func(context.Context, *plan.Plan) *executor.Report {
		panic("driver exploded")
	})

	out := NewController(r.cfg).RunCycle(context.Background())

	if out.State != Aborted || !errors.Is(out.Err, ErrPanic) {
		t.Fatalf("Outcome = %s (%v)", out.State, out.Err)
	}
	assertStates(t, r.sink.states(),
		AwaitingObservationWindow, StartingUp, HealthChecking, Observing, ShuttingDown, Aborted)
	assertSafe(t, r)
}

func TestInBlackout(t *testing.T) {
	sunrise := time.Date(2026, 10, 17, 7, 5, 0, 0, time.UTC)
	sunset := time.Date(2026, 10, 17, 18, 20, 0, 0, time.UTC)
	buffer := 10 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"afternoon", sunset.Add(-time.Hour), false},
		{"buffer start before sunset", sunset.Add(-buffer), true},
		{"at sunset", sunset, true},
		{"just after sunset", sunset.Add(time.Second), false},
		{"night", sunset.Add(4 * time.Hour), false},
		{"before dawn", sunrise.Add(-time.Hour), false},
		{"just before sunrise", sunrise.Add(-time.Second), false},
		{"at sunrise", sunrise, true},
		{"buffer end after sunrise", sunrise.Add(buffer), true},
		{"morning", sunrise.Add(buffer + time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inBlackout(tt.now, sunrise, sunset, buffer); got != tt.want {
				t.Errorf("inBlackout(%s) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := MultiSink{a, b}

	m.StateChanged(Transition{To: StartingUp})
	m.CycleFinished(Outcome{State: Completed})

	for i, s := range []*recordingSink{a, b} {
		if len(s.transitions) != 1 || len(s.outcomes) != 1 {
			t.Errorf("sink %d got %d transitions, %d outcomes", i, len(s.transitions), len(s.outcomes))
		}
	}
}
