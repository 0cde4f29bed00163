package daycycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/health"
	"github.com/nerrad567/nightwatch/internal/observatory"
	"github.com/nerrad567/nightwatch/internal/plan"
	"github.com/nerrad567/nightwatch/internal/shutdown"
)

// Defaults applied to zero Config fields.
const (
	DefaultBlackoutBuffer        = 10 * time.Minute
	DefaultStartOffset           = 10 * time.Minute
	DefaultShutdownBeforeSunrise = 8 * time.Minute
	DefaultReadyTimeout          = time.Minute
	DefaultHomeTimeout           = 5 * time.Minute
	DefaultDomeOpenAttempts      = 5
	DefaultDomeSettle            = 5 * time.Second
	DefaultPollInterval          = time.Second
)

// HealthChecker runs the pre-observation readiness check.
type HealthChecker interface {
	Check(ctx context.Context) health.Result
}

// PlanRunner executes a plan.
type PlanRunner interface {
	Run(ctx context.Context, p *plan.Plan) *executor.Report
}

// Shutdowner puts the observatory into its safe state.
type Shutdowner interface {
	Shutdown(ctx context.Context) shutdown.Summary
}

// Logger defines the logging interface for the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the controller's collaborators and timing rules.
type Config struct {
	Session  *observatory.Session
	SunTimes observatory.SunTimesProvider
	Health   HealthChecker
	Executor PlanRunner
	Shutdown Shutdowner

	// Sink is optional.
	Sink EventSink

	// PlanFile is read when the cycle reaches Observing, so the planning
	// stage may rewrite it up to that moment.
	PlanFile string

	// Location is the site time zone for sun dates and plan timestamps.
	// Default: time.Local
	Location  *time.Location
	Latitude  float64
	Longitude float64

	// BlackoutBuffer is the no-start window after sunrise and before sunset.
	// Default: 10m
	BlackoutBuffer time.Duration

	// StartOffset is how long after sunset startup begins.
	// Default: 10m
	StartOffset time.Duration

	// ShutdownBeforeSunrise is how long before the next sunrise a running
	// cycle is cut short and shut down.
	// Default: 8m
	ShutdownBeforeSunrise time.Duration

	// ReadyTimeout bounds the wait for the mount to connect and for the
	// dome to go idle.
	// Default: 1m
	ReadyTimeout time.Duration

	// HomeTimeout bounds FindHome.
	// Default: 5m
	HomeTimeout time.Duration

	// DomeOpenAttempts limits shutter open retries.
	// Default: 5
	DomeOpenAttempts int

	// DomeSettle is the pause after a shutter command before its state is
	// read back.
	// Default: 5s
	DomeSettle time.Duration

	// PollInterval paces device status polls and bounds the sunset wait's
	// cancellation latency.
	// Default: 1s
	PollInterval time.Duration
}

// Status is a point-in-time view of the controller for status surfaces.
type Status struct {
	CycleID string    `json:"cycle_id,omitempty"`
	State   State     `json:"state"`
	Reason  string    `json:"reason,omitempty"`
	Since   time.Time `json:"since"`

	// Last is the outcome of the most recent finished cycle.
	Last *Outcome `json:"last,omitempty"`
}

// Controller drives the day-cycle state machine.
//
// Thread Safety: RunCycle must not be called concurrently with itself.
// Status and Abort are safe to call from any goroutine.
type Controller struct {
	cfg    Config
	logger Logger
	now    func() time.Time

	mu     sync.RWMutex
	status Status
	abort  context.CancelCauseFunc
}

// NewController creates a controller, applying defaults to zero fields.
func NewController(cfg Config) *Controller {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.BlackoutBuffer <= 0 {
		cfg.BlackoutBuffer = DefaultBlackoutBuffer
	}
	if cfg.StartOffset <= 0 {
		cfg.StartOffset = DefaultStartOffset
	}
	if cfg.ShutdownBeforeSunrise <= 0 {
		cfg.ShutdownBeforeSunrise = DefaultShutdownBeforeSunrise
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.HomeTimeout <= 0 {
		cfg.HomeTimeout = DefaultHomeTimeout
	}
	if cfg.DomeOpenAttempts <= 0 {
		cfg.DomeOpenAttempts = DefaultDomeOpenAttempts
	}
	if cfg.DomeSettle <= 0 {
		cfg.DomeSettle = DefaultDomeSettle
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Sink == nil {
		cfg.Sink = noopSink{}
	}
	c := &Controller{cfg: cfg, logger: noopLogger{}, now: time.Now}
	c.status = Status{State: Idle, Since: c.now()}
	return c
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// RunCycle runs one full cycle and returns its outcome.
//
// Every path, including cancellation of ctx and a panicking step, passes
// through ShuttingDown and runs the shutdown sequence before the terminal
// state is entered.
//
// Parameters:
//   - ctx: Cancelling it aborts the cycle (operator abort)
//
// Returns:
//   - Outcome: State is Aborted or Completed
func (c *Controller) RunCycle(ctx context.Context) Outcome {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	out := Outcome{CycleID: uuid.NewString(), StartedAt: c.now()}
	c.begin(out.CycleID, cancel)
	c.logger.Info("cycle started", "cycle_id", out.CycleID)

	report, err := c.runGuarded(ctx)
	out.Report = report
	out.State, out.Reason, out.Err = c.conclude(ctx, report, err)

	c.transition(ShuttingDown, out.Reason)
	if c.cfg.Shutdown != nil {
		out.Shutdown = c.cfg.Shutdown.Shutdown(ctx)
	} else {
		c.logger.Error("no shutdown sequencer configured", "cycle_id", out.CycleID)
	}
	c.transition(out.State, out.Reason)

	out.FinishedAt = c.now()
	c.finish(out)
	c.cfg.Sink.CycleFinished(out)

	if out.State == Completed {
		c.logger.Info("cycle completed", "cycle_id", out.CycleID, "reason", out.Reason)
	} else {
		c.logger.Warn("cycle aborted", "cycle_id", out.CycleID, "reason", out.Reason)
	}
	return out
}

// Abort cancels the running cycle, which then shuts down and ends Aborted.
// Aborting during ShuttingDown has no effect on the shutdown sequence.
//
// Returns:
//   - error: ErrNotRunning if no cycle is active
func (c *Controller) Abort(reason string) error {
	c.mu.RLock()
	abort, state := c.abort, c.status.State
	c.mu.RUnlock()

	if abort == nil || state.IsTerminal() {
		return ErrNotRunning
	}
	c.logger.Warn("operator abort requested", "state", state, "reason", reason)
	if reason == "" {
		abort(ErrOperatorAbort)
	} else {
		abort(fmt.Errorf("%w: %s", ErrOperatorAbort, reason))
	}
	return nil
}

// runGuarded runs the pre-shutdown states, turning a panic into an error.
func (c *Controller) runGuarded(ctx context.Context) (report *executor.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cycle step panicked", "state", c.Status().State, "panic", r)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return c.run(ctx)
}

// run walks Idle through Observing. A nil error means the plan was handed
// to the executor.
//
// Everything after the blackout check runs under a deadline of
// ShutdownBeforeSunrise ahead of the next sunrise; reaching it ends the
// cycle with an ErrDaybreak cause.
func (c *Controller) run(ctx context.Context) (*executor.Report, error) {
	sun, err := c.sunTimes(ctx)
	if err != nil {
		return nil, err
	}
	c.transition(AwaitingObservationWindow, fmt.Sprintf("sunset %s, sunrise %s",
		sun.sunset.Format(time.DateTime), sun.nextSunrise.Format(time.DateTime)))

	now := c.now()
	if inBlackout(now, sun.sunrise, sun.sunset, c.cfg.BlackoutBuffer) {
		return nil, fmt.Errorf("%w: now %s, buffer %s", ErrBlackout, now.Format(time.DateTime), c.cfg.BlackoutBuffer)
	}

	dawn := sun.nextSunrise.Add(-c.cfg.ShutdownBeforeSunrise)
	nightCtx, cancel := context.WithDeadlineCause(ctx, dawn,
		fmt.Errorf("%w: deadline %s", ErrDaybreak, dawn.Format(time.DateTime)))
	defer cancel()

	report, err := c.night(nightCtx, sun.sunset)
	if ctx.Err() == nil && nightCtx.Err() != nil && (err != nil || (report != nil && report.Aborted)) {
		c.logger.Warn("pre-sunrise shutdown", "deadline", dawn, "sunrise", sun.nextSunrise)
		return report, context.Cause(nightCtx)
	}
	return report, err
}

// night waits for dark, then starts up, checks health and observes.
func (c *Controller) night(ctx context.Context, sunset time.Time) (*executor.Report, error) {
	if now := c.now(); now.Before(sunset) {
		start := sunset.Add(c.cfg.StartOffset)
		c.logger.Info("waiting for dark", "start_at", start, "in", start.Sub(now).Round(time.Second))
		if err := c.sleepUntil(ctx, start); err != nil {
			return nil, err
		}
	}

	c.transition(StartingUp, "")
	if err := c.startUp(ctx); err != nil {
		return nil, err
	}

	c.transition(HealthChecking, "")
	if res := c.cfg.Health.Check(ctx); !res.Ready {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrNotReady, res.Attempts, res.Err)
	}

	c.transition(Observing, "")
	p, err := plan.Load(c.cfg.PlanFile, c.cfg.Location)
	if err != nil {
		return nil, err
	}
	if p.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPlan, c.cfg.PlanFile)
	}
	c.logger.Info("plan loaded", "file", c.cfg.PlanFile, "entries", p.Len())

	return c.cfg.Executor.Run(ctx, p), nil
}

// conclude picks the terminal state. A run cut short by cancellation is
// Aborted; a finished run is Completed even if some entries failed.
func (c *Controller) conclude(ctx context.Context, report *executor.Report, err error) (State, string, error) {
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = context.Cause(ctx)
	}
	if err != nil {
		return Aborted, err.Error(), err
	}
	if report.Aborted {
		cause := context.Cause(ctx)
		if cause == nil {
			cause = errors.New("executor stopped early")
		}
		return Aborted, fmt.Sprintf("observation interrupted: %v", cause), cause
	}
	return Completed, fmt.Sprintf("plan executed: %d of %d entries completed, %d frames",
		report.Completed(), len(report.Entries), report.Frames()), nil
}

// sunSchedule is the night's sun times in the site zone.
type sunSchedule struct {
	sunrise     time.Time // today
	sunset      time.Time // today
	nextSunrise time.Time // tomorrow
}

// sunTimes looks up today's sunrise and sunset and tomorrow's sunrise.
func (c *Controller) sunTimes(ctx context.Context) (sunSchedule, error) {
	if c.cfg.SunTimes == nil {
		return sunSchedule{}, observatory.ErrSunTimesUnavailable
	}
	today := c.now().In(c.cfg.Location)
	tomorrow := today.AddDate(0, 0, 1)

	sunrise, sunset, err := c.cfg.SunTimes.SunTimes(ctx, today, c.cfg.Latitude, c.cfg.Longitude)
	if err != nil {
		return sunSchedule{}, fmt.Errorf("sun times for %s: %w", today.Format(time.DateOnly), err)
	}
	next, _, err := c.cfg.SunTimes.SunTimes(ctx, tomorrow, c.cfg.Latitude, c.cfg.Longitude)
	if err != nil {
		return sunSchedule{}, fmt.Errorf("sunrise for %s: %w", tomorrow.Format(time.DateOnly), err)
	}
	return sunSchedule{
		sunrise:     sunrise.In(c.cfg.Location),
		sunset:      sunset.In(c.cfg.Location),
		nextSunrise: next.In(c.cfg.Location),
	}, nil
}

// inBlackout reports whether now lies in [sunrise, sunrise+buffer] or
// [sunset-buffer, sunset] of the same day.
func inBlackout(now, sunrise, sunset time.Time, buffer time.Duration) bool {
	within := func(from, to time.Time) bool {
		return !now.Before(from) && !now.After(to)
	}
	return within(sunrise, sunrise.Add(buffer)) || within(sunset.Add(-buffer), sunset)
}

// sleepUntil waits until t in slices of at most PollInterval.
func (c *Controller) sleepUntil(ctx context.Context, t time.Time) error {
	for {
		remaining := t.Sub(c.now())
		if remaining <= 0 {
			return nil
		}
		if err := sleep(ctx, min(remaining, c.cfg.PollInterval)); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Controller) begin(cycleID string, abort context.CancelCauseFunc) {
	c.mu.Lock()
	c.status = Status{CycleID: cycleID, State: Idle, Since: c.now(), Last: c.status.Last}
	c.abort = abort
	c.mu.Unlock()
}

func (c *Controller) finish(out Outcome) {
	c.mu.Lock()
	c.status.Last = &out
	c.abort = nil
	c.mu.Unlock()
}

// transition moves to state to and notifies the sink. Illegal moves are
// logged and still applied so the cycle can always reach ShuttingDown.
func (c *Controller) transition(to State, reason string) {
	c.mu.Lock()
	from := c.status.State
	t := Transition{CycleID: c.status.CycleID, From: from, To: to, Reason: reason, At: c.now()}
	c.status.State = to
	c.status.Reason = reason
	c.status.Since = t.At
	c.mu.Unlock()

	if !from.CanTransition(to) {
		c.logger.Error("illegal cycle transition", "from", from, "to", to)
	}
	c.logger.Info("cycle state changed", "cycle_id", t.CycleID, "from", from, "to", to, "reason", reason)
	c.cfg.Sink.StateChanged(t)
}
