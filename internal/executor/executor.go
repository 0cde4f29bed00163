package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nerrad567/nightwatch/internal/observatory"
	"github.com/nerrad567/nightwatch/internal/plan"
)

// Defaults applied to zero Config fields.
const (
	DefaultExposureSeconds   = 1.0
	DefaultPollInterval      = time.Second
	DefaultReadyPollInterval = 100 * time.Millisecond
	DefaultReadyTimeout      = 30 * time.Second
	DefaultStopTimeout       = 30 * time.Second
)

const dirPermissions = 0o750

// Recorder receives frames and finished entries as they happen.
type Recorder interface {
	RecordFrame(f Frame)
	RecordEntry(r EntryReport)
}

// Logger defines the logging interface for the executor.
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

// Config holds the executor settings.
type Config struct {
	// Session provides the mount and camera. Both must be attached.
	Session *observatory.Session

	// OutputDir is where per-entry directories are created.
	OutputDir string

	// ExposureSeconds is the length of every exposure.
	// Default: 1
	ExposureSeconds float64

	// PollInterval is the longest single sleep while waiting for a window
	// to open.
	// Default: 1s
	PollInterval time.Duration

	// ReadyPollInterval is the pause between IsImageReady polls.
	// Default: 100ms
	ReadyPollInterval time.Duration

	// ReadyTimeout bounds the wait for one exposure. Running out counts
	// as a frame failure.
	// Default: 30s
	ReadyTimeout time.Duration

	// StopTimeout bounds the mount stop sent after cancellation.
	// Default: 30s
	StopTimeout time.Duration

	// Recorder is optional.
	Recorder Recorder
}

// Executor runs plans against the session's mount and camera.
//
// Thread Safety: Run is not meant to be called concurrently; device access
// is serialised by the session either way.
type Executor struct {
	cfg    Config
	logger Logger
	now    func() time.Time
}

// New creates an executor, applying defaults to zero fields.
func New(cfg Config) *Executor {
	if cfg.ExposureSeconds <= 0 {
		cfg.ExposureSeconds = DefaultExposureSeconds
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReadyPollInterval <= 0 {
		cfg.ReadyPollInterval = DefaultReadyPollInterval
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Executor{cfg: cfg, logger: noopLogger{}, now: time.Now}
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// Run executes the plan's entries strictly in order and returns what
// happened.
//
// An entry whose window has already closed is recorded as Skipped without
// touching the hardware. Cancelling ctx while waiting for a window or while
// capturing stops the mount and ends the run; the returned report is then
// partial and has Aborted set.
//
// Parameters:
//   - ctx: Cancels the run
//   - p: Plan to execute; nil or empty yields an empty report
//
// Returns:
//   - *Report: Never nil
func (e *Executor) Run(ctx context.Context, p *plan.Plan) *Report {
	rep := &Report{StartedAt: e.now()}
	defer func() { rep.FinishedAt = e.now() }()

	if p.IsEmpty() {
		e.logger.Info("plan has no entries")
		return rep
	}

	mount, camera := e.devices()
	if mount == nil || camera == nil {
		e.logger.Error("mount or camera not attached, nothing executed")
		for _, entry := range p.Entries {
			rep.Entries = append(rep.Entries, e.newEntryReport(entry, observatory.ErrNoHandle))
		}
		rep.Aborted = true
		return rep
	}

	e.logger.Info("executing plan", "entries", p.Len())

	for i, entry := range p.Entries {
		er, err := e.runEntry(ctx, mount, camera, entry)
		rep.Entries = append(rep.Entries, er)
		if e.cfg.Recorder != nil {
			e.cfg.Recorder.RecordEntry(er)
		}
		if err != nil {
			e.logger.Warn("plan execution aborted",
				"entry", entry.Name,
				"remaining", p.Len()-i-1,
				"error", err,
			)
			rep.Aborted = true
			return rep
		}
	}

	e.logger.Info("plan executed",
		"entries", len(rep.Entries),
		"completed", rep.Completed(),
		"frames", rep.Frames(),
	)
	return rep
}

func (e *Executor) devices() (observatory.MountController, observatory.CameraController) {
	if e.cfg.Session == nil {
		return nil, nil
	}
	return e.cfg.Session.Mount(), e.cfg.Session.Camera()
}

func (e *Executor) newEntryReport(entry plan.Entry, err error) EntryReport {
	return EntryReport{Name: entry.Name, Begin: entry.BeginLocal, End: entry.EndLocal, Err: err}
}

// runEntry handles one entry. A non-nil error means the whole run must end;
// entry-level failures are reported in the EntryReport only.
func (e *Executor) runEntry(
	ctx context.Context,
	mount observatory.MountController,
	camera observatory.CameraController,
	entry plan.Entry,
) (EntryReport, error) {
	er := e.newEntryReport(entry, nil)

	if !e.now().Before(entry.EndLocal) {
		e.logger.Info("window already closed, skipping", "entry", entry.Name, "end", entry.EndLocal)
		er.Skipped = true
		return er, nil
	}

	if err := e.waitUntil(ctx, entry); err != nil {
		er.Err = fmt.Errorf("%w: waiting for %s: %w", ErrRunAborted, entry.Name, err)
		return er, err
	}

	l1, l2, l3 := entry.Elements()
	e.logger.Info("following target", "entry", entry.Name)
	ack, err := mount.FollowElements(ctx, l1, l2, l3)
	if err != nil {
		return e.abortEntry(ctx, mount, er, fmt.Errorf("following %s: %w", entry.Name, err))
	}
	e.logger.Debug("follow acknowledged", "entry", entry.Name, "response", ack)

	dir := filepath.Join(e.cfg.OutputDir, DirName(e.now(), entry.Name))
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return e.abortEntry(ctx, mount, er, fmt.Errorf("creating %s: %w", dir, err))
	}
	er.Directory = dir
	e.logger.Debug("created frame directory", "entry", entry.Name, "directory", dir)

	return e.capture(ctx, mount, camera, entry, er)
}

// capture exposes and saves frames until the entry's window closes.
func (e *Executor) capture(
	ctx context.Context,
	mount observatory.MountController,
	camera observatory.CameraController,
	entry plan.Entry,
	er EntryReport,
) (EntryReport, error) {
	seq := 1
	for e.now().Before(entry.EndLocal) {
		if err := ctx.Err(); err != nil {
			return e.abortRun(ctx, mount, er, err)
		}

		if err := camera.Expose(ctx, e.cfg.ExposureSeconds); err != nil {
			if ctx.Err() != nil {
				return e.abortRun(ctx, mount, er, ctx.Err())
			}
			er.FrameFailures++
			e.logger.Warn("exposure failed", "entry", entry.Name, "sequence", seq, "error", err)
			if err := sleep(ctx, e.cfg.ReadyPollInterval); err != nil {
				return e.abortRun(ctx, mount, er, err)
			}
			continue
		}

		if err := e.awaitImage(ctx, camera); err != nil {
			if ctx.Err() != nil {
				return e.abortRun(ctx, mount, er, ctx.Err())
			}
			er.FrameFailures++
			e.logger.Warn("frame not ready", "entry", entry.Name, "sequence", seq, "error", err)
			if err := sleep(ctx, e.cfg.ReadyPollInterval); err != nil {
				return e.abortRun(ctx, mount, er, err)
			}
			continue
		}

		tel, err := mount.Telemetry(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return e.abortRun(ctx, mount, er, ctx.Err())
			}
			return e.abortEntry(ctx, mount, er, fmt.Errorf("reading telemetry: %w", err))
		}

		path := filepath.Join(er.Directory, FrameName(seq, tel))
		if err := camera.SaveImage(ctx, path); err != nil {
			if ctx.Err() != nil {
				return e.abortRun(ctx, mount, er, ctx.Err())
			}
			er.FrameFailures++
			e.logger.Warn("saving frame failed", "entry", entry.Name, "path", path, "error", err)
			continue
		}

		er.Frames++
		e.logger.Debug("frame saved",
			"entry", entry.Name,
			"path", path,
			"remaining", entry.EndLocal.Sub(e.now()).Round(time.Second),
		)
		if e.cfg.Recorder != nil {
			e.cfg.Recorder.RecordFrame(Frame{
				Target:    entry.Name,
				Sequence:  seq,
				Path:      path,
				Telemetry: tel,
				SavedAt:   e.now(),
			})
		}
		seq++
	}

	e.logger.Info("window closed", "entry", entry.Name, "frames", er.Frames, "failures", er.FrameFailures)
	if err := mount.Stop(ctx); err != nil {
		e.logger.Warn("stopping mount failed", "entry", entry.Name, "error", err)
		er.Err = fmt.Errorf("%w: stopping mount: %w", ErrEntryAborted, err)
	}
	return er, nil
}

// waitUntil blocks until the entry's window opens.
func (e *Executor) waitUntil(ctx context.Context, entry plan.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	remaining := entry.BeginLocal.Sub(e.now())
	if remaining <= 0 {
		return nil
	}
	e.logger.Info("waiting for window", "entry", entry.Name, "begin", entry.BeginLocal, "in", remaining.Round(time.Second))

	for remaining > 0 {
		if err := sleep(ctx, min(remaining, e.cfg.PollInterval)); err != nil {
			return err
		}
		remaining = entry.BeginLocal.Sub(e.now())
	}
	return nil
}

// awaitImage polls the camera until the current exposure is ready or
// ReadyTimeout passes.
func (e *Executor) awaitImage(ctx context.Context, camera observatory.CameraController) error {
	deadline := e.now().Add(e.cfg.ReadyTimeout)
	for {
		ready, err := camera.IsImageReady(ctx)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if !e.now().Before(deadline) {
			return fmt.Errorf("image not ready after %s", e.cfg.ReadyTimeout)
		}
		if err := sleep(ctx, e.cfg.ReadyPollInterval); err != nil {
			return err
		}
	}
}

// abortEntry stops the mount and records err on the entry; the run goes on.
func (e *Executor) abortEntry(
	ctx context.Context,
	mount observatory.MountController,
	er EntryReport,
	err error,
) (EntryReport, error) {
	e.logger.Error("entry aborted", "entry", er.Name, "error", err)
	er.Err = fmt.Errorf("%w: %w", ErrEntryAborted, err)
	if stopErr := mount.Stop(ctx); stopErr != nil {
		e.logger.Warn("stopping mount failed", "entry", er.Name, "error", stopErr)
	}
	return er, nil
}

// abortRun stops the mount on a context detached from the cancelled one
// and ends the run.
func (e *Executor) abortRun(
	ctx context.Context,
	mount observatory.MountController,
	er EntryReport,
	cause error,
) (EntryReport, error) {
	er.Err = fmt.Errorf("%w: capturing %s: %w", ErrRunAborted, er.Name, cause)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.StopTimeout)
	defer cancel()
	if err := mount.Stop(stopCtx); err != nil {
		e.logger.Warn("stopping mount after abort failed", "entry", er.Name, "error", err)
	}
	return er, cause
}

// sleep waits for d or until ctx is done.
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

