package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// DefaultTimeout bounds a whole shutdown run.
const DefaultTimeout = 2 * time.Minute

// Logger defines the logging interface for the sequencer.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the sequencer settings.
type Config struct {
	// Session provides the device handles and the dome-open flag.
	Session *observatory.Session

	// DisableCooler turns the camera cooler off as the last step.
	DisableCooler bool

	// Timeout bounds a shutdown run independently of the caller's context.
	// Default: 2m
	Timeout time.Duration
}

// Summary reports what a shutdown run did. Failures is informational.
type Summary struct {
	AxesDisabled  bool
	ShutterClosed bool
	CommandsSent  int
	Failures      []error
}

// Sequencer runs the fail-safe shutdown.
//
// Thread Safety: concurrent calls are serialised.
type Sequencer struct {
	cfg    Config
	logger Logger
	mu     sync.Mutex
}

// NewSequencer creates a sequencer for the session.
func NewSequencer(cfg Config) *Sequencer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Sequencer{cfg: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the sequencer.
func (s *Sequencer) SetLogger(logger Logger) {
	s.logger = logger
}

// Shutdown disables the mount axes, closes the shutter if it is open and
// optionally turns the camera cooler off.
//
// It runs on a context detached from ctx's cancellation and bounded by the
// configured timeout, so it still acts when called because ctx was
// cancelled. It never panics and never fails; problems are logged and
// listed in the Summary. Calling it again is safe: the shutter state is
// re-read live, so an already closed shutter gets no second close command.
func (s *Sequencer) Shutdown(ctx context.Context) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer cancel()

	var sum Summary
	if s.cfg.Session == nil {
		s.logger.Warn("shutdown with no session, nothing to do")
		return sum
	}

	s.logger.Info("shutdown sequence started")
	s.disableAxes(runCtx, &sum)
	s.closeShutter(runCtx, &sum)
	s.stopCooler(runCtx, &sum)

	if len(sum.Failures) > 0 {
		s.logger.Error("shutdown sequence finished with failures", "failures", len(sum.Failures))
	} else {
		s.logger.Info("shutdown sequence finished", "commands", sum.CommandsSent)
	}
	return sum
}

// step runs fn, converting errors and panics into recorded failures.
func (s *Sequencer) step(sum *Summary, name string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %s: panic: %v", ErrShutdownStep, name, r)
			s.logger.Error("shutdown step panicked", "step", name, "panic", r)
			sum.Failures = append(sum.Failures, err)
			ok = false
		}
	}()

	if err := fn(); err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrShutdownStep, name, err)
		s.logger.Error("shutdown step failed", "step", name, "error", err)
		sum.Failures = append(sum.Failures, err)
		return false
	}
	return true
}

func (s *Sequencer) disableAxes(ctx context.Context, sum *Summary) {
	mount := s.cfg.Session.Mount()
	if mount == nil {
		return
	}

	all := true
	for _, axis := range observatory.Axes {
		ok := s.step(sum, fmt.Sprintf("disable axis %d", axis), func() error {
			sum.CommandsSent++
			return mount.DisableAxis(ctx, axis)
		})
		all = all && ok
	}
	sum.AxesDisabled = all
}

func (s *Sequencer) closeShutter(ctx context.Context, sum *Summary) {
	dome := s.cfg.Session.Dome()
	if dome == nil {
		return
	}

	var open bool
	known := s.step(sum, "read shutter state", func() error {
		var err error
		open, err = dome.IsShutterOpen(ctx)
		return err
	})

	switch {
	case known && !open:
		s.cfg.Session.SetDomeOpen(false)
		sum.ShutterClosed = true
		return
	case !known:
		// State unknown: close regardless of the cached flag.
		s.logger.Warn("shutter state unknown, closing anyway", "cached_open", s.cfg.Session.DomeOpen())
	}

	ok := s.step(sum, "close shutter", func() error {
		sum.CommandsSent++
		return dome.CloseShutter(ctx)
	})
	if !ok {
		return
	}
	s.cfg.Session.SetDomeOpen(false)

	s.step(sum, "verify shutter closed", func() error {
		stillOpen, err := dome.IsShutterOpen(ctx)
		if err != nil {
			return err
		}
		if stillOpen {
			return fmt.Errorf("shutter still open after close command")
		}
		sum.ShutterClosed = true
		return nil
	})
}

func (s *Sequencer) stopCooler(ctx context.Context, sum *Summary) {
	camera := s.cfg.Session.Camera()
	if !s.cfg.DisableCooler || camera == nil {
		return
	}
	s.step(sum, "disable camera cooler", func() error {
		sum.CommandsSent++
		return camera.SetCoolerEnabled(ctx, false)
	})
}
