package health

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// Defaults applied to zero Config fields.
const (
	DefaultMaxAttempts = 10
	DefaultInterval    = 30 * time.Second
)

// SystemStatus is one snapshot of device readiness. It is never persisted.
type SystemStatus struct {
	MountConnected bool `json:"mount_connected"`

	// DomeOperational means the dome is online and not busy.
	DomeOperational bool      `json:"dome_operational"`
	CheckedAt       time.Time `json:"checked_at"`
}

// Ready reports whether both subsystems were ready in this snapshot.
func (s SystemStatus) Ready() bool {
	return s.MountConnected && s.DomeOperational
}

// Result is the outcome of Check.
type Result struct {
	// Status is the snapshot from the last attempt made.
	Status   SystemStatus
	Ready    bool
	Attempts int

	// Err wraps ErrHealthCheckExhausted, or is the context error when the
	// check was cancelled. Nil when Ready.
	Err error
}

// Recorder receives every attempt, e.g. for time-series storage.
type Recorder interface {
	RecordHealthCheck(attempt int, status SystemStatus)
}

// Logger defines the logging interface for the monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Config holds the monitor's devices and retry policy.
type Config struct {
	Mount observatory.MountController
	Dome  observatory.DomeController

	// MaxAttempts bounds the number of polls.
	// Default: 10
	MaxAttempts int

	// Interval is the pause between attempts (not after the last one).
	// Default: 30s
	Interval time.Duration

	// Recorder is optional.
	Recorder Recorder
}

// Monitor performs the bounded readiness check.
type Monitor struct {
	cfg    Config
	logger Logger
	now    func() time.Time
}

// NewMonitor creates a monitor, applying defaults to zero fields.
func NewMonitor(cfg Config) *Monitor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Monitor{cfg: cfg, logger: noopLogger{}, now: time.Now}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// Check polls until both mount and dome are ready on the same attempt or
// the attempts run out.
//
// Parameters:
//   - ctx: Cancels the wait between attempts
//
// Returns:
//   - Result: Ready with the attempt count, or not ready with Err set
func (m *Monitor) Check(ctx context.Context) Result {
	var status SystemStatus

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		status = m.poll(ctx)
		if m.cfg.Recorder != nil {
			m.cfg.Recorder.RecordHealthCheck(attempt, status)
		}

		if status.Ready() {
			m.logger.Info("observatory ready", "attempt", attempt)
			return Result{Status: status, Ready: true, Attempts: attempt}
		}

		m.logger.Info("observatory not ready",
			"attempt", attempt,
			"max_attempts", m.cfg.MaxAttempts,
			"mount_connected", status.MountConnected,
			"dome_operational", status.DomeOperational,
		)

		if attempt == m.cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(m.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Status: status, Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	return Result{
		Status:   status,
		Attempts: m.cfg.MaxAttempts,
		Err:      fmt.Errorf("%w after %d attempts", ErrHealthCheckExhausted, m.cfg.MaxAttempts),
	}
}

// poll queries both devices once. Query errors read as "not ready".
func (m *Monitor) poll(ctx context.Context) SystemStatus {
	status := SystemStatus{CheckedAt: m.now()}

	if m.cfg.Mount != nil {
		connected, err := m.cfg.Mount.IsConnected(ctx)
		if err != nil {
			m.logger.Warn("mount status query failed", "error", err)
		}
		status.MountConnected = err == nil && connected
	}

	if m.cfg.Dome != nil {
		online, err := m.cfg.Dome.IsOnline(ctx)
		if err != nil {
			m.logger.Warn("dome online query failed", "error", err)
		}
		busy, busyErr := m.cfg.Dome.IsBusy(ctx)
		if busyErr != nil {
			m.logger.Warn("dome busy query failed", "error", busyErr)
		}
		status.DomeOperational = err == nil && busyErr == nil && online && !busy
	}

	return status
}
