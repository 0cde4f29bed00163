package journal

import (
	"context"
	"time"

	"github.com/nerrad567/nightwatch/internal/daycycle"
)

// DefaultWriteTimeout bounds each journal write made by Sink.
const DefaultWriteTimeout = 5 * time.Second

// Logger defines the logging interface for Sink.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Sink journals cycle events through a Repository.
type Sink struct {
	repo    Repository
	timeout time.Duration
	logger  Logger
}

var _ daycycle.EventSink = (*Sink)(nil)

// NewSink creates a sink writing to repo.
func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo, timeout: DefaultWriteTimeout, logger: noopLogger{}}
}

// SetLogger sets the logger for the sink.
func (s *Sink) SetLogger(logger Logger) {
	s.logger = logger
}

// StateChanged implements daycycle.EventSink.
func (s *Sink) StateChanged(t daycycle.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.repo.RecordTransition(ctx, t); err != nil {
		s.logger.Warn("journaling transition failed",
			"cycle_id", t.CycleID, "to", t.To.String(), "error", err)
	}
}

// CycleFinished implements daycycle.EventSink.
func (s *Sink) CycleFinished(o daycycle.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.repo.RecordOutcome(ctx, o); err != nil {
		s.logger.Warn("journaling outcome failed", "cycle_id", o.CycleID, "error", err)
	}
}
