// Package reporting forwards observatory activity to the outside world.
//
// Every reporter implements the same four callbacks (cycle transitions,
// cycle outcome, frames and entry results, health-check attempts):
//
//   - MQTTPublisher publishes the retained cycle state and core events
//   - InfluxRecorder writes time-series points
//   - Fanout delivers each callback to several reporters in order
//
// Reporters never return errors to the caller; delivery problems are
// logged and the cycle carries on.
package reporting

import (
	"github.com/nerrad567/nightwatch/internal/daycycle"
	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/health"
)

// Reporter receives every kind of observatory event.
type Reporter interface {
	daycycle.EventSink
	executor.Recorder
	health.Recorder
}

// Logger defines the logging interface for reporters.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}
