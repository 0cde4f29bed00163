package daycycle

import (
	"time"

	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/shutdown"
)

// Transition is one state change of a cycle.
type Transition struct {
	CycleID string    `json:"cycle_id"`
	From    State     `json:"from"`
	To      State     `json:"to"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Outcome is the result of RunCycle.
type Outcome struct {
	CycleID string `json:"cycle_id"`

	// State is Aborted or Completed.
	State  State  `json:"state"`
	Reason string `json:"reason"`

	// Err is the cause of an Aborted outcome.
	Err error `json:"-"`

	// Report is nil when the cycle never reached Observing.
	Report *executor.Report `json:"report,omitempty"`

	Shutdown   shutdown.Summary `json:"-"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// EventSink receives cycle events. Calls are made synchronously from the
// cycle goroutine and must return promptly.
type EventSink interface {
	StateChanged(t Transition)
	CycleFinished(o Outcome)
}

// MultiSink fans events out to every sink in order.
type MultiSink []EventSink

func (m MultiSink) StateChanged(t Transition) {
	for _, s := range m {
		s.StateChanged(t)
	}
}

func (m MultiSink) CycleFinished(o Outcome) {
	for _, s := range m {
		s.CycleFinished(o)
	}
}

type noopSink struct{}

func (noopSink) StateChanged(Transition) {}
func (noopSink) CycleFinished(Outcome)   {}
