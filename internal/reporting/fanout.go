package reporting

import (
	"github.com/nerrad567/nightwatch/internal/daycycle"
	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/health"
)

// Fanout delivers every event to each reporter in order. Nil entries are
// skipped so optional reporters can be listed unconditionally.
type Fanout []Reporter

var _ Reporter = Fanout(nil)

func (f Fanout) each(fn func(Reporter)) {
	for _, r := range f {
		if r != nil {
			fn(r)
		}
	}
}

func (f Fanout) StateChanged(t daycycle.Transition) {
	f.each(func(r Reporter) { r.StateChanged(t) })
}

func (f Fanout) CycleFinished(o daycycle.Outcome) {
	f.each(func(r Reporter) { r.CycleFinished(o) })
}

func (f Fanout) RecordFrame(fr executor.Frame) {
	f.each(func(r Reporter) { r.RecordFrame(fr) })
}

func (f Fanout) RecordEntry(e executor.EntryReport) {
	f.each(func(r Reporter) { r.RecordEntry(e) })
}

func (f Fanout) RecordHealthCheck(attempt int, s health.SystemStatus) {
	f.each(func(r Reporter) { r.RecordHealthCheck(attempt, s) })
}
