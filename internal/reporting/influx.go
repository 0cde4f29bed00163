package reporting

import (
	"time"

	"github.com/nerrad567/nightwatch/internal/daycycle"
	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/health"
	"github.com/nerrad567/nightwatch/internal/observatory"
)

// PointWriter is the time-series surface the recorder needs.
// *influxdb.Client satisfies it; a nil client drops every write.
type PointWriter interface {
	WriteFrame(target string, sequence int, azimuth, altitude, axis0Err, axis1Err float64, at time.Time)
	WriteHealthCheck(attempt int, mountConnected, domeOperational bool, at time.Time)
	WriteCycleState(cycleID, state, reason string, at time.Time)
}

// InfluxRecorder writes observatory activity as time-series points.
// Entry results are not written; the journal holds them.
type InfluxRecorder struct {
	w PointWriter
}

var _ Reporter = (*InfluxRecorder)(nil)

// NewInfluxRecorder creates a recorder writing through w.
func NewInfluxRecorder(w PointWriter) *InfluxRecorder {
	return &InfluxRecorder{w: w}
}

func (r *InfluxRecorder) StateChanged(t daycycle.Transition) {
	r.w.WriteCycleState(t.CycleID, t.To.String(), t.Reason, t.At)
}

func (r *InfluxRecorder) CycleFinished(daycycle.Outcome) {}

func (r *InfluxRecorder) RecordFrame(f executor.Frame) {
	r.w.WriteFrame(f.Target, f.Sequence,
		f.Telemetry.Azimuth, f.Telemetry.Altitude,
		f.Telemetry.AxisErrorArcsec[observatory.Axis0], f.Telemetry.AxisErrorArcsec[observatory.Axis1],
		f.SavedAt)
}

func (r *InfluxRecorder) RecordEntry(executor.EntryReport) {}

func (r *InfluxRecorder) RecordHealthCheck(attempt int, s health.SystemStatus) {
	r.w.WriteHealthCheck(attempt, s.MountConnected, s.DomeOperational, s.CheckedAt)
}
