package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/nightwatch/internal/daycycle"
	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/health"
	"github.com/nerrad567/nightwatch/internal/observatory"
)

const namespace = "nightwatch"

// Entry result label values.
const (
	resultCompleted = "completed"
	resultSkipped   = "skipped"
	resultFailed    = "failed"
)

// allStates is every state the cycle_state gauge reports on.
var allStates = []daycycle.State{
	daycycle.Idle,
	daycycle.AwaitingObservationWindow,
	daycycle.StartingUp,
	daycycle.HealthChecking,
	daycycle.Observing,
	daycycle.ShuttingDown,
	daycycle.Aborted,
	daycycle.Completed,
}

// Collector records observatory activity.
//
// Thread Safety: all methods are safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	cycleState    *prometheus.GaugeVec
	transitions   *prometheus.CounterVec
	cycles        *prometheus.CounterVec
	frames        prometheus.Counter
	frameFailures prometheus.Counter
	lastFrame     prometheus.Gauge
	pointingError *prometheus.HistogramVec
	entries       *prometheus.CounterVec
	healthChecks  *prometheus.CounterVec
}

var (
	_ daycycle.EventSink = (*Collector)(nil)
	_ executor.Recorder  = (*Collector)(nil)
	_ health.Recorder    = (*Collector)(nil)
)

// New creates a collector with its own registry, which also carries the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	c := &Collector{
		registry: reg,

		// cycleState is 1 for the current state and 0 for every other
		cycleState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_state",
			Help:      "Current day-cycle state (1 = active)",
		}, []string{"state"}),

		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_transitions_total",
			Help:      "Day-cycle state transitions by target state",
		}, []string{"to"}),

		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Finished day cycles by outcome",
		}, []string{"outcome"}),

		frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames saved",
		}),

		frameFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_failures_total",
			Help:      "Capture attempts that did not produce a frame",
		}),

		lastFrame: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_frame_timestamp_seconds",
			Help:      "Unix time of the last saved frame",
		}),

		pointingError: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pointing_error_arcsec",
			Help:      "Axis distance to target when a frame was saved",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1" to ~1.1°
		}, []string{"axis"}),

		entries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_entries_total",
			Help:      "Plan entries by result",
		}, []string{"result"}),

		healthChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Health-check attempts by readiness",
		}, []string{"ready"}),
	}
	c.setState(daycycle.Idle)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) setState(current daycycle.State) {
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		c.cycleState.WithLabelValues(s.String()).Set(v)
	}
}

// StateChanged implements daycycle.EventSink.
func (c *Collector) StateChanged(t daycycle.Transition) {
	c.setState(t.To)
	c.transitions.WithLabelValues(t.To.String()).Inc()
}

// CycleFinished implements daycycle.EventSink.
func (c *Collector) CycleFinished(o daycycle.Outcome) {
	c.cycles.WithLabelValues(o.State.String()).Inc()
}

// RecordFrame implements executor.Recorder.
func (c *Collector) RecordFrame(f executor.Frame) {
	c.frames.Inc()
	c.lastFrame.Set(float64(f.SavedAt.Unix()))
	c.pointingError.WithLabelValues("0").Observe(f.Telemetry.AxisErrorArcsec[observatory.Axis0])
	c.pointingError.WithLabelValues("1").Observe(f.Telemetry.AxisErrorArcsec[observatory.Axis1])
}

// RecordEntry implements executor.Recorder.
func (c *Collector) RecordEntry(r executor.EntryReport) {
	c.frameFailures.Add(float64(r.FrameFailures))
	switch {
	case r.Skipped:
		c.entries.WithLabelValues(resultSkipped).Inc()
	case r.Err != nil:
		c.entries.WithLabelValues(resultFailed).Inc()
	default:
		c.entries.WithLabelValues(resultCompleted).Inc()
	}
}

// RecordHealthCheck implements health.Recorder.
func (c *Collector) RecordHealthCheck(_ int, status health.SystemStatus) {
	ready := "false"
	if status.Ready() {
		ready = "true"
	}
	c.healthChecks.WithLabelValues(ready).Inc()
}
