package reporting

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/nightwatch/internal/daycycle"
	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/health"
	"github.com/nerrad567/nightwatch/internal/observatory"
	"github.com/nerrad567/nightwatch/internal/shutdown"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type mockPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, published{topic, payload, qos, retained})
	return m.err
}

func (m *mockPublisher) last(t *testing.T) published {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.msgs) == 0 {
		t.Fatal("nothing published")
	}
	return m.msgs[len(m.msgs)-1]
}

var at = time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)

func TestMQTTPublisher_StateChanged(t *testing.T) {
	pub := &mockPublisher{}
	p := NewMQTTPublisher(pub, 1)

	p.StateChanged(daycycle.Transition{
		CycleID: "c1", From: daycycle.HealthChecking, To: daycycle.Observing, At: at,
	})

	msg := pub.last(t)
	if msg.topic != "nightwatch/core/cycle/state" {
		t.Errorf("topic = %q", msg.topic)
	}
	if !msg.retained || msg.qos != 1 {
		t.Errorf("retained = %v, qos = %d, want retained QoS 1", msg.retained, msg.qos)
	}

	var got CycleStateMessage
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.State != daycycle.Observing || got.Previous != daycycle.HealthChecking || got.CycleID != "c1" {
		t.Errorf("payload = %+v", got)
	}
}

func TestMQTTPublisher_Events(t *testing.T) {
	tests := []struct {
		name      string
		emit      func(p *MQTTPublisher)
		wantTopic string
		wantKey   string
	}{
		{
			name: "frame",
			emit: func(p *MQTTPublisher) {
				p.RecordFrame(executor.Frame{Target: "ISS", Sequence: 3, Path: "/d/0003.fits", SavedAt: at})
			},
			wantTopic: "nightwatch/core/event/frame_captured",
			wantKey:   "sequence",
		},
		{
			name: "entry carries error text",
			emit: func(p *MQTTPublisher) {
				p.RecordEntry(executor.EntryReport{Name: "ISS", Err: executor.ErrEntryAborted})
			},
			wantTopic: "nightwatch/core/event/entry_finished",
			wantKey:   "error",
		},
		{
			name: "health check",
			emit: func(p *MQTTPublisher) {
				p.RecordHealthCheck(2, health.SystemStatus{MountConnected: true, CheckedAt: at})
			},
			wantTopic: "nightwatch/core/event/health_check",
			wantKey:   "attempt",
		},
		{
			name: "cycle finished",
			emit: func(p *MQTTPublisher) {
				p.CycleFinished(daycycle.Outcome{
					CycleID:  "c1",
					State:    daycycle.Aborted,
					Err:      errors.New("blackout"),
					Shutdown: shutdown.Summary{ShutterClosed: true},
				})
			},
			wantTopic: "nightwatch/core/event/cycle_finished",
			wantKey:   "shutter_closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			tt.emit(NewMQTTPublisher(pub, 0))

			msg := pub.last(t)
			if msg.topic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", msg.topic, tt.wantTopic)
			}
			if msg.retained {
				t.Error("events must not be retained")
			}

			var env struct {
				Type    string         `json:"type"`
				Payload map[string]any `json:"payload"`
			}
			if err := json.Unmarshal(msg.payload, &env); err != nil {
				t.Fatalf("payload: %v", err)
			}
			if _, ok := env.Payload[tt.wantKey]; !ok {
				t.Errorf("payload %v missing %q", env.Payload, tt.wantKey)
			}
		})
	}
}

type warnCounter struct{ n int }

func (w *warnCounter) Warn(string, ...any) { w.n++ }

func TestMQTTPublisher_PublishErrorIsLogged(t *testing.T) {
	pub := &mockPublisher{err: errors.New("not connected")}
	logs := &warnCounter{}
	p := NewMQTTPublisher(pub, 1)
	p.SetLogger(logs)

	p.RecordFrame(executor.Frame{})
	if logs.n != 1 {
		t.Errorf("warnings = %d, want 1", logs.n)
	}
}

type point struct {
	kind string
	args []any
}

type mockWriter struct{ points []point }

func (m *mockWriter) WriteFrame(target string, sequence int, az, alt, a0, a1 float64, at time.Time) {
	m.points = append(m.points, point{"frame", []any{target, sequence, az, alt, a0, a1}})
}

func (m *mockWriter) WriteHealthCheck(attempt int, mount, dome bool, at time.Time) {
	m.points = append(m.points, point{"health", []any{attempt, mount, dome}})
}

func (m *mockWriter) WriteCycleState(cycleID, state, reason string, at time.Time) {
	m.points = append(m.points, point{"cycle", []any{cycleID, state, reason}})
}

func TestInfluxRecorder(t *testing.T) {
	w := &mockWriter{}
	r := NewInfluxRecorder(w)

	r.StateChanged(daycycle.Transition{CycleID: "c1", To: daycycle.StartingUp, At: at})
	r.RecordFrame(executor.Frame{
		Target:    "ISS",
		Sequence:  7,
		Telemetry: observatory.Telemetry{Azimuth: 120, Altitude: 33, AxisErrorArcsec: [2]float64{1.5, 2.5}},
		SavedAt:   at,
	})
	r.RecordHealthCheck(1, health.SystemStatus{MountConnected: true})
	r.RecordEntry(executor.EntryReport{})
	r.CycleFinished(daycycle.Outcome{})

	if len(w.points) != 3 {
		t.Fatalf("points = %d, want 3", len(w.points))
	}
	if w.points[0].kind != "cycle" || w.points[0].args[1] != "starting_up" {
		t.Errorf("cycle point = %+v", w.points[0])
	}
	frame := w.points[1]
	if frame.kind != "frame" || frame.args[0] != "ISS" || frame.args[1] != 7 || frame.args[4] != 1.5 || frame.args[5] != 2.5 {
		t.Errorf("frame point = %+v", frame)
	}
	if w.points[2].kind != "health" || w.points[2].args[1] != true {
		t.Errorf("health point = %+v", w.points[2])
	}
}

type countingReporter struct {
	states, outcomes, frames, entries, checks int
}

func (c *countingReporter) StateChanged(daycycle.Transition)           { c.states++ }
func (c *countingReporter) CycleFinished(daycycle.Outcome)             { c.outcomes++ }
func (c *countingReporter) RecordFrame(executor.Frame)                 { c.frames++ }
func (c *countingReporter) RecordEntry(executor.EntryReport)           { c.entries++ }
func (c *countingReporter) RecordHealthCheck(int, health.SystemStatus) { c.checks++ }

func TestFanout(t *testing.T) {
	a, b := &countingReporter{}, &countingReporter{}
	f := Fanout{a, nil, b}

	f.StateChanged(daycycle.Transition{})
	f.CycleFinished(daycycle.Outcome{})
	f.RecordFrame(executor.Frame{})
	f.RecordFrame(executor.Frame{})
	f.RecordEntry(executor.EntryReport{})
	f.RecordHealthCheck(1, health.SystemStatus{})

	for _, r := range []*countingReporter{a, b} {
		if r.states != 1 || r.outcomes != 1 || r.frames != 2 || r.entries != 1 || r.checks != 1 {
			t.Errorf("reporter saw %+v", *r)
		}
	}
}
