package reporting

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/nightwatch/internal/daycycle"
	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/health"
	"github.com/nerrad567/nightwatch/internal/infrastructure/mqtt"
)

// Core event types published under nightwatch/core/event/{type}.
const (
	EventFrameCaptured = "frame_captured"
	EventEntryFinished = "entry_finished"
	EventHealthCheck   = "health_check"
	EventCycleFinished = "cycle_finished"
)

// Publisher is the MQTT surface the publisher needs. *mqtt.Client
// satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// CycleStateMessage is the retained payload on nightwatch/core/cycle/state.
type CycleStateMessage struct {
	CycleID   string         `json:"cycle_id"`
	State     daycycle.State `json:"state"`
	Previous  daycycle.State `json:"previous"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventMessage wraps every core event payload.
type EventMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

type entryPayload struct {
	executor.EntryReport
	Error string `json:"error,omitempty"`
}

type outcomePayload struct {
	daycycle.Outcome
	Error         string `json:"error,omitempty"`
	ShutterClosed bool   `json:"shutter_closed"`
}

type healthPayload struct {
	Attempt int `json:"attempt"`
	health.SystemStatus
	Ready bool `json:"ready"`
}

// MQTTPublisher publishes observatory events over MQTT.
type MQTTPublisher struct {
	pub    Publisher
	qos    byte
	logger Logger
}

var _ Reporter = (*MQTTPublisher)(nil)

// NewMQTTPublisher creates a publisher sending with the given QoS.
func NewMQTTPublisher(pub Publisher, qos byte) *MQTTPublisher {
	return &MQTTPublisher{pub: pub, qos: qos, logger: noopLogger{}}
}

// SetLogger sets the logger for the publisher.
func (p *MQTTPublisher) SetLogger(logger Logger) {
	p.logger = logger
}

// StateChanged publishes the new state retained, so late subscribers see
// where the cycle is.
func (p *MQTTPublisher) StateChanged(t daycycle.Transition) {
	p.publish(mqtt.Topics{}.CycleState(), CycleStateMessage{
		CycleID:   t.CycleID,
		State:     t.To,
		Previous:  t.From,
		Reason:    t.Reason,
		Timestamp: t.At.UTC(),
	}, true)
}

// CycleFinished implements daycycle.EventSink.
func (p *MQTTPublisher) CycleFinished(o daycycle.Outcome) {
	payload := outcomePayload{Outcome: o, ShutterClosed: o.Shutdown.ShutterClosed}
	if o.Err != nil {
		payload.Error = o.Err.Error()
	}
	p.event(EventCycleFinished, o.FinishedAt, payload)
}

// RecordFrame implements executor.Recorder.
func (p *MQTTPublisher) RecordFrame(f executor.Frame) {
	p.event(EventFrameCaptured, f.SavedAt, f)
}

// RecordEntry implements executor.Recorder.
func (p *MQTTPublisher) RecordEntry(r executor.EntryReport) {
	p.event(EventEntryFinished, time.Now(), entryPayload{EntryReport: r, Error: r.ErrorText()})
}

// RecordHealthCheck implements health.Recorder.
func (p *MQTTPublisher) RecordHealthCheck(attempt int, s health.SystemStatus) {
	p.event(EventHealthCheck, s.CheckedAt, healthPayload{Attempt: attempt, SystemStatus: s, Ready: s.Ready()})
}

func (p *MQTTPublisher) event(eventType string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now()
	}
	p.publish(mqtt.Topics{}.CoreEvent(eventType), EventMessage{
		Type:      eventType,
		Timestamp: at.UTC(),
		Payload:   payload,
	}, false)
}

func (p *MQTTPublisher) publish(topic string, v any, retained bool) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("encoding MQTT message failed", "topic", topic, "error", err)
		return
	}
	if err := p.pub.Publish(topic, data, p.qos, retained); err != nil {
		p.logger.Warn("publishing MQTT message failed", "topic", topic, "error", err)
	}
}
