package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/nightwatch/internal/infrastructure/config"
)

// testConfig points at a local Mosquitto; broker-backed tests skip without one.
func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	c, err := Connect(testConfig(clientID))
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // Test cleanup
	return c
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BridgeRequest", topics.BridgeRequest("mount", "abc"), "nightwatch/request/mount/abc"},
		{"BridgeRequests", topics.BridgeRequests("mount"), "nightwatch/request/mount/+"},
		{"BridgeResponse", topics.BridgeResponse("dome", "abc"), "nightwatch/response/dome/abc"},
		{"BridgeResponses", topics.BridgeResponses("camera"), "nightwatch/response/camera/+"},
		{"BridgeHealth", topics.BridgeHealth("camera"), "nightwatch/health/camera"},
		{"CycleState", topics.CycleState(), "nightwatch/core/cycle/state"},
		{"CoreEvent", topics.CoreEvent("frame_captured"), "nightwatch/core/event/frame_captured"},
		{"SystemStatus", topics.SystemStatus(), "nightwatch/system/status"},
		{"SystemAbort", topics.SystemAbort(), "nightwatch/system/abort"},
		{"AllTopics", topics.AllTopics(), "nightwatch/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var p statusPayload
	if err := json.Unmarshal(buildStatusPayload("nw-core", "offline", "graceful_shutdown"), &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if p.Status != "offline" || p.ClientID != "nw-core" || p.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", p)
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339", p.Timestamp)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("nightwatch/x", nil, 3, false), ErrInvalidQoS},
		{"publish oversized", c.Publish("nightwatch/x", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("nightwatch/x", []byte("{}"), 1, false), ErrNotConnected},
		{"subscribe nil handler", c.Subscribe("nightwatch/x", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("nightwatch/x", 1, noop), ErrNotConnected},
		{"unsubscribe empty", c.Unsubscribe(""), ErrInvalidTopic},
		{"health", c.HealthCheck(context.Background()), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.HasSubscription("nightwatch/x") {
		t.Error("failed subscribe must not be tracked")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	c := &Client{}
	h := c.wrapHandler(func(string, []byte) error { panic("boom") })
	// Must not propagate.
	h(nil, fakeMessage{topic: "nightwatch/x"})
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	c := connectOrSkip(t, "nightwatch-test-roundtrip")

	topic := Topics{}.BridgeResponse("mount", "roundtrip")
	received := make(chan []byte, 1)
	err := c.Subscribe(Topics{}.BridgeResponses("mount"), 1, func(gotTopic string, payload []byte) error {
		if gotTopic == topic {
			received <- payload
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !c.HasSubscription(Topics{}.BridgeResponses("mount")) {
		t.Error("subscription not tracked")
	}

	if err := c.Publish(topic, []byte(`{"ok":true}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != `{"ok":true}` {
			t.Errorf("payload = %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	if err := c.Unsubscribe(Topics{}.BridgeResponses("mount")); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}
