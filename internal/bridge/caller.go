package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/nightwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/nightwatch/internal/observatory"
)

// DefaultTimeout bounds one request/response exchange.
const DefaultTimeout = 10 * time.Second

// qos is used for all bridge traffic.
const qos byte = 1

// Transport is the MQTT surface bridges need. *mqtt.Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface for callers and servers.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Caller sends requests to one device bridge and matches the responses.
//
// Thread Safety: all methods are safe for concurrent use.
type Caller struct {
	transport Transport
	device    string
	timeout   time.Duration
	logger    Logger

	mu      sync.Mutex
	pending map[string]chan ResponseMessage
	started bool
	closed  bool
}

// NewCaller creates a caller for device. A zero timeout uses DefaultTimeout.
func NewCaller(transport Transport, device string, timeout time.Duration) *Caller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Caller{
		transport: transport,
		device:    device,
		timeout:   timeout,
		logger:    noopLogger{},
		pending:   make(map[string]chan ResponseMessage),
	}
}

// SetLogger sets the logger for the caller.
func (c *Caller) SetLogger(logger Logger) {
	c.logger = logger
}

// Device returns the device name.
func (c *Caller) Device() string {
	return c.device
}

// Start subscribes to the device's response topic.
func (c *Caller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if err := c.transport.Subscribe(mqtt.Topics{}.BridgeResponses(c.device), qos, c.handleResponse); err != nil {
		return fmt.Errorf("subscribing to %s responses: %w", c.device, err)
	}
	c.started = true
	return nil
}

// Close unsubscribes and fails every pending call with ErrClosed.
func (c *Caller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !started {
		return nil
	}
	return c.transport.Unsubscribe(mqtt.Topics{}.BridgeResponses(c.device))
}

// Call sends action and waits up to the caller's timeout for the answer.
func (c *Caller) Call(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.CallUntil(callCtx, action, params)
}

// CallUntil sends action and waits until ctx ends, for actions that may
// legitimately take longer than the default timeout such as homing.
//
// Parameters:
//   - ctx: Bounds the wait; a deadline reads as ErrTimeout
//   - action: Bridge action name
//   - params: Action parameters, may be nil
//
// Returns:
//   - map[string]any: Response data
//   - error: Wraps observatory.ErrHardwareUnavailable on any failure
func (c *Caller) CallUntil(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	id := uuid.NewString()
	ch := make(chan ResponseMessage, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, c.fail(action, ErrClosed)
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	payload, err := json.Marshal(RequestMessage{
		RequestID:  id,
		Timestamp:  time.Now().UTC(),
		Action:     action,
		Parameters: params,
	})
	if err != nil {
		return nil, c.fail(action, err)
	}
	if err := c.transport.Publish(mqtt.Topics{}.BridgeRequest(c.device, id), payload, qos, false); err != nil {
		return nil, c.fail(action, err)
	}
	c.logger.Debug("bridge request sent", "device", c.device, "action", action, "request_id", id)

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, c.fail(action, ErrClosed)
		}
		if !resp.Success {
			remote := resp.Error
			if remote == nil {
				remote = &ResponseError{Code: ErrCodeDeviceError, Message: "no error detail"}
			}
			return nil, c.fail(action, fmt.Errorf("%w: %w", ErrRemote, remote))
		}
		if resp.Data == nil {
			resp.Data = map[string]any{}
		}
		return resp.Data, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, c.fail(action, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()))
		}
		return nil, c.fail(action, ctx.Err())
	}
}

func (c *Caller) fail(action string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", observatory.ErrHardwareUnavailable, c.device, action, err)
}

func (c *Caller) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// handleResponse routes a response to its waiting call. Late or unknown
// responses are dropped.
func (c *Caller) handleResponse(topic string, payload []byte) error {
	var resp ResponseMessage
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decoding response on %s: %w", topic, err)
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("dropping unmatched bridge response", "device", c.device, "request_id", resp.RequestID)
		return nil
	}
	ch <- resp
	return nil
}

// value calls action and decodes Data["value"] as a bool.
func (c *Caller) value(ctx context.Context, action string) (bool, error) {
	data, err := c.Call(ctx, action, nil)
	if err != nil {
		return false, err
	}
	f := fields{m: data}
	v := f.bool(fieldValue)
	if f.err != nil {
		return false, c.fail(action, fmt.Errorf("%w: %w", ErrBadResponse, f.err))
	}
	return v, nil
}

// do calls action and ignores the response data.
func (c *Caller) do(ctx context.Context, action string, params map[string]any) error {
	_, err := c.Call(ctx, action, params)
	return err
}
