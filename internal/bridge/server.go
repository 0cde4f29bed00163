package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/nightwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/nightwatch/internal/observatory"
)

// Bridge health states published retained on nightwatch/health/{device}.
const (
	HealthOnline  = "online"
	HealthOffline = "offline"
)

var errInvalidParams = errors.New("invalid parameters")

type actionFunc func(ctx context.Context, p *fields) (map[string]any, error)

// HealthMessage is the retained liveness payload of a bridge.
type HealthMessage struct {
	Device    string    `json:"device"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Server answers core requests for one device.
//
// Each request is served on its own goroutine so a long action such as
// homing does not hold up status queries; the device itself serialises
// hardware access.
//
// Thread Safety: all methods are safe for concurrent use.
type Server struct {
	transport Transport
	device    string
	actions   map[string]actionFunc
	logger    Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

func newServer(t Transport, device string, actions map[string]actionFunc) *Server {
	return &Server{transport: t, device: device, actions: actions, logger: noopLogger{}}
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
}

// Device returns the device name.
func (s *Server) Device() string {
	return s.device
}

// Start subscribes to the device's request topic and announces the bridge
// as online.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	if err := s.transport.Subscribe(mqtt.Topics{}.BridgeRequests(s.device), qos, s.handleRequest); err != nil {
		s.cancel()
		return fmt.Errorf("subscribing to %s requests: %w", s.device, err)
	}
	s.running = true
	s.publishHealth(HealthOnline)
	return nil
}

// Stop unsubscribes, waits for in-flight requests and announces the bridge
// as offline.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	if err := s.transport.Unsubscribe(mqtt.Topics{}.BridgeRequests(s.device)); err != nil {
		s.logger.Warn("unsubscribe failed", "device", s.device, "error", err)
	}
	s.cancel()
	s.wg.Wait()
	s.publishHealth(HealthOffline)
}

func (s *Server) publishHealth(status string) {
	payload, err := json.Marshal(HealthMessage{Device: s.device, Status: status, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := s.transport.Publish(mqtt.Topics{}.BridgeHealth(s.device), payload, qos, true); err != nil {
		s.logger.Warn("publishing bridge health failed", "device", s.device, "error", err)
	}
}

func (s *Server) handleRequest(topic string, payload []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decoding request on %s: %w", topic, err)
	}
	if req.RequestID == "" {
		return fmt.Errorf("request on %s has no request_id", topic)
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.wg.Add(1)
	ctx := s.ctx
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.respond(req.RequestID, s.serve(ctx, req))
	}()
	return nil
}

// serve runs one request against the device.
func (s *Server) serve(ctx context.Context, req RequestMessage) (resp ResponseMessage) {
	resp = ResponseMessage{RequestID: req.RequestID}

	defer func() {
		if r := recover(); r != nil {
			resp.Success = false
			resp.Data = nil
			resp.Error = &ResponseError{Code: ErrCodeDeviceError, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	action, ok := s.actions[req.Action]
	if !ok {
		resp.Error = &ResponseError{Code: ErrCodeInvalidAction, Message: fmt.Sprintf("unknown action: %s", req.Action)}
		return resp
	}

	s.logger.Debug("bridge request received", "device", s.device, "action", req.Action, "request_id", req.RequestID)
	data, err := action(ctx, &fields{m: req.Parameters})
	if err != nil {
		code := ErrCodeDeviceError
		if errors.Is(err, errInvalidParams) {
			code = ErrCodeInvalidParams
		}
		resp.Error = &ResponseError{Code: code, Message: err.Error()}
		return resp
	}
	resp.Success = true
	resp.Data = data
	return resp
}

func (s *Server) respond(requestID string, resp ResponseMessage) {
	resp.Timestamp = time.Now().UTC()
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("encoding response failed", "device", s.device, "error", err)
		return
	}
	if err := s.transport.Publish(mqtt.Topics{}.BridgeResponse(s.device, requestID), payload, qos, false); err != nil {
		s.logger.Warn("publishing response failed", "device", s.device, "request_id", requestID, "error", err)
	}
}

func checkParams(p *fields) error {
	if p.err != nil {
		return fmt.Errorf("%w: %w", errInvalidParams, p.err)
	}
	return nil
}

func value(v bool, err error) (map[string]any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]any{fieldValue: v}, nil
}

// NewMountServer serves mount requests with m.
func NewMountServer(t Transport, m observatory.MountController) *Server {
	axisAction := func(fn func(context.Context, int) error) actionFunc {
		return func(ctx context.Context, p *fields) (map[string]any, error) {
			axis := p.int(fieldAxis)
			if err := checkParams(p); err != nil {
				return nil, err
			}
			return nil, fn(ctx, axis)
		}
	}

	return newServer(t, DeviceMount, map[string]actionFunc{
		ActionConnect: func(ctx context.Context, _ *fields) (map[string]any, error) {
			return nil, m.Connect(ctx)
		},
		ActionIsConnected: func(ctx context.Context, _ *fields) (map[string]any, error) {
			return value(m.IsConnected(ctx))
		},
		ActionEnableAxis:  axisAction(m.EnableAxis),
		ActionDisableAxis: axisAction(m.DisableAxis),
		ActionFindHome: func(ctx context.Context, _ *fields) (map[string]any, error) {
			return nil, m.FindHome(ctx)
		},
		ActionFollowElements: func(ctx context.Context, p *fields) (map[string]any, error) {
			l1, l2, l3 := p.string(fieldLine1), p.string(fieldLine2), p.string(fieldLine3)
			if err := checkParams(p); err != nil {
				return nil, err
			}
			ack, err := m.FollowElements(ctx, l1, l2, l3)
			if err != nil {
				return nil, err
			}
			return map[string]any{fieldResponse: ack}, nil
		},
		ActionStop: func(ctx context.Context, _ *fields) (map[string]any, error) {
			return nil, m.Stop(ctx)
		},
		ActionStatus: func(ctx context.Context, _ *fields) (map[string]any, error) {
			tel, err := m.Telemetry(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				fieldAzimuth:  tel.Azimuth,
				fieldAltitude: tel.Altitude,
				fieldAxis0:    tel.AxisErrorArcsec[observatory.Axis0],
				fieldAxis1:    tel.AxisErrorArcsec[observatory.Axis1],
			}, nil
		},
	})
}

// NewDomeServer serves dome requests with d.
func NewDomeServer(t Transport, d observatory.DomeController) *Server {
	query := func(fn func(context.Context) (bool, error)) actionFunc {
		return func(ctx context.Context, _ *fields) (map[string]any, error) {
			return value(fn(ctx))
		}
	}
	command := func(fn func(context.Context) error) actionFunc {
		return func(ctx context.Context, _ *fields) (map[string]any, error) {
			return nil, fn(ctx)
		}
	}

	return newServer(t, DeviceDome, map[string]actionFunc{
		ActionIsBusy:        query(d.IsBusy),
		ActionIsOnline:      query(d.IsOnline),
		ActionIsShutterOpen: query(d.IsShutterOpen),
		ActionIsDoorOpen:    query(d.IsDoorOpen),
		ActionOpenShutter:   command(d.OpenShutter),
		ActionCloseShutter:  command(d.CloseShutter),
		ActionSetSlaveMode: func(ctx context.Context, p *fields) (map[string]any, error) {
			enabled := p.bool(fieldEnabled)
			if err := checkParams(p); err != nil {
				return nil, err
			}
			return nil, d.SetSlaveMode(ctx, enabled)
		},
	})
}

// NewCameraServer serves camera requests with c.
func NewCameraServer(t Transport, c observatory.CameraController) *Server {
	return newServer(t, DeviceCamera, map[string]actionFunc{
		ActionExpose: func(ctx context.Context, p *fields) (map[string]any, error) {
			seconds := p.float(fieldSeconds)
			if err := checkParams(p); err != nil {
				return nil, err
			}
			return nil, c.Expose(ctx, seconds)
		},
		ActionIsImageReady: func(ctx context.Context, _ *fields) (map[string]any, error) {
			return value(c.IsImageReady(ctx))
		},
		ActionSaveImage: func(ctx context.Context, p *fields) (map[string]any, error) {
			path := p.string(fieldPath)
			if err := checkParams(p); err != nil {
				return nil, err
			}
			return nil, c.SaveImage(ctx, path)
		},
		ActionSetCoolerEnabled: func(ctx context.Context, p *fields) (map[string]any, error) {
			enabled := p.bool(fieldEnabled)
			if err := checkParams(p); err != nil {
				return nil, err
			}
			return nil, c.SetCoolerEnabled(ctx, enabled)
		},
	})
}
