package bridge

import (
	"fmt"
	"time"
)

// Devices served by bridges.
const (
	DeviceMount  = "mount"
	DeviceDome   = "dome"
	DeviceCamera = "camera"
)

// Mount actions.
const (
	ActionConnect        = "connect"
	ActionIsConnected    = "is_connected"
	ActionEnableAxis     = "enable_axis"
	ActionDisableAxis    = "disable_axis"
	ActionFindHome       = "find_home"
	ActionFollowElements = "follow_tle"
	ActionStop           = "stop"
	ActionStatus         = "status"
)

// Dome actions.
const (
	ActionIsBusy        = "is_busy"
	ActionIsOnline      = "is_online"
	ActionIsShutterOpen = "is_shutter_open"
	ActionIsDoorOpen    = "is_door_open"
	ActionOpenShutter   = "open_shutter"
	ActionCloseShutter  = "close_shutter"
	ActionSetSlaveMode  = "set_slave_mode"
)

// Camera actions.
const (
	ActionExpose           = "expose"
	ActionIsImageReady     = "is_image_ready"
	ActionSaveImage        = "save_image"
	ActionSetCoolerEnabled = "set_cooler_enabled"
)

// Field names shared by requests and responses.
const (
	fieldAxis     = "axis"
	fieldEnabled  = "enabled"
	fieldLine1    = "line1"
	fieldLine2    = "line2"
	fieldLine3    = "line3"
	fieldSeconds  = "seconds"
	fieldPath     = "path"
	fieldValue    = "value"
	fieldResponse = "response"
	fieldAzimuth  = "azimuth_degs"
	fieldAltitude = "altitude_degs"
	fieldAxis0    = "axis0_dist_to_target_arcsec"
	fieldAxis1    = "axis1_dist_to_target_arcsec"
)

// RequestMessage is sent from the core to a bridge.
// Topic: nightwatch/request/{device}/{request_id}
type RequestMessage struct {
	// RequestID correlates the response; it is a UUID.
	RequestID string `json:"request_id"`

	// Timestamp is when the request was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage is sent from a bridge to the core.
// Topic: nightwatch/response/{device}/{request_id}
type ResponseMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`

	// Data holds the action's result, e.g. {"value": true}.
	Data map[string]any `json:"data,omitempty"`

	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed request.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// fields reads typed values out of decoded JSON maps. The first missing or
// mistyped field is kept in err.
type fields struct {
	m   map[string]any
	err error
}

func (f *fields) fail(key, want string) {
	if f.err == nil {
		f.err = fmt.Errorf("field %q: want %s, got %T", key, want, f.m[key])
	}
}

func (f *fields) bool(key string) bool {
	v, ok := f.m[key].(bool)
	if !ok {
		f.fail(key, "bool")
	}
	return v
}

func (f *fields) float(key string) float64 {
	v, ok := f.m[key].(float64)
	if !ok {
		f.fail(key, "number")
	}
	return v
}

func (f *fields) int(key string) int {
	v := f.float(key)
	if v != float64(int(v)) {
		f.fail(key, "integer")
	}
	return int(v)
}

func (f *fields) string(key string) string {
	v, ok := f.m[key].(string)
	if !ok {
		f.fail(key, "string")
	}
	return v
}
