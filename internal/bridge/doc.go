// Package bridge connects the core to the hardware bridges over MQTT.
//
// Vendor drivers for the mount, dome and camera live in separate bridge
// processes. The core sends a RequestMessage to
// nightwatch/request/{device}/{request_id} and waits for the matching
// ResponseMessage on nightwatch/response/{device}/{request_id}.
//
// Mount, Dome and Camera implement the observatory capability interfaces
// on top of a Caller. Server is the other end: it answers requests for one
// device using any observatory controller, which is how
// `nightwatch bridge --simulate` stands in for real hardware.
//
// Every failure a caller sees, including timeouts and remote errors, wraps
// observatory.ErrHardwareUnavailable.
package bridge
