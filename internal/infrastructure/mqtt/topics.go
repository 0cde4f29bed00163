package mqtt

import "fmt"

// Topic roots. Bridge traffic uses nightwatch/{kind}/{device}/{request_id};
// core status lives under nightwatch/core and nightwatch/system.
const (
	TopicPrefix       = "nightwatch"
	TopicPrefixCore   = "nightwatch/core"
	TopicPrefixSystem = "nightwatch/system"
)

// Topics provides builders for Night Watch MQTT topics.
//
//	req := mqtt.Topics{}.BridgeRequest("mount", id)
//	// nightwatch/request/mount/3f1c...
type Topics struct{}

// BridgeRequest is where the core sends a command to a device bridge.
//
// Example: nightwatch/request/dome/5b0c2e0e-...
func (Topics) BridgeRequest(device, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, device, requestID)
}

// BridgeRequests matches every request addressed to one device bridge.
//
// Pattern: nightwatch/request/{device}/+
func (Topics) BridgeRequests(device string) string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, device)
}

// BridgeResponse is where a device bridge answers a request.
//
// Example: nightwatch/response/dome/5b0c2e0e-...
func (Topics) BridgeResponse(device, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, device, requestID)
}

// BridgeResponses matches every response from one device bridge.
//
// Pattern: nightwatch/response/{device}/+
func (Topics) BridgeResponses(device string) string {
	return fmt.Sprintf("%s/response/%s/+", TopicPrefix, device)
}

// BridgeHealth is the retained liveness topic of a device bridge.
//
// Example: nightwatch/health/camera
func (Topics) BridgeHealth(device string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, device)
}

// CycleState carries the retained current day-cycle state.
func (Topics) CycleState() string {
	return TopicPrefixCore + "/cycle/state"
}

// CoreEvent carries non-retained core events such as frame captures.
//
// Example: nightwatch/core/event/frame_captured
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// SystemStatus is the core's online/offline topic (LWT).
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SystemAbort is the operator abort request topic.
func (Topics) SystemAbort() string {
	return TopicPrefixSystem + "/abort"
}

// AllTopics matches every Night Watch topic.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
