// Package mqtt provides the broker connection Night Watch uses to reach its
// hardware bridges and to publish cycle status.
//
// Vendor drivers for the mount, dome and camera run as separate bridge
// processes. The core never talks to hardware directly:
//
//	nightwatch ↔ MQTT broker ↔ mount / dome / camera bridges
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and retained-state support
//   - Subscriptions that survive reconnects
//   - Last Will and Testament on nightwatch/system/status
//
// TLS should be enabled (cfg.Broker.TLS) whenever the broker is not on the
// observatory host itself.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.SystemAbort(), 1,
//	    func(topic string, payload []byte) error {
//	        cancel()
//	        return nil
//	    })
package mqtt
