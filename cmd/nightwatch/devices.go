package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/nightwatch/internal/bridge"
	"github.com/nerrad567/nightwatch/internal/infrastructure/config"
	"github.com/nerrad567/nightwatch/internal/infrastructure/influxdb"
	"github.com/nerrad567/nightwatch/internal/infrastructure/logging"
	"github.com/nerrad567/nightwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/nightwatch/internal/observatory"
	"github.com/nerrad567/nightwatch/internal/observatory/sim"
)

// simTelemetry is what the simulated mount reports for every frame.
var simTelemetry = observatory.Telemetry{
	Azimuth:         180,
	Altitude:        45,
	AxisErrorArcsec: [2]float64{1.5, -0.8},
}

// devices owns the hardware handles for one process.
type devices struct {
	session *observatory.Session
	closers []func() error
}

// openDevices returns simulated devices, or bridge callers over transport.
//
// Parameters:
//   - cfg: Observatory configuration (command timeout)
//   - log: Logger for bridge callers
//   - simulate: Use in-process simulated hardware
//   - transport: MQTT transport; required unless simulating
//
// Returns:
//   - *devices: Handles wrapped in a Session; Close releases them
//   - error: If a bridge caller cannot subscribe
func openDevices(cfg config.ObservatoryConfig, log *logging.Logger, simulate bool, transport bridge.Transport) (*devices, error) {
	if simulate {
		log.Info("using simulated hardware")
		return &devices{session: observatory.NewSession(
			sim.NewMount(simTelemetry),
			sim.NewDome(),
			sim.NewCamera(true),
		)}, nil
	}
	if transport == nil {
		return nil, errors.New("hardware bridges need an MQTT connection")
	}

	d := &devices{}
	callers := make(map[string]*bridge.Caller, 3)
	for _, name := range []string{bridge.DeviceMount, bridge.DeviceDome, bridge.DeviceCamera} {
		c := bridge.NewCaller(transport, name, cfg.CommandTimeout)
		c.SetLogger(log)
		if err := c.Start(); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("starting %s caller: %w", name, err)
		}
		d.closers = append(d.closers, c.Close)
		callers[name] = c
	}

	d.session = observatory.NewSession(
		bridge.NewMount(callers[bridge.DeviceMount]),
		bridge.NewDome(callers[bridge.DeviceDome]),
		bridge.NewCamera(callers[bridge.DeviceCamera]),
	)
	log.Info("hardware bridges attached", "command_timeout", cfg.CommandTimeout)
	return d, nil
}

// bridgeTransport avoids handing a typed nil client to the bridges.
func bridgeTransport(c *mqtt.Client) bridge.Transport {
	if c == nil {
		return nil
	}
	return c
}

// Close releases every handle, returning the first error.
func (d *devices) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

// connectMQTT connects to the broker. When optional, a failure is logged
// and (nil, nil) is returned.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger, optional bool) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		if optional {
			log.Warn("MQTT unavailable, continuing without it", "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client, nil
}

// connectInfluxDB connects when enabled. Write errors are logged, never fatal.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return client, nil
}

// shutdownTimeout bounds the final safe-state sequence of a CLI command.
const shutdownTimeout = 2 * time.Minute
