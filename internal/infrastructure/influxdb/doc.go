// Package influxdb records Night Watch session telemetry in InfluxDB v2.
//
// Three measurements are written:
//   - frame: mount azimuth, altitude and axis pointing errors per saved frame
//   - health_check: each readiness attempt before observing
//   - cycle: day-cycle state transitions
//
// InfluxDB is optional. When disabled, Connect returns ErrDisabled and the
// caller runs without telemetry; every write method is a no-op on a nil or
// disconnected client.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
//	    logger.Warn("telemetry unavailable", "error", err)
//	}
//	defer client.Close()
//
//	client.WriteFrame("ISS", 12, 181.2, 45.0, 1.3, 0.8, time.Now())
package influxdb
