package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementFrame       = "frame"
	MeasurementHealthCheck = "health_check"
	MeasurementCycle       = "cycle"
)

// WriteFrame records the mount telemetry sampled when a frame was saved.
//
// Parameters:
//   - target: Plan entry name (tag)
//   - sequence: Frame number within the entry
//   - azimuth, altitude: Mount pointing in degrees
//   - axis0Err, axis1Err: Axis pointing error in arcseconds
//   - at: Capture time
func (c *Client) WriteFrame(target string, sequence int, azimuth, altitude, axis0Err, axis1Err float64, at time.Time) {
	c.writePoint(MeasurementFrame,
		map[string]string{"target": target},
		map[string]interface{}{
			"sequence":         sequence,
			"azimuth":          azimuth,
			"altitude":         altitude,
			"axis0_err_arcsec": axis0Err,
			"axis1_err_arcsec": axis1Err,
		},
		at,
	)
}

// WriteHealthCheck records one health-check attempt.
func (c *Client) WriteHealthCheck(attempt int, mountConnected, domeOperational bool, at time.Time) {
	c.writePoint(MeasurementHealthCheck,
		nil,
		map[string]interface{}{
			"attempt":          attempt,
			"mount_connected":  mountConnected,
			"dome_operational": domeOperational,
		},
		at,
	)
}

// WriteCycleState records a day-cycle state transition.
func (c *Client) WriteCycleState(cycleID, state, reason string, at time.Time) {
	c.writePoint(MeasurementCycle,
		map[string]string{"state": state},
		map[string]interface{}{
			"cycle_id": cycleID,
			"reason":   reason,
		},
		at,
	)
}

// writePoint is a no-op while disconnected so callers never need to check.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
