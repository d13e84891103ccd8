package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSyncPass       = "sync_pass"
	MeasurementAccessoryEvent = "accessory_event"
)

// PassMetrics are the counters recorded for one sync pass.
type PassMetrics struct {
	PassID          string
	StartedAt       time.Time
	Duration        time.Duration
	Devices         int
	Unsupported     int
	Registered      int
	Updated         int
	ServicesAdded   int
	ServicesRemoved int
	Removed         int
	Errors          int
}

// WriteSyncPass records one point in the sync_pass measurement, timestamped
// at the start of the pass. pass_id is a field, not a tag, to keep series
// cardinality flat.
func (c *Client) WriteSyncPass(m PassMetrics) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newSyncPassPoint(m))
}

func newSyncPassPoint(m PassMetrics) *write.Point {
	outcome := "ok"
	if m.Errors > 0 {
		outcome = "partial"
	}
	return write.NewPoint(MeasurementSyncPass,
		map[string]string{"outcome": outcome},
		map[string]interface{}{
			"pass_id":          m.PassID,
			"duration_ms":      m.Duration.Milliseconds(),
			"devices":          m.Devices,
			"unsupported":      m.Unsupported,
			"registered":       m.Registered,
			"updated":          m.Updated,
			"services_added":   m.ServicesAdded,
			"services_removed": m.ServicesRemoved,
			"removed":          m.Removed,
			"errors":           m.Errors,
		},
		m.StartedAt)
}

// WriteAccessoryEvent records a lifecycle event (registered, updated,
// removed) for one accessory.
func (c *Client) WriteAccessoryEvent(deviceID, event string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(MeasurementAccessoryEvent,
		map[string]string{"event": event},
		map[string]interface{}{"device_id": deviceID, "count": 1},
		at))
}
