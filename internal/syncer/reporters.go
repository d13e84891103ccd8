package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/hcbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/hcbridge/internal/infrastructure/mqtt"
)

// JSONPublisher publishes JSON payloads on MQTT.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTReporter publishes the pass report, retained, and one message per
// accessory event.
type MQTTReporter struct {
	pub    JSONPublisher
	topics mqtt.Topics
}

// NewMQTTReporter creates a reporter publishing through pub.
func NewMQTTReporter(pub JSONPublisher) *MQTTReporter {
	return &MQTTReporter{pub: pub}
}

type accessoryMessage struct {
	Key    string `json:"key"`
	Event  string `json:"event"`
	PassID string `json:"pass_id"`
}

// ReportPass implements Reporter.
func (m *MQTTReporter) ReportPass(_ context.Context, r Report) error {
	var errs []error
	if err := m.pub.PublishJSON(m.topics.Pass(), r, true); err != nil {
		errs = append(errs, fmt.Errorf("publishing pass report: %w", err))
	}
	for _, ev := range r.Events {
		msg := accessoryMessage{Key: ev.Key, Event: ev.Event, PassID: r.PassID}
		if err := m.pub.PublishJSON(m.topics.Accessory(ev.Key), msg, false); err != nil {
			errs = append(errs, fmt.Errorf("publishing %s event for %s: %w", ev.Event, ev.Key, err))
		}
	}
	return errors.Join(errs...)
}

// MetricsWriter writes pass metrics to a time-series store.
type MetricsWriter interface {
	WriteSyncPass(m influxdb.PassMetrics)
	WriteAccessoryEvent(deviceID, event string, at time.Time)
}

// InfluxReporter writes one sync_pass point per pass and one
// accessory_event point per accessory event.
type InfluxReporter struct {
	w MetricsWriter
}

// NewInfluxReporter creates a reporter writing through w.
func NewInfluxReporter(w MetricsWriter) *InfluxReporter {
	return &InfluxReporter{w: w}
}

// ReportPass implements Reporter. Writes are asynchronous; failures
// surface through the client's error callback.
func (i *InfluxReporter) ReportPass(_ context.Context, r Report) error {
	i.w.WriteSyncPass(influxdb.PassMetrics{
		PassID:          r.PassID,
		StartedAt:       r.StartedAt,
		Duration:        r.Duration,
		Devices:         r.Devices,
		Unsupported:     r.Unsupported,
		Registered:      r.Registered,
		Updated:         r.Updated,
		ServicesAdded:   r.ServicesAdded,
		ServicesRemoved: r.ServicesRemoved,
		Removed:         len(r.Removed),
		Errors:          r.Errors,
	})
	at := r.StartedAt.Add(r.Duration)
	for _, ev := range r.Events {
		i.w.WriteAccessoryEvent(ev.Key, ev.Event, at)
	}
	return nil
}
