// Package influxdb records sync pass metrics in InfluxDB 2.x.
//
// Writes go through the client's non-blocking API and are batched by
// batch_size / flush_interval. Asynchronous write failures are delivered to
// the SetOnError callback wrapped in ErrWriteFailed.
//
// Measurements:
//
//	sync_pass        tag outcome=ok|partial; counters as fields
//	accessory_event  tag event=registered|updated|removed; field device_id
package influxdb
