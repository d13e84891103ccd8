// Package mqtt connects the bridge to an MQTT broker.
//
// The bridge publishes sync pass reports and accessory lifecycle events, keeps
// a retained status on hcbridge/system/status (with a last will for crashes),
// and listens on hcbridge/command/sync for on-demand passes.
//
//	hcbridge/system/status          retained {"status":"online"|"offline",...}
//	hcbridge/pass                   sync pass report (JSON)
//	hcbridge/accessory/{deviceID}   {"event":"registered"|"updated"|"removed",...}
//	hcbridge/command/sync           any payload triggers a pass
//
// Subscriptions are tracked and restored after reconnects. Handler panics are
// recovered and logged.
package mqtt
