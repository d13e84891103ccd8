// Package syncer runs sync passes: it polls the hub, classifies every
// device into a shadow accessory, reconciles each against the bridge,
// removes accessories whose devices disappeared and reports the outcome.
//
// A pass is the only unit of work. Passes run on a fixed interval and can
// be requested early with Trigger (wired to an MQTT command topic).
package syncer
