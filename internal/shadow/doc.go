// Package shadow classifies hub devices into HomeKit service bundles and
// reconciles bridge accessories against them.
//
// # Classification
//
// A Classifier maps a hub.Device (its type, control-type code, siblings and
// declared interfaces) to an ordered list of ShadowService values. Dispatch is
// a closed table keyed by device type, with an optional second level keyed by
// control-type code. A small set of rules then runs over every result:
//
//   - sibling override: thermostats take their current temperature from a
//     paired temperature sensor when one exists
//   - battery bonus: devices declaring the "battery" interface get a
//     BatteryService
//   - default subtype: every service gets a stable identity derived from the
//     device id
//   - numeric bounds: CurrentAmbientLightLevel and CurrentTemperature carry
//     fixed ranges
//
// Unknown device types are unsupported: no accessory is built for them.
//
// # Reconciliation
//
// A ShadowAccessory holds the desired services for one device during one sync
// pass. Reconcile brings a live bridge accessory in line with it:
//
//	acc, err := classifier.NewShadowAccessory(device, siblings)
//	if errors.Is(err, shadow.ErrUnsupportedDevice) {
//	    return // skipped this pass
//	}
//	result, err := acc.Reconcile(live, isNew, platform)
//
// Removal runs first (services no longer desired), then addition (desired
// services the live accessory lacks), then registration or update. Running
// Reconcile twice with the same desired set changes nothing the second time.
//
// # Thread Safety
//
// Classifier is immutable after construction and safe for concurrent use.
// A ShadowAccessory and the LiveAccessory it reconciles must not be shared
// between goroutines during Reconcile.
package shadow
