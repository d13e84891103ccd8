// Package homekit publishes shadow accessories on a HomeKit bridge.
//
// It is the live side of reconciliation: Accessory, Service and
// Characteristic wrap brutella/hap types and satisfy the shadow package's
// LiveAccessory, LiveService and LiveCharacteristic interfaces, and
// Platform satisfies shadow.Platform.
//
// The platform persists every published accessory in the SQLite registry
// so that accessory ids, service subtypes and event bindings survive
// restarts. Writes made by HomeKit controllers are turned into hub calls
// through a CommandSink.
//
// Typical wiring:
//
//	platform := homekit.NewPlatform(homekit.NewSQLiteRegistry(db.DB), hubClient, logger)
//	if err := platform.Load(ctx); err != nil { ... }
//	go homekit.NewServer(cfg.HomeKit, platform, version, logger).Run(ctx)
package homekit
