package shadow

import "errors"

// Domain errors for the shadow package.
var (
	// ErrUnsupportedDevice is returned when a device type has no mapping.
	// The device must be skipped for the whole pass.
	ErrUnsupportedDevice = errors.New("shadow: unsupported device type")

	// ErrUnsupportedVariableType is returned for a global variable kind other
	// than VariableDimmer or VariableSwitch.
	ErrUnsupportedVariableType = errors.New("shadow: unsupported global variable type")

	// ErrNoAccessory is returned when reconciling before SetAccessory.
	ErrNoAccessory = errors.New("shadow: no live accessory attached")
)
