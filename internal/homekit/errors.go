package homekit

import "errors"

// Domain errors for the homekit package.
var (
	ErrUnknownService        = errors.New("homekit: no HAP service for kind")
	ErrUnknownCharacteristic = errors.New("homekit: no HAP characteristic for kind")
	ErrNotManaged            = errors.New("homekit: accessory not created by this platform")
	ErrRegistry              = errors.New("homekit: accessory registry")
)
