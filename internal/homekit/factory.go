package homekit

import (
	"fmt"

	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"

	"github.com/nerrad567/hcbridge/internal/catalog"
)

var serviceTypes = map[catalog.Service]string{
	catalog.AccessoryInformation: service.TypeAccessoryInformation,
	catalog.BatteryService:       service.TypeBatteryService,
	catalog.CarbonMonoxideSensor: service.TypeCarbonMonoxideSensor,
	catalog.ContactSensor:        service.TypeContactSensor,
	catalog.GarageDoorOpener:     service.TypeGarageDoorOpener,
	catalog.HumiditySensor:       service.TypeHumiditySensor,
	catalog.LeakSensor:           service.TypeLeakSensor,
	catalog.LightSensor:          service.TypeLightSensor,
	catalog.Lightbulb:            service.TypeLightbulb,
	catalog.LockMechanism:        service.TypeLockMechanism,
	catalog.MotionSensor:         service.TypeMotionSensor,
	catalog.Outlet:               service.TypeOutlet,
	catalog.SecuritySystem:       service.TypeSecuritySystem,
	catalog.SmokeSensor:          service.TypeSmokeSensor,
	catalog.Switch:               service.TypeSwitch,
	catalog.TemperatureSensor:    service.TypeTemperatureSensor,
	catalog.Thermostat:           service.TypeThermostat,
	catalog.WindowCovering:       service.TypeWindowCovering,
}

var characteristicConstructors = map[catalog.Characteristic]func() *characteristic.C{
	catalog.BatteryLevel:               func() *characteristic.C { return characteristic.NewBatteryLevel().C },
	catalog.Brightness:                 func() *characteristic.C { return characteristic.NewBrightness().C },
	catalog.CarbonMonoxideDetected:     func() *characteristic.C { return characteristic.NewCarbonMonoxideDetected().C },
	catalog.CarbonMonoxideLevel:        func() *characteristic.C { return characteristic.NewCarbonMonoxideLevel().C },
	catalog.CarbonMonoxidePeakLevel:    func() *characteristic.C { return characteristic.NewCarbonMonoxidePeakLevel().C },
	catalog.ChargingState:              func() *characteristic.C { return characteristic.NewChargingState().C },
	catalog.ContactSensorState:         func() *characteristic.C { return characteristic.NewContactSensorState().C },
	catalog.CurrentAmbientLightLevel:   func() *characteristic.C { return characteristic.NewCurrentAmbientLightLevel().C },
	catalog.CurrentDoorState:           func() *characteristic.C { return characteristic.NewCurrentDoorState().C },
	catalog.CurrentHeatingCoolingState: func() *characteristic.C { return characteristic.NewCurrentHeatingCoolingState().C },
	catalog.CurrentHorizontalTiltAngle: func() *characteristic.C { return characteristic.NewCurrentHorizontalTiltAngle().C },
	catalog.CurrentPosition:            func() *characteristic.C { return characteristic.NewCurrentPosition().C },
	catalog.CurrentRelativeHumidity:    func() *characteristic.C { return characteristic.NewCurrentRelativeHumidity().C },
	catalog.CurrentTemperature:         func() *characteristic.C { return characteristic.NewCurrentTemperature().C },
	catalog.Hue:                        func() *characteristic.C { return characteristic.NewHue().C },
	catalog.LeakDetected:               func() *characteristic.C { return characteristic.NewLeakDetected().C },
	catalog.LockCurrentState:           func() *characteristic.C { return characteristic.NewLockCurrentState().C },
	catalog.LockTargetState:            func() *characteristic.C { return characteristic.NewLockTargetState().C },
	catalog.MotionDetected:             func() *characteristic.C { return characteristic.NewMotionDetected().C },
	catalog.ObstructionDetected:        func() *characteristic.C { return characteristic.NewObstructionDetected().C },
	catalog.On:                         func() *characteristic.C { return characteristic.NewOn().C },
	catalog.OutletInUse:                func() *characteristic.C { return characteristic.NewOutletInUse().C },
	catalog.PositionState:              func() *characteristic.C { return characteristic.NewPositionState().C },
	catalog.Saturation:                 func() *characteristic.C { return characteristic.NewSaturation().C },
	catalog.SecuritySystemCurrentState: func() *characteristic.C { return characteristic.NewSecuritySystemCurrentState().C },
	catalog.SecuritySystemTargetState:  func() *characteristic.C { return characteristic.NewSecuritySystemTargetState().C },
	catalog.SmokeDetected:              func() *characteristic.C { return characteristic.NewSmokeDetected().C },
	catalog.StatusLowBattery:           func() *characteristic.C { return characteristic.NewStatusLowBattery().C },
	catalog.TargetDoorState:            func() *characteristic.C { return characteristic.NewTargetDoorState().C },
	catalog.TargetHeatingCoolingState:  func() *characteristic.C { return characteristic.NewTargetHeatingCoolingState().C },
	catalog.TargetHorizontalTiltAngle:  func() *characteristic.C { return characteristic.NewTargetHorizontalTiltAngle().C },
	catalog.TargetPosition:             func() *characteristic.C { return characteristic.NewTargetPosition().C },
	catalog.TargetTemperature:          func() *characteristic.C { return characteristic.NewTargetTemperature().C },
	catalog.TemperatureDisplayUnits:    func() *characteristic.C { return characteristic.NewTemperatureDisplayUnits().C },
}

// newHAPService creates an empty HAP service of the given kind.
func newHAPService(kind catalog.Service) (*service.S, error) {
	typ, ok := serviceTypes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, kind)
	}
	return service.New(typ), nil
}

// newHAPCharacteristic creates a HAP characteristic of the given kind with
// its default permissions and range.
func newHAPCharacteristic(kind catalog.Characteristic) (*characteristic.C, error) {
	ctor, ok := characteristicConstructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharacteristic, kind)
	}
	return ctor(), nil
}
