package shadow

import (
	"github.com/nerrad567/hcbridge/internal/catalog"
)

// Subtype suffixes for services whose identity is fixed by role.
const (
	suffixLock     = "LOCK"
	suffixHarmony  = "HP"
	suffixScene    = "SC"
	suffixBattery  = "BAT"
	securitySystem = "0--"
)

// bundle is the template for the main service of a device.
type bundle struct {
	service         catalog.Service
	characteristics []catalog.Characteristic
	// subtypeSuffix, when set, fixes the subtype to "<id>--<suffix>".
	subtypeSuffix string
}

// profile describes how one family of device types is classified.
type profile struct {
	// fallback is used when the control type is absent or has no entry in byControl.
	fallback bundle
	// byControl selects a different bundle for specific control-type codes.
	byControl map[int]bundle
	// extras appends characteristics to the selected bundle for specific codes.
	extras map[int][]catalog.Characteristic
	// thermostat enables the temperature-sensor sibling override.
	thermostat bool
}

// selectBundle resolves the bundle for an optional control-type code.
func (p profile) selectBundle(code int, hasCode bool) (bundle, []catalog.Characteristic) {
	if !hasCode {
		return p.fallback, nil
	}
	b, ok := p.byControl[code]
	if !ok {
		b = p.fallback
	}
	return b, p.extras[code]
}

var (
	lightOnOff = bundle{
		service:         catalog.Lightbulb,
		characteristics: []catalog.Characteristic{catalog.On},
	}
	lightDimmable = bundle{
		service:         catalog.Lightbulb,
		characteristics: []catalog.Characteristic{catalog.On, catalog.Brightness},
	}
	plainSwitch = bundle{
		service:         catalog.Switch,
		characteristics: []catalog.Characteristic{catalog.On},
	}
	lock = bundle{
		service:         catalog.LockMechanism,
		characteristics: []catalog.Characteristic{catalog.LockCurrentState, catalog.LockTargetState},
	}
)

// Control-type codes reported by the hub.
const (
	controlLighting     = 2
	controlBedsideLamp  = 5
	controlWallLamp     = 7
	controlLighting23   = 23
	controlVideoGate    = 25
	controlVenetianTilt = 55
)

// defaultProfiles returns the dispatch table keyed by hub device type.
func defaultProfiles() map[string]profile {
	table := make(map[string]profile)
	register := func(p profile, types ...string) {
		for _, t := range types {
			table[t] = p
		}
	}

	register(profile{
		fallback: plainSwitch,
		byControl: map[int]bundle{
			controlLighting:   lightDimmable,
			controlLighting23: lightDimmable,
		},
	}, "com.fibaro.multilevelSwitch", "com.fibaro.FGD212", "com.fibaro.FGWD111")

	videoGate := lock
	videoGate.subtypeSuffix = suffixLock
	register(profile{
		fallback: plainSwitch,
		byControl: map[int]bundle{
			controlLighting:    lightOnOff,
			controlBedsideLamp: lightOnOff,
			controlWallLamp:    lightOnOff,
			controlVideoGate:   videoGate,
		},
	}, "com.fibaro.binarySwitch", "com.fibaro.developer.bxs.virtualBinarySwitch", "com.fibaro.satelOutput", "com.fibaro.FGWDS221")

	register(profile{
		fallback: bundle{
			service:         catalog.GarageDoorOpener,
			characteristics: []catalog.Characteristic{catalog.CurrentDoorState, catalog.TargetDoorState, catalog.ObstructionDetected},
		},
	}, "com.fibaro.barrier")

	register(profile{
		fallback: bundle{
			service:         catalog.WindowCovering,
			characteristics: []catalog.Characteristic{catalog.CurrentPosition, catalog.TargetPosition, catalog.PositionState},
		},
		extras: map[int][]catalog.Characteristic{
			controlVenetianTilt: {catalog.CurrentHorizontalTiltAngle, catalog.TargetHorizontalTiltAngle},
		},
	}, "com.fibaro.FGR221", "com.fibaro.FGRM222", "com.fibaro.FGR223", "com.fibaro.rollerShutter", "com.fibaro.FGWR111")

	register(profile{
		fallback: bundle{service: catalog.MotionSensor, characteristics: []catalog.Characteristic{catalog.MotionDetected}},
	}, "com.fibaro.FGMS001", "com.fibaro.FGMS001v2", "com.fibaro.motionSensor")

	register(profile{
		fallback: bundle{service: catalog.TemperatureSensor, characteristics: []catalog.Characteristic{catalog.CurrentTemperature}},
	}, "com.fibaro.temperatureSensor")

	register(profile{
		fallback: bundle{service: catalog.HumiditySensor, characteristics: []catalog.Characteristic{catalog.CurrentRelativeHumidity}},
	}, "com.fibaro.humiditySensor")

	register(profile{
		fallback: bundle{service: catalog.ContactSensor, characteristics: []catalog.Characteristic{catalog.ContactSensorState}},
	}, "com.fibaro.binarySensor", "com.fibaro.doorSensor", "com.fibaro.FGDW002", "com.fibaro.windowSensor", "com.fibaro.satelZone")

	register(profile{
		fallback: bundle{service: catalog.LeakSensor, characteristics: []catalog.Characteristic{catalog.LeakDetected}},
	}, "com.fibaro.FGFS101", "com.fibaro.floodSensor")

	register(profile{
		fallback: bundle{service: catalog.SmokeSensor, characteristics: []catalog.Characteristic{catalog.SmokeDetected}},
	}, "com.fibaro.FGSS001", "com.fibaro.smokeSensor", "com.fibaro.gasDetector")

	register(profile{
		fallback: bundle{
			service: catalog.CarbonMonoxideSensor,
			characteristics: []catalog.Characteristic{
				catalog.CarbonMonoxideDetected,
				catalog.CarbonMonoxideLevel,
				catalog.CarbonMonoxidePeakLevel,
				catalog.BatteryLevel,
			},
		},
	}, "com.fibaro.FGCD001")

	register(profile{
		fallback: bundle{service: catalog.LightSensor, characteristics: []catalog.Characteristic{catalog.CurrentAmbientLightLevel}},
	}, "com.fibaro.lightSensor")

	register(profile{
		fallback: bundle{service: catalog.Outlet, characteristics: []catalog.Characteristic{catalog.On, catalog.OutletInUse}},
	}, "com.fibaro.FGWP101", "com.fibaro.FGWP102", "com.fibaro.FGWPG111", "com.fibaro.FGWOEF011")

	register(profile{fallback: lock}, "com.fibaro.doorLock", "com.fibaro.gerda")

	register(profile{
		fallback: bundle{
			service: catalog.Thermostat,
			characteristics: []catalog.Characteristic{
				catalog.CurrentTemperature,
				catalog.TargetTemperature,
				catalog.CurrentHeatingCoolingState,
				catalog.TargetHeatingCoolingState,
				catalog.TemperatureDisplayUnits,
			},
		},
		thermostat: true,
	}, "com.fibaro.setPoint", "com.fibaro.thermostatDanfoss", "com.fibaro.com.fibaro.thermostatHorstmann", "com.fibaro.FGT001", "com.fibaro.hvacSystem")

	register(profile{
		fallback: bundle{
			service:         catalog.Lightbulb,
			characteristics: []catalog.Characteristic{catalog.On, catalog.Brightness, catalog.Hue, catalog.Saturation},
		},
	}, "com.fibaro.FGRGBW441M", "com.fibaro.colorController", "com.fibaro.FGRGBW442", "com.fibaro.FGRGBW442CC")

	register(profile{
		fallback: bundle{
			service:         catalog.Switch,
			characteristics: []catalog.Characteristic{catalog.On},
			subtypeSuffix:   suffixHarmony,
		},
	}, "com.fibaro.logitechHarmonyActivity")

	return table
}
