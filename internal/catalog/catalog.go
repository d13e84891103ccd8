package catalog

// Service is a symbolic HomeKit service kind.
type Service string

// Service kinds referenced by the classifier.
const (
	AccessoryInformation Service = "AccessoryInformation"
	BatteryService       Service = "BatteryService"
	CarbonMonoxideSensor Service = "CarbonMonoxideSensor"
	ContactSensor        Service = "ContactSensor"
	GarageDoorOpener     Service = "GarageDoorOpener"
	HumiditySensor       Service = "HumiditySensor"
	LeakSensor           Service = "LeakSensor"
	LightSensor          Service = "LightSensor"
	Lightbulb            Service = "Lightbulb"
	LockMechanism        Service = "LockMechanism"
	MotionSensor         Service = "MotionSensor"
	Outlet               Service = "Outlet"
	SecuritySystem       Service = "SecuritySystem"
	SmokeSensor          Service = "SmokeSensor"
	Switch               Service = "Switch"
	TemperatureSensor    Service = "TemperatureSensor"
	Thermostat           Service = "Thermostat"
	WindowCovering       Service = "WindowCovering"
)

// Characteristic is a symbolic HomeKit characteristic kind.
type Characteristic string

// Characteristic kinds referenced by the classifier.
const (
	BatteryLevel               Characteristic = "BatteryLevel"
	Brightness                 Characteristic = "Brightness"
	CarbonMonoxideDetected     Characteristic = "CarbonMonoxideDetected"
	CarbonMonoxideLevel        Characteristic = "CarbonMonoxideLevel"
	CarbonMonoxidePeakLevel    Characteristic = "CarbonMonoxidePeakLevel"
	ChargingState              Characteristic = "ChargingState"
	ContactSensorState         Characteristic = "ContactSensorState"
	CurrentAmbientLightLevel   Characteristic = "CurrentAmbientLightLevel"
	CurrentDoorState           Characteristic = "CurrentDoorState"
	CurrentHeatingCoolingState Characteristic = "CurrentHeatingCoolingState"
	CurrentHorizontalTiltAngle Characteristic = "CurrentHorizontalTiltAngle"
	CurrentPosition            Characteristic = "CurrentPosition"
	CurrentRelativeHumidity    Characteristic = "CurrentRelativeHumidity"
	CurrentTemperature         Characteristic = "CurrentTemperature"
	Hue                        Characteristic = "Hue"
	LeakDetected               Characteristic = "LeakDetected"
	LockCurrentState           Characteristic = "LockCurrentState"
	LockTargetState            Characteristic = "LockTargetState"
	MotionDetected             Characteristic = "MotionDetected"
	ObstructionDetected        Characteristic = "ObstructionDetected"
	On                         Characteristic = "On"
	OutletInUse                Characteristic = "OutletInUse"
	PositionState              Characteristic = "PositionState"
	Saturation                 Characteristic = "Saturation"
	SecuritySystemCurrentState Characteristic = "SecuritySystemCurrentState"
	SecuritySystemTargetState  Characteristic = "SecuritySystemTargetState"
	SmokeDetected              Characteristic = "SmokeDetected"
	StatusLowBattery           Characteristic = "StatusLowBattery"
	TargetDoorState            Characteristic = "TargetDoorState"
	TargetHeatingCoolingState  Characteristic = "TargetHeatingCoolingState"
	TargetHorizontalTiltAngle  Characteristic = "TargetHorizontalTiltAngle"
	TargetPosition             Characteristic = "TargetPosition"
	TargetTemperature          Characteristic = "TargetTemperature"
	TemperatureDisplayUnits    Characteristic = "TemperatureDisplayUnits"
)

var services = []Service{
	AccessoryInformation,
	BatteryService,
	CarbonMonoxideSensor,
	ContactSensor,
	GarageDoorOpener,
	HumiditySensor,
	LeakSensor,
	LightSensor,
	Lightbulb,
	LockMechanism,
	MotionSensor,
	Outlet,
	SecuritySystem,
	SmokeSensor,
	Switch,
	TemperatureSensor,
	Thermostat,
	WindowCovering,
}

var characteristics = []Characteristic{
	BatteryLevel,
	Brightness,
	CarbonMonoxideDetected,
	CarbonMonoxideLevel,
	CarbonMonoxidePeakLevel,
	ChargingState,
	ContactSensorState,
	CurrentAmbientLightLevel,
	CurrentDoorState,
	CurrentHeatingCoolingState,
	CurrentHorizontalTiltAngle,
	CurrentPosition,
	CurrentRelativeHumidity,
	CurrentTemperature,
	Hue,
	LeakDetected,
	LockCurrentState,
	LockTargetState,
	MotionDetected,
	ObstructionDetected,
	On,
	OutletInUse,
	PositionState,
	Saturation,
	SecuritySystemCurrentState,
	SecuritySystemTargetState,
	SmokeDetected,
	StatusLowBattery,
	TargetDoorState,
	TargetHeatingCoolingState,
	TargetHorizontalTiltAngle,
	TargetPosition,
	TargetTemperature,
	TemperatureDisplayUnits,
}

var (
	serviceSet        = make(map[Service]struct{}, len(services))
	characteristicSet = make(map[Characteristic]struct{}, len(characteristics))
)

func init() {
	for _, s := range services {
		serviceSet[s] = struct{}{}
	}
	for _, c := range characteristics {
		characteristicSet[c] = struct{}{}
	}
}

// Services returns every known service kind. The returned slice is a copy.
func Services() []Service {
	out := make([]Service, len(services))
	copy(out, services)
	return out
}

// Characteristics returns every known characteristic kind. The returned slice is a copy.
func Characteristics() []Characteristic {
	out := make([]Characteristic, len(characteristics))
	copy(out, characteristics)
	return out
}

// KnownService reports whether s is part of the catalog.
func KnownService(s Service) bool {
	_, ok := serviceSet[s]
	return ok
}

// KnownCharacteristic reports whether c is part of the catalog.
func KnownCharacteristic(c Characteristic) bool {
	_, ok := characteristicSet[c]
	return ok
}
