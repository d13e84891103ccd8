package shadow

import (
	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/hub"
)

// batteryNameSuffix is appended to the device name for the battery service.
const batteryNameSuffix = " Battery"

// characteristicBounds are the fixed ranges attached wherever a kind appears.
var characteristicBounds = map[catalog.Characteristic]catalog.Bounds{
	catalog.CurrentAmbientLightLevel: {Min: catalog.Float(0), Max: catalog.Float(100000), Step: catalog.Float(1)},
	catalog.CurrentTemperature:       {Min: catalog.Float(-50)},
}

// Classifier maps hub devices to service bundles.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	profiles map[string]profile
}

// NewClassifier returns a Classifier loaded with the built-in device table.
func NewClassifier() *Classifier {
	return &Classifier{profiles: defaultProfiles()}
}

// Supports reports whether the device type has a mapping.
func (c *Classifier) Supports(deviceType string) bool {
	_, ok := c.profiles[deviceType]
	return ok
}

// Classify returns the desired services for device. The boolean is false when
// the device type is unknown; the caller must then skip the device.
func (c *Classifier) Classify(device hub.Device, siblings hub.Siblings) ([]ShadowService, bool) {
	p, ok := c.profiles[device.Type]
	if !ok {
		return nil, false
	}

	code, hasCode := device.Properties.ControlType()
	b, extras := p.selectBundle(code, hasCode)

	kinds := make([]catalog.Characteristic, 0, len(b.characteristics)+len(extras))
	kinds = append(kinds, b.characteristics...)
	kinds = append(kinds, extras...)

	main := newService(b.service, device.Name, kinds...)
	if b.subtypeSuffix != "" {
		main.Subtype = roleSubtype(device.ID, b.subtypeSuffix)
	}
	if p.thermostat {
		applySiblingOverride(&main, device.ID, siblings)
	}

	services := []ShadowService{main}
	if device.Interfaces.Has(hub.InterfaceBattery) {
		services = append(services, batteryService(device))
	}

	finalize(services, device.ID)
	return services, true
}

// applySiblingOverride points a thermostat at its paired temperature sensor.
// A missing sibling leaves the service untouched.
func applySiblingOverride(s *ShadowService, deviceID string, siblings hub.Siblings) {
	sensor, ok := siblings.Get(hub.TypeTemperatureSensor)
	if !ok {
		return
	}
	s.FloatSourceID = sensor.ID
	base := s.Subtype
	if base == "" {
		base = deviceID + "---"
	}
	s.Subtype = base + sensor.ID
}

func batteryService(device hub.Device) ShadowService {
	s := newService(catalog.BatteryService, device.Name+batteryNameSuffix,
		catalog.BatteryLevel, catalog.ChargingState, catalog.StatusLowBattery)
	s.Subtype = roleSubtype(device.ID, suffixBattery)
	return s
}

// finalize assigns default subtypes and numeric bounds.
func finalize(services []ShadowService, deviceID string) {
	for i := range services {
		if services[i].Subtype == "" {
			services[i].Subtype = defaultSubtype(deviceID)
		}
		applyBounds(&services[i])
	}
}

func applyBounds(s *ShadowService) {
	for i := range s.Characteristics {
		if b, ok := characteristicBounds[s.Characteristics[i].Kind]; ok {
			s.Characteristics[i].Bounds = b.Clone()
		}
	}
}

func defaultSubtype(deviceID string) string {
	return deviceID + "----"
}

func roleSubtype(deviceID, suffix string) string {
	return deviceID + "--" + suffix
}
