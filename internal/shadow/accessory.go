package shadow

import (
	"fmt"

	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/hub"
)

// VariableKind selects how a global variable is rendered.
type VariableKind byte

const (
	// VariableDimmer renders a numeric variable as a dimmable light.
	VariableDimmer VariableKind = 'D'
	// VariableSwitch renders a variable as an on/off switch.
	VariableSwitch VariableKind = 'G'
)

// securitySystemName is the fixed display name of the unified alarm service.
const securitySystemName = "FibaroSecuritySystem"

// Snapshot is an immutable copy of the device fields an accessory needs.
type Snapshot struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties hub.Properties `json:"properties"`
}

// ShadowAccessory is the desired state of one bridge accessory for one pass.
type ShadowAccessory struct {
	Name     string          `json:"name"`
	RoomID   string          `json:"room_id,omitempty"`
	Services []ShadowService `json:"services"`
	Device   Snapshot        `json:"device"`

	// IsSecuritySystem marks synthetic accessories (scenes, global
	// variables, the alarm panel) that have no physical hub device behind them.
	IsSecuritySystem bool `json:"is_security_system"`

	live LiveAccessory
}

func newShadowAccessory(device hub.Device, services []ShadowService, synthetic bool) *ShadowAccessory {
	return &ShadowAccessory{
		Name:     device.Name,
		RoomID:   device.RoomID,
		Services: services,
		Device: Snapshot{
			ID:         device.ID,
			Name:       device.Name,
			Type:       device.Type,
			Properties: device.Properties.Clone(),
		},
		IsSecuritySystem: synthetic,
	}
}

// NewShadowAccessory classifies device and wraps the result. It returns
// ErrUnsupportedDevice when the device type has no mapping.
func (c *Classifier) NewShadowAccessory(device hub.Device, siblings hub.Siblings) (*ShadowAccessory, error) {
	services, ok := c.Classify(device, siblings)
	if !ok {
		return nil, fmt.Errorf("%w: %q (device %s)", ErrUnsupportedDevice, device.Type, device.ID)
	}
	return newShadowAccessory(device, services, false), nil
}

// NewGlobalVariableAccessory builds an accessory for a hub global variable.
func NewGlobalVariableAccessory(device hub.Device, kind VariableKind) (*ShadowAccessory, error) {
	var s ShadowService
	switch kind {
	case VariableDimmer:
		s = newService(catalog.Lightbulb, device.Name, catalog.On, catalog.Brightness)
	case VariableSwitch:
		s = newService(catalog.Switch, device.Name, catalog.On)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVariableType, string(kind))
	}
	s.Subtype = string(kind) + "-" + device.Name + "-"

	services := []ShadowService{s}
	finalize(services, device.ID)
	return newShadowAccessory(device, services, true), nil
}

// NewSecuritySystemAccessory builds the single alarm-panel accessory.
func NewSecuritySystemAccessory(device hub.Device) *ShadowAccessory {
	s := newService(catalog.SecuritySystem, securitySystemName,
		catalog.SecuritySystemCurrentState, catalog.SecuritySystemTargetState)
	s.Subtype = securitySystem

	services := []ShadowService{s}
	finalize(services, device.ID)
	return newShadowAccessory(device, services, true)
}

// NewSceneAccessory builds a momentary switch that starts a hub scene.
func NewSceneAccessory(device hub.Device) *ShadowAccessory {
	s := newService(catalog.Switch, device.Name, catalog.On)
	s.Subtype = roleSubtype(device.ID, suffixScene)

	services := []ShadowService{s}
	finalize(services, device.ID)
	return newShadowAccessory(device, services, true)
}

// Service returns the desired service with the given display name.
func (a *ShadowAccessory) Service(displayName string) (ShadowService, bool) {
	for _, s := range a.Services {
		if s.DisplayName == displayName {
			return s, true
		}
	}
	return ShadowService{}, false
}
