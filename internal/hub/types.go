package hub

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Interface tags the bridge reacts to.
const (
	InterfaceBattery = "battery"
)

// TypeTemperatureSensor is the device type whose reading overrides a sibling
// thermostat's own temperature.
const TypeTemperatureSensor = "com.fibaro.temperatureSensor"

// Device is a hub-reported descriptor of one physical or virtual device.
type Device struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	RoomID     string       `json:"roomID"`
	ParentID   string       `json:"parentId,omitempty"`
	Properties Properties   `json:"properties"`
	Interfaces InterfaceSet `json:"interfaces,omitempty"`

	// Visible and Enabled default to true when the hub omits them.
	Visible bool `json:"visible"`
	Enabled bool `json:"enabled"`
}

// Properties holds the typed subset of a device's property bag.
// Every field is optional; nil means the hub did not report it.
type Properties struct {
	DeviceControlType *int    `json:"deviceControlType,omitempty"`
	ZwaveCompany      *string `json:"zwaveCompany,omitempty"`
	SerialNumber      *string `json:"serialNumber,omitempty"`
}

// ControlType returns the control-type code and whether one was reported.
func (p Properties) ControlType() (int, bool) {
	if p.DeviceControlType == nil {
		return 0, false
	}
	return *p.DeviceControlType, true
}

// Clone returns an independent copy of p.
func (p Properties) Clone() Properties {
	cpy := Properties{}
	if p.DeviceControlType != nil {
		v := *p.DeviceControlType
		cpy.DeviceControlType = &v
	}
	if p.ZwaveCompany != nil {
		v := *p.ZwaveCompany
		cpy.ZwaveCompany = &v
	}
	if p.SerialNumber != nil {
		v := *p.SerialNumber
		cpy.SerialNumber = &v
	}
	return cpy
}

// UnmarshalJSON decodes the hub's loosely typed property bag. The control type
// may be a number or a numeric string; anything else is treated as absent.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw struct {
		DeviceControlType json.RawMessage `json:"deviceControlType"`
		ZwaveCompany      json.RawMessage `json:"zwaveCompany"`
		SerialNumber      json.RawMessage `json:"serialNumber"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding properties: %w", err)
	}

	*p = Properties{
		DeviceControlType: parseLooseInt(raw.DeviceControlType),
		ZwaveCompany:      parseLooseString(raw.ZwaveCompany),
		SerialNumber:      parseLooseString(raw.SerialNumber),
	}
	return nil
}

// parseLooseInt mirrors parseInt semantics on the hub's mixed encodings:
// leading digits of a string are used, fractions are truncated.
func parseLooseInt(raw json.RawMessage) *int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.Atoi(n.String()); err == nil {
			return &i
		}
		if f, err := n.Float64(); err == nil {
			i := int(f)
			return &i
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || (end == 0 && (s[end] == '-' || s[end] == '+'))) {
		end++
	}
	i, err := strconv.Atoi(s[:end])
	if err != nil {
		return nil
	}
	return &i
}

func parseLooseString(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	// Numbers and booleans are kept in their JSON spelling.
	s = string(raw)
	return &s
}

// InterfaceSet is the set of capability tags a device declares.
type InterfaceSet map[string]struct{}

// NewInterfaceSet builds a set from tags.
func NewInterfaceSet(tags ...string) InterfaceSet {
	set := make(InterfaceSet, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// Has reports whether tag is declared.
func (s InterfaceSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted returns the tags in lexical order.
func (s InterfaceSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s InterfaceSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of tags.
func (s *InterfaceSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return fmt.Errorf("decoding interfaces: %w", err)
	}
	*s = NewInterfaceSet(tags...)
	return nil
}

// UnmarshalJSON decodes a hub device. Numeric identifiers are converted to
// strings so IDs stay stable regardless of the hub firmware's encoding.
func (d *Device) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID         json.RawMessage `json:"id"`
		Name       string          `json:"name"`
		Type       string          `json:"type"`
		RoomID     json.RawMessage `json:"roomID"`
		ParentID   json.RawMessage `json:"parentId"`
		Properties Properties      `json:"properties"`
		Interfaces InterfaceSet    `json:"interfaces"`
		Visible    *bool           `json:"visible"`
		Enabled    *bool           `json:"enabled"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding device: %w", err)
	}

	*d = Device{
		ID:         rawIdentifier(wire.ID),
		Name:       wire.Name,
		Type:       wire.Type,
		RoomID:     rawIdentifier(wire.RoomID),
		ParentID:   rawIdentifier(wire.ParentID),
		Properties: wire.Properties,
		Interfaces: wire.Interfaces,
		Visible:    wire.Visible == nil || *wire.Visible,
		Enabled:    wire.Enabled == nil || *wire.Enabled,
	}
	if d.ParentID == "0" {
		d.ParentID = ""
	}
	return nil
}

// rawIdentifier renders a JSON number or string identifier as a string.
func rawIdentifier(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// Scene is a hub scene that can be exposed as a momentary switch.
type Scene struct {
	ID      string
	Name    string
	RoomID  string
	Visible bool
}

// UnmarshalJSON decodes a hub scene.
func (s *Scene) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID      json.RawMessage `json:"id"`
		Name    string          `json:"name"`
		RoomID  json.RawMessage `json:"roomID"`
		Visible *bool           `json:"visible"`
		Hidden  *bool           `json:"hidden"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding scene: %w", err)
	}
	*s = Scene{
		ID:      rawIdentifier(wire.ID),
		Name:    wire.Name,
		RoomID:  rawIdentifier(wire.RoomID),
		Visible: (wire.Visible == nil || *wire.Visible) && (wire.Hidden == nil || !*wire.Hidden),
	}
	return nil
}

// AsDevice returns the scene in descriptor form for the scene factory.
func (s Scene) AsDevice() Device {
	return Device{
		ID:      s.ID,
		Name:    s.Name,
		Type:    "scene",
		RoomID:  s.RoomID,
		Visible: true,
		Enabled: true,
	}
}

// Variable is a hub global variable.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts string or numeric values.
func (v *Variable) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding variable: %w", err)
	}
	v.Name = wire.Name
	v.Value = ""
	if s := parseLooseString(wire.Value); s != nil {
		v.Value = *s
	}
	return nil
}

// AsDevice returns the variable in descriptor form for the global variable factory.
func (v Variable) AsDevice() Device {
	return Device{
		ID:      v.Name,
		Name:    v.Name,
		Type:    "globalVariable",
		Visible: true,
		Enabled: true,
	}
}

// SecuritySystemDevice is the synthetic descriptor for the hub's alarm.
func SecuritySystemDevice() Device {
	return Device{
		ID:      "0",
		Name:    "FibaroSecuritySystem",
		Type:    "securitySystem",
		Visible: true,
		Enabled: true,
	}
}
