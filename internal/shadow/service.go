package shadow

import "github.com/nerrad567/hcbridge/internal/catalog"

// Characteristic is one desired characteristic of a service.
type Characteristic struct {
	Kind   catalog.Characteristic `json:"kind"`
	Bounds *catalog.Bounds        `json:"bounds,omitempty"`
}

// ShadowService is one desired service together with its characteristics.
//
// DisplayName doubles as the key used to match the service against a live
// accessory. Subtype is the identity the bridge uses to re-associate state
// across restarts; it is unique within an accessory and stable across passes.
type ShadowService struct {
	Kind            catalog.Service  `json:"kind"`
	DisplayName     string           `json:"display_name"`
	Subtype         string           `json:"subtype"`
	Characteristics []Characteristic `json:"characteristics"`

	// FloatSourceID names the sibling device whose reading is authoritative
	// for CurrentTemperature. Empty means the device's own value is used.
	FloatSourceID string `json:"float_source_id,omitempty"`
}

// newService builds a service with unbounded characteristics of the given kinds.
func newService(kind catalog.Service, name string, kinds ...catalog.Characteristic) ShadowService {
	chars := make([]Characteristic, len(kinds))
	for i, k := range kinds {
		chars[i] = Characteristic{Kind: k}
	}
	return ShadowService{
		Kind:            kind,
		DisplayName:     name,
		Characteristics: chars,
	}
}

// CharacteristicKinds returns the characteristic kinds in order.
func (s ShadowService) CharacteristicKinds() []catalog.Characteristic {
	kinds := make([]catalog.Characteristic, len(s.Characteristics))
	for i, c := range s.Characteristics {
		kinds[i] = c.Kind
	}
	return kinds
}

// Has reports whether the service carries a characteristic of the given kind.
func (s ShadowService) Has(kind catalog.Characteristic) bool {
	for _, c := range s.Characteristics {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the service.
func (s ShadowService) Clone() ShadowService {
	cpy := s
	cpy.Characteristics = make([]Characteristic, len(s.Characteristics))
	for i, c := range s.Characteristics {
		cpy.Characteristics[i] = Characteristic{Kind: c.Kind, Bounds: c.Bounds.Clone()}
	}
	return cpy
}
