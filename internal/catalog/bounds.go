package catalog

// Bounds carries numeric range metadata for a characteristic.
// A nil field leaves the bridge's default for that property untouched.
type Bounds struct {
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step *float64 `json:"step,omitempty"`
}

// Float returns a pointer to v, for building Bounds literals.
func Float(v float64) *float64 {
	return &v
}

// Clone returns an independent copy of b, or nil if b is nil.
func (b *Bounds) Clone() *Bounds {
	if b == nil {
		return nil
	}
	cpy := Bounds{}
	if b.Min != nil {
		cpy.Min = Float(*b.Min)
	}
	if b.Max != nil {
		cpy.Max = Float(*b.Max)
	}
	if b.Step != nil {
		cpy.Step = Float(*b.Step)
	}
	return &cpy
}
