package hub

import (
	"sort"
	"strconv"
)

// Siblings maps a device-type tag to another device in the same physical unit.
type Siblings map[string]Device

// Get returns the sibling of the given type, if any.
func (s Siblings) Get(deviceType string) (Device, bool) {
	d, ok := s[deviceType]
	return d, ok
}

// SiblingIndex groups devices by parent so siblings can be looked up per device.
type SiblingIndex struct {
	byParent map[string][]Device
}

// NewSiblingIndex indexes devices by their parent id. Devices without a parent
// have no siblings.
func NewSiblingIndex(devices []Device) *SiblingIndex {
	idx := &SiblingIndex{byParent: make(map[string][]Device)}
	for _, d := range devices {
		if d.ParentID == "" {
			continue
		}
		idx.byParent[d.ParentID] = append(idx.byParent[d.ParentID], d)
	}
	for parent := range idx.byParent {
		group := idx.byParent[parent]
		sort.SliceStable(group, func(i, j int) bool {
			return lessID(group[i].ID, group[j].ID)
		})
	}
	return idx
}

// For returns the siblings of device keyed by type. When two siblings share a
// type the one with the lowest id wins, so the result is deterministic.
func (idx *SiblingIndex) For(device Device) Siblings {
	siblings := Siblings{}
	if idx == nil || device.ParentID == "" {
		return siblings
	}
	for _, d := range idx.byParent[device.ParentID] {
		if d.ID == device.ID {
			continue
		}
		if _, taken := siblings[d.Type]; !taken {
			siblings[d.Type] = d
		}
	}
	return siblings
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}
