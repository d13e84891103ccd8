package shadow

import (
	"fmt"
	"strings"

	"github.com/nerrad567/hcbridge/internal/catalog"
)

// Accessory information defaults.
const (
	DefaultManufacturer = "IlCato"
	DefaultModel        = "HomeCenterBridgedAccessory"
	DefaultSerialNumber = "<unknown>"
	FirmwareRevision    = "-"
)

// LiveService is a service present on a bridge accessory.
type LiveService interface {
	// DisplayName returns the service name; false means it was never populated.
	DisplayName() (string, bool)
	IsAccessoryInformation() bool
}

// LiveCharacteristic is a characteristic of a service added during reconciliation.
type LiveCharacteristic interface {
	Kind() catalog.Characteristic
	SetBounds(catalog.Bounds)
}

// LiveAccessory is the bridge-side accessory handle.
type LiveAccessory interface {
	Services() []LiveService
	RemoveService(LiveService)
	// AddService creates the service on the accessory and returns it with its
	// characteristics in the order given by the ShadowService.
	AddService(ShadowService) (LiveService, []LiveCharacteristic)
	SetInformation(Information)
}

// Platform is the bridge the accessory is published on.
type Platform interface {
	BindEvents(c LiveCharacteristic, owner LiveService, desired ShadowService)
	Register(LiveAccessory) error
	Update(LiveAccessory) error
}

// Information is the content of the accessory information service.
type Information struct {
	Name             string
	Manufacturer     string
	Model            string
	SerialNumber     string
	FirmwareRevision string
}

// Result summarises one reconciliation.
type Result struct {
	Removed int  `json:"removed"`
	Added   int  `json:"added"`
	New     bool `json:"new"`
	// Reviewed is true once the accessory was registered or updated this pass.
	// Accessories not reviewed by the end of a pass are garbage collected.
	Reviewed bool `json:"reviewed"`
}

// SetAccessory attaches the live handle to reconcile against.
func (a *ShadowAccessory) SetAccessory(live LiveAccessory) {
	a.live = live
}

// Accessory returns the attached live handle, or nil.
func (a *ShadowAccessory) Accessory() LiveAccessory {
	return a.live
}

// Information derives the accessory information from the device snapshot.
func (a *ShadowAccessory) Information() Information {
	props := a.Device.Properties

	manufacturer := DefaultManufacturer
	if props.ZwaveCompany != nil && *props.ZwaveCompany != "" {
		manufacturer = *props.ZwaveCompany
	}
	manufacturer = strings.ReplaceAll(manufacturer, "Fibargroup", "Fibar Group")

	model := a.Device.Type
	if model == "" {
		model = DefaultModel
	}

	serial := DefaultSerialNumber
	if props.SerialNumber != nil && *props.SerialNumber != "" {
		serial = *props.SerialNumber
	}

	return Information{
		Name:             a.Name,
		Manufacturer:     manufacturer,
		Model:            model,
		SerialNumber:     serial,
		FirmwareRevision: FirmwareRevision,
	}
}

// InitAccessory writes the accessory information service.
func (a *ShadowAccessory) InitAccessory() error {
	if a.live == nil {
		return ErrNoAccessory
	}
	a.live.SetInformation(a.Information())
	return nil
}

// RemoveNoMoreExistingServices removes live services that are no longer
// desired and returns how many were removed. Accessory information and
// services with no display name are always kept.
func (a *ShadowAccessory) RemoveNoMoreExistingServices() (int, error) {
	if a.live == nil {
		return 0, ErrNoAccessory
	}

	// Snapshot first: RemoveService mutates the live list.
	current := append([]LiveService(nil), a.live.Services()...)

	removed := 0
	for _, ls := range current {
		if ls.IsAccessoryInformation() {
			continue
		}
		name, named := ls.DisplayName()
		if !named {
			continue
		}
		if _, desired := a.Service(name); desired {
			continue
		}
		a.live.RemoveService(ls)
		removed++
	}
	return removed, nil
}

// AddNewServices adds desired services missing from the live accessory,
// applies characteristic bounds and binds events once per new characteristic.
func (a *ShadowAccessory) AddNewServices(platform Platform) (int, error) {
	if a.live == nil {
		return 0, ErrNoAccessory
	}

	present := make(map[string]struct{})
	for _, ls := range a.live.Services() {
		if name, ok := ls.DisplayName(); ok {
			present[name] = struct{}{}
		}
	}

	added := 0
	for _, desired := range a.Services {
		if _, ok := present[desired.DisplayName]; ok {
			continue
		}
		owner, chars := a.live.AddService(desired)
		present[desired.DisplayName] = struct{}{}
		added++

		for _, lc := range chars {
			if b := boundsFor(desired, lc.Kind()); b != nil {
				lc.SetBounds(*b)
			}
			platform.BindEvents(lc, owner, desired)
		}
	}
	return added, nil
}

func boundsFor(s ShadowService, kind catalog.Characteristic) *catalog.Bounds {
	for _, c := range s.Characteristics {
		if c.Kind == kind {
			return c.Bounds
		}
	}
	return nil
}

// RegisterUpdateAccessory registers a new accessory or updates an existing one.
func (a *ShadowAccessory) RegisterUpdateAccessory(isNew bool, platform Platform) error {
	if a.live == nil {
		return ErrNoAccessory
	}
	if isNew {
		if err := platform.Register(a.live); err != nil {
			return fmt.Errorf("registering accessory %s: %w", a.Device.ID, err)
		}
		return nil
	}
	if err := platform.Update(a.live); err != nil {
		return fmt.Errorf("updating accessory %s: %w", a.Device.ID, err)
	}
	return nil
}

// Reconcile attaches live and brings it in line with the desired services:
// removal, then addition, then registration or update.
func (a *ShadowAccessory) Reconcile(live LiveAccessory, isNew bool, platform Platform) (Result, error) {
	a.SetAccessory(live)
	res := Result{New: isNew}

	if err := a.InitAccessory(); err != nil {
		return res, err
	}

	removed, err := a.RemoveNoMoreExistingServices()
	if err != nil {
		return res, err
	}
	res.Removed = removed

	added, err := a.AddNewServices(platform)
	if err != nil {
		return res, err
	}
	res.Added = added

	if err := a.RegisterUpdateAccessory(isNew, platform); err != nil {
		return res, err
	}
	res.Reviewed = true
	return res, nil
}
