package homekit

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"

	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/shadow"
)

// Device types that route commands somewhere other than a device action.
const (
	deviceTypeScene    = "scene"
	deviceTypeVariable = "globalVariable"
)

// Hub scenes and global variables live in their own id namespaces, so
// their accessories are keyed with a prefix to keep them apart from devices.
var keyPrefixes = map[string]string{
	deviceTypeScene:    "scene:",
	deviceTypeVariable: "variable:",
}

// AccessoryKey returns the registry key of the accessory for a hub object.
func AccessoryKey(deviceType, deviceID string) string {
	return keyPrefixes[deviceType] + deviceID
}

// ShadowKey returns the registry key of the accessory for sa.
func ShadowKey(sa *shadow.ShadowAccessory) string {
	return AccessoryKey(sa.Device.Type, sa.Device.ID)
}

func deviceIDFromKey(deviceType, key string) string {
	return strings.TrimPrefix(key, keyPrefixes[deviceType])
}

// Accessory is a HAP accessory published on the bridge. It implements
// shadow.LiveAccessory.
//
// Instance ids of services and characteristics are assigned here rather than
// by the HAP server, which numbers from 1 on every start. An id is never
// handed out twice for the same accessory, so services added to a published
// accessory cannot collide with existing ones.
type Accessory struct {
	a *accessory.A

	key string

	mu           sync.Mutex
	deviceID     string
	deviceType   string
	roomID       string
	synthetic    bool
	reviewedPass string
	info         *Service
	services     []*Service
	dirty        bool
	errs         []error
	nextIID      uint64
}

// newAccessory creates an unpublished accessory. The information service
// always takes instance id 1 followed by its characteristics.
func newAccessory(key string, aid uint64, name string) *Accessory {
	if name == "" {
		name = key
	}
	a := accessory.New(accessory.Info{Name: name}, accessory.TypeOther)
	a.Id = aid
	acc := &Accessory{a: a, key: key, deviceID: key, nextIID: 1}
	acc.info = &Service{s: a.Info.S, kind: catalog.AccessoryInformation, info: true, owner: acc}
	acc.assignIIDs(a.Info.S, nil)
	return acc
}

// assignIIDs numbers s and its characteristics. Positions with a usable id
// in reuse (service first, then characteristics in order) keep it; the rest
// are allocated. The caller holds acc.mu or owns acc exclusively.
func (acc *Accessory) assignIIDs(s *service.S, reuse []uint64) {
	take := func(i int) uint64 {
		if i < len(reuse) && reuse[i] != 0 {
			if reuse[i] >= acc.nextIID {
				acc.nextIID = reuse[i] + 1
			}
			return reuse[i]
		}
		id := acc.nextIID
		acc.nextIID++
		return id
	}
	s.Id = take(0)
	for i, c := range s.Cs {
		c.Id = take(i + 1)
	}
}

// reserveIIDs makes sure ids below next are never allocated again.
func (acc *Accessory) reserveIIDs(next uint64) {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	if next > acc.nextIID {
		acc.nextIID = next
	}
}

// HAP returns the underlying HAP accessory.
func (acc *Accessory) HAP() *accessory.A {
	return acc.a
}

// Key returns the registry key of the accessory.
func (acc *Accessory) Key() string {
	return acc.key
}

// Services returns the accessory information service followed by the
// services added so far.
func (acc *Accessory) Services() []shadow.LiveService {
	acc.mu.Lock()
	defer acc.mu.Unlock()

	out := make([]shadow.LiveService, 0, len(acc.services)+1)
	out = append(out, acc.info)
	for _, s := range acc.services {
		out = append(out, s)
	}
	return out
}

// RemoveService drops ls from the accessory. Unknown services are ignored.
func (acc *Accessory) RemoveService(ls shadow.LiveService) {
	svc, ok := ls.(*Service)
	if !ok || svc.info {
		return
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	i := slices.Index(acc.services, svc)
	if i < 0 {
		return
	}
	acc.services = slices.Delete(acc.services, i, i+1)
	acc.a.Ss = slices.DeleteFunc(acc.a.Ss, func(s *service.S) bool { return s == svc.s })
	acc.dirty = true
}

// AddService builds the HAP service for desired and attaches it. A kind
// without a HAP mapping is recorded and surfaced by the next Register or Update.
func (acc *Accessory) AddService(desired shadow.ShadowService) (shadow.LiveService, []shadow.LiveCharacteristic) {
	return acc.attach(desired, nil)
}

// restoreService re-creates a persisted service with its instance ids.
func (acc *Accessory) restoreService(rec ServiceRecord) (shadow.LiveService, []shadow.LiveCharacteristic) {
	desired := shadow.ShadowService{
		Kind:            rec.Kind,
		DisplayName:     rec.DisplayName,
		Subtype:         rec.Subtype,
		Characteristics: rec.Characteristics,
	}
	reuse := append([]uint64{rec.IID}, rec.CharacteristicIIDs...)
	return acc.attach(desired, reuse)
}

func (acc *Accessory) attach(desired shadow.ShadowService, reuse []uint64) (shadow.LiveService, []shadow.LiveCharacteristic) {
	svc, err := buildService(desired)
	if err != nil {
		acc.mu.Lock()
		acc.errs = append(acc.errs, err)
		acc.mu.Unlock()
	}
	svc.owner = acc

	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.a.AddS(svc.s)
	acc.assignIIDs(svc.s, reuse)
	acc.services = append(acc.services, svc)
	acc.dirty = true

	chars := make([]shadow.LiveCharacteristic, len(svc.chars))
	for i, c := range svc.chars {
		chars[i] = c
	}
	return svc, chars
}

// SetInformation writes the accessory information service. HAP rejects an
// empty accessory name, so an unnamed device is published under its id.
func (acc *Accessory) SetInformation(info shadow.Information) {
	name := info.Name
	if name == "" {
		acc.mu.Lock()
		name = acc.deviceID
		acc.mu.Unlock()
	}
	acc.a.Info.Name.SetValue(name)
	acc.a.Info.Manufacturer.SetValue(info.Manufacturer)
	acc.a.Info.Model.SetValue(info.Model)
	acc.a.Info.SerialNumber.SetValue(info.SerialNumber)
	acc.a.Info.FirmwareRevision.SetValue(info.FirmwareRevision)
}

// takeErrors returns and clears errors collected while adding services.
func (acc *Accessory) takeErrors() error {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	err := errors.Join(acc.errs...)
	acc.errs = nil
	return err
}

// takeDirty reports whether services changed since the last call.
func (acc *Accessory) takeDirty() bool {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	d := acc.dirty
	acc.dirty = false
	return d
}

// record returns the persisted form of the accessory.
func (acc *Accessory) record() AccessoryRecord {
	acc.mu.Lock()
	defer acc.mu.Unlock()

	rec := AccessoryRecord{
		Key:              acc.key,
		DeviceID:         acc.deviceID,
		AID:              acc.a.Id,
		Name:             acc.a.Info.Name.Value(),
		RoomID:           acc.roomID,
		DeviceType:       acc.deviceType,
		IsSecuritySystem: acc.synthetic,
		ReviewedPass:     acc.reviewedPass,
		NextIID:          acc.nextIID,
		Services:         make([]ServiceRecord, 0, len(acc.services)),
	}
	for _, s := range acc.services {
		iids := make([]uint64, len(s.s.Cs))
		for i, c := range s.s.Cs {
			iids[i] = c.Id
		}
		rec.Services = append(rec.Services, ServiceRecord{
			Subtype:            s.subtype,
			Kind:               s.kind,
			DisplayName:        s.displayName,
			IID:                s.s.Id,
			CharacteristicIIDs: iids,
			Characteristics:    cloneCharacteristics(s.desired),
		})
	}
	return rec
}

// Service is a HAP service on an Accessory. It implements shadow.LiveService.
type Service struct {
	s           *service.S
	kind        catalog.Service
	displayName string
	named       bool
	subtype     string
	info        bool
	desired     []shadow.Characteristic
	chars       []*Characteristic
	owner       *Accessory
}

// DisplayName returns the service name; false when it was never set.
// An empty name set by the bridge still counts as set.
func (s *Service) DisplayName() (string, bool) {
	return s.displayName, s.named
}

// IsAccessoryInformation reports whether s is the information service.
func (s *Service) IsAccessoryInformation() bool {
	return s.info
}

// Subtype returns the stable identity of the service within its accessory.
func (s *Service) Subtype() string {
	return s.subtype
}

// Characteristic is a HAP characteristic. It implements shadow.LiveCharacteristic.
type Characteristic struct {
	c    *characteristic.C
	kind catalog.Characteristic
}

// Kind returns the catalog kind of the characteristic.
func (c *Characteristic) Kind() catalog.Characteristic {
	return c.kind
}

// SetBounds overrides the characteristic's numeric range.
func (c *Characteristic) SetBounds(b catalog.Bounds) {
	if b.Min != nil {
		c.c.MinVal = c.number(*b.Min)
	}
	if b.Max != nil {
		c.c.MaxVal = c.number(*b.Max)
	}
	if b.Step != nil {
		c.c.StepVal = c.number(*b.Step)
	}
}

func (c *Characteristic) number(v float64) any {
	if c.c.Format == characteristic.FormatFloat {
		return v
	}
	return int(v)
}

// buildService creates the HAP service, a Name characteristic carrying the
// display name and one characteristic per desired kind. On error the
// returned service is still usable but lacks the unmapped parts.
func buildService(desired shadow.ShadowService) (*Service, error) {
	var errs []error

	s, err := newHAPService(desired.Kind)
	if err != nil {
		errs = append(errs, err)
		s = service.New("")
	}

	name := characteristic.NewName()
	name.SetValue(desired.DisplayName)
	s.AddC(name.C)

	svc := &Service{
		s:           s,
		kind:        desired.Kind,
		displayName: desired.DisplayName,
		named:       true,
		subtype:     desired.Subtype,
		desired:     cloneCharacteristics(desired.Characteristics),
	}
	for _, kind := range desired.CharacteristicKinds() {
		c, err := newHAPCharacteristic(kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("service %q: %w", desired.DisplayName, err))
			continue
		}
		s.AddC(c)
		svc.chars = append(svc.chars, &Characteristic{c: c, kind: kind})
	}
	return svc, errors.Join(errs...)
}

func cloneCharacteristics(in []shadow.Characteristic) []shadow.Characteristic {
	out := make([]shadow.Characteristic, len(in))
	for i, c := range in {
		out[i] = shadow.Characteristic{Kind: c.Kind, Bounds: c.Bounds.Clone()}
	}
	return out
}
