package homekit

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/brutella/hap/accessory"

	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hcbridge/internal/shadow"
)

const (
	// bridgeAID is reserved for the bridge accessory itself.
	bridgeAID uint64 = 1

	registryTimeout = 10 * time.Second
)

// Platform owns the accessories published on the bridge and implements
// shadow.Platform. It keeps the registry in step with what is published
// and signals topology changes so the HAP server can be restarted.
type Platform struct {
	registry Registry
	commands CommandSink
	logger   *logging.Logger

	mu          sync.RWMutex
	accessories map[string]*Accessory
	reviewed    map[string]bool
	passID      string
	nextAID     uint64

	changed chan struct{}
}

// NewPlatform creates a platform. commands may be nil, in which case
// writes from HomeKit are logged and dropped.
func NewPlatform(registry Registry, commands CommandSink, logger *logging.Logger) *Platform {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Platform{
		registry:    registry,
		commands:    commands,
		logger:      logger.With("component", "homekit"),
		accessories: make(map[string]*Accessory),
		reviewed:    make(map[string]bool),
		nextAID:     bridgeAID + 1,
		changed:     make(chan struct{}, 1),
	}
}

// Load rebuilds the published accessories from the registry and binds
// their events. It is called once before the first pass.
func (p *Platform) Load(ctx context.Context) error {
	records, err := p.registry.List(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, rec := range records {
		acc := newAccessory(rec.Key, rec.AID, rec.Name)
		acc.deviceID = deviceIDFromKey(rec.DeviceType, rec.Key)
		acc.deviceType = rec.DeviceType
		acc.roomID = rec.RoomID
		acc.synthetic = rec.IsSecuritySystem
		acc.reviewedPass = rec.ReviewedPass
		acc.reserveIIDs(rec.NextIID)

		for _, svcRec := range rec.Services {
			desired := shadow.ShadowService{
				Kind:            svcRec.Kind,
				DisplayName:     svcRec.DisplayName,
				Subtype:         svcRec.Subtype,
				Characteristics: svcRec.Characteristics,
			}
			owner, chars := acc.restoreService(svcRec)
			for _, lc := range chars {
				if b := boundsOf(desired, lc); b != nil {
					lc.SetBounds(*b)
				}
				p.BindEvents(lc, owner, desired)
			}
		}
		if err := acc.takeErrors(); err != nil {
			p.logger.Warn("accessory restored with errors", "key", rec.Key, "error", err)
		}
		acc.takeDirty()

		p.accessories[rec.Key] = acc
		if rec.AID >= p.nextAID {
			p.nextAID = rec.AID + 1
		}
	}

	p.logger.Info("accessories restored", "count", len(records))
	return nil
}

// boundsOf returns the persisted bounds for a restored characteristic.
func boundsOf(desired shadow.ShadowService, lc shadow.LiveCharacteristic) *catalog.Bounds {
	for _, c := range desired.Characteristics {
		if c.Kind == lc.Kind() {
			return c.Bounds
		}
	}
	return nil
}

// BeginPass starts a new review round. Accessories not registered or
// updated before Cleanup are removed.
func (p *Platform) BeginPass(passID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passID = passID
	p.reviewed = make(map[string]bool, len(p.accessories))
}

// Lookup returns the published accessory for sa, or a fresh unpublished
// one when isNew is true. A fresh accessory gets its aid from Register.
func (p *Platform) Lookup(sa *shadow.ShadowAccessory) (live shadow.LiveAccessory, isNew bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := ShadowKey(sa)
	acc, ok := p.accessories[key]
	if !ok {
		acc = newAccessory(key, 0, sa.Name)
		isNew = true
	}

	acc.mu.Lock()
	acc.deviceID = sa.Device.ID
	acc.deviceType = sa.Device.Type
	acc.roomID = sa.RoomID
	acc.synthetic = sa.IsSecuritySystem
	acc.mu.Unlock()

	return acc, isNew
}

// Register allocates an aid for a new accessory, persists and publishes it.
// The aid is only consumed once the registry accepted the accessory.
func (p *Platform) Register(live shadow.LiveAccessory) error {
	acc, ok := live.(*Accessory)
	if !ok {
		return ErrNotManaged
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc.mu.Lock()
	allocated := acc.a.Id == 0
	if allocated {
		acc.a.Id = p.nextAID
	}
	acc.mu.Unlock()

	if err := p.persistLocked(acc); err != nil {
		if allocated {
			acc.mu.Lock()
			acc.a.Id = 0
			acc.mu.Unlock()
		}
		return err
	}
	if allocated {
		p.nextAID++
	}
	p.accessories[acc.key] = acc

	acc.takeDirty()
	p.notify()
	p.logger.Info("accessory registered", "key", acc.key, "aid", acc.a.Id)
	return acc.takeErrors()
}

// Update persists an already published accessory.
func (p *Platform) Update(live shadow.LiveAccessory) error {
	acc, ok := live.(*Accessory)
	if !ok {
		return ErrNotManaged
	}
	p.mu.Lock()
	err := p.persistLocked(acc)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if acc.takeDirty() {
		p.notify()
		p.logger.Info("accessory services changed", "key", acc.key)
	}
	return acc.takeErrors()
}

// persistLocked marks acc reviewed and saves it. The caller holds p.mu, which
// also serialises registry writes.
func (p *Platform) persistLocked(acc *Accessory) error {
	p.reviewed[acc.key] = true

	acc.mu.Lock()
	acc.reviewedPass = p.passID
	acc.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	if err := p.registry.Save(ctx, acc.record()); err != nil {
		return fmt.Errorf("persisting accessory %s: %w", acc.key, err)
	}
	return nil
}

// Cleanup unpublishes every accessory not reviewed since BeginPass and
// returns their keys in order.
func (p *Platform) Cleanup(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	var stale []string
	for id := range p.accessories {
		if !p.reviewed[id] {
			stale = append(stale, id)
		}
	}
	p.mu.Unlock()
	sort.Strings(stale)

	removed := make([]string, 0, len(stale))
	for _, id := range stale {
		if err := p.registry.Delete(ctx, id); err != nil {
			return removed, err
		}
		p.mu.Lock()
		delete(p.accessories, id)
		p.mu.Unlock()
		removed = append(removed, id)
		p.logger.Info("accessory removed", "key", id)
	}
	if len(removed) > 0 {
		p.notify()
	}
	return removed, nil
}

// Accessories returns the published HAP accessories ordered by aid.
func (p *Platform) Accessories() []*accessory.A {
	p.mu.RLock()
	out := make([]*accessory.A, 0, len(p.accessories))
	for _, acc := range p.accessories {
		out = append(out, acc.a)
	}
	p.mu.RUnlock()

	slices.SortFunc(out, func(a, b *accessory.A) int {
		switch {
		case a.Id < b.Id:
			return -1
		case a.Id > b.Id:
			return 1
		}
		return 0
	})
	return out
}

// Records returns the published accessories in persisted form, ordered by aid.
func (p *Platform) Records() []AccessoryRecord {
	p.mu.RLock()
	out := make([]AccessoryRecord, 0, len(p.accessories))
	for _, acc := range p.accessories {
		out = append(out, acc.record())
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AID < out[j].AID })
	return out
}

// Record returns one published accessory by key.
func (p *Platform) Record(key string) (AccessoryRecord, bool) {
	p.mu.RLock()
	acc, ok := p.accessories[key]
	p.mu.RUnlock()
	if !ok {
		return AccessoryRecord{}, false
	}
	return acc.record(), true
}

// Changes signals when the set of accessories or their services changed.
// Bursts collapse into a single pending signal.
func (p *Platform) Changes() <-chan struct{} {
	return p.changed
}

func (p *Platform) notify() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}
