package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/hub"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hcbridge/internal/shadow"
)

type fakeSource struct {
	devices   []hub.Device
	scenes    []hub.Scene
	variables map[string]hub.Variable
	devErr    error
	sceneErr  error
}

func (f *fakeSource) Devices(context.Context) ([]hub.Device, error) {
	return f.devices, f.devErr
}

func (f *fakeSource) Scenes(context.Context) ([]hub.Scene, error) {
	return f.scenes, f.sceneErr
}

func (f *fakeSource) GlobalVariable(_ context.Context, name string) (hub.Variable, error) {
	v, ok := f.variables[name]
	if !ok {
		return hub.Variable{}, errors.New("no such variable")
	}
	return v, nil
}

type fakeLiveService struct{ name string }

func (s *fakeLiveService) DisplayName() (string, bool)  { return s.name, true }
func (s *fakeLiveService) IsAccessoryInformation() bool { return false }

type fakeLiveChar struct{ ch shadow.Characteristic }

func (c *fakeLiveChar) Kind() catalog.Characteristic { return c.ch.Kind }
func (c *fakeLiveChar) SetBounds(catalog.Bounds)     {}

type fakeLive struct {
	key      string
	services []shadow.LiveService
}

func (a *fakeLive) Services() []shadow.LiveService { return a.services }

func (a *fakeLive) RemoveService(ls shadow.LiveService) {
	for i, s := range a.services {
		if s == ls {
			a.services = append(a.services[:i], a.services[i+1:]...)
			return
		}
	}
}

func (a *fakeLive) AddService(s shadow.ShadowService) (shadow.LiveService, []shadow.LiveCharacteristic) {
	ls := &fakeLiveService{name: s.DisplayName}
	a.services = append(a.services, ls)
	chars := make([]shadow.LiveCharacteristic, len(s.Characteristics))
	for i, c := range s.Characteristics {
		chars[i] = &fakeLiveChar{ch: c}
	}
	return ls, chars
}

func (a *fakeLive) SetInformation(shadow.Information) {}

type fakePlatform struct {
	mu        sync.Mutex
	live      map[string]*fakeLive
	reviewed  map[string]bool
	passes    []string
	failKey   string
	inflight  map[string]int
	maxSame   int
	lookups   int
	cleanedUp bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{live: map[string]*fakeLive{}, reviewed: map[string]bool{}, inflight: map[string]int{}}
}

func fakeKey(sa *shadow.ShadowAccessory) string {
	return sa.Device.Type + "/" + sa.Device.ID
}

func (p *fakePlatform) BeginPass(passID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passes = append(p.passes, passID)
	p.reviewed = map[string]bool{}
}

func (p *fakePlatform) Lookup(sa *shadow.ShadowAccessory) (shadow.LiveAccessory, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups++
	key := fakeKey(sa)
	p.inflight[key]++
	if p.inflight[key] > p.maxSame {
		p.maxSame = p.inflight[key]
	}
	if a, ok := p.live[key]; ok {
		return a, false
	}
	return &fakeLive{key: key}, true
}

func (p *fakePlatform) BindEvents(shadow.LiveCharacteristic, shadow.LiveService, shadow.ShadowService) {
}

func (p *fakePlatform) save(live shadow.LiveAccessory) error {
	a := live.(*fakeLive)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight[a.key]--
	if a.key == p.failKey {
		return errors.New("registry write failed")
	}
	p.live[a.key] = a
	p.reviewed[a.key] = true
	return nil
}

func (p *fakePlatform) Register(live shadow.LiveAccessory) error { return p.save(live) }
func (p *fakePlatform) Update(live shadow.LiveAccessory) error   { return p.save(live) }

func (p *fakePlatform) Cleanup(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanedUp = true
	var removed []string
	for key := range p.live {
		if !p.reviewed[key] {
			removed = append(removed, key)
			delete(p.live, key)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

func dev(id, typ string) hub.Device {
	return hub.Device{ID: id, Name: "Device " + id, Type: typ, Interfaces: hub.NewInterfaceSet(), Visible: true, Enabled: true}
}

func newTestSyncer(cfg config.SyncConfig, src Source, p Platform) *Syncer {
	return New(cfg, time.Hour, src, p, fakeKey, logging.Discard())
}

func TestRunPass_RegistersThenUpdates(t *testing.T) {
	src := &fakeSource{devices: []hub.Device{
		dev("1", "com.fibaro.binarySwitch"),
		dev("2", "com.fibaro.FGMS001"),
		dev("3", "com.fibaro.unknownGadget"),
	}}
	p := newFakePlatform()
	s := newTestSyncer(config.SyncConfig{Concurrency: 2}, src, p)

	r, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, r.PassID)
	assert.Equal(t, 3, r.Devices)
	assert.Equal(t, 1, r.Unsupported)
	assert.Equal(t, 2, r.Registered)
	assert.Zero(t, r.Updated)
	assert.Equal(t, 2, r.ServicesAdded)
	assert.Zero(t, r.Errors)
	assert.Empty(t, r.Removed)
	assert.Len(t, r.Events, 2)

	r2, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, r.PassID, r2.PassID)
	assert.Zero(t, r2.Registered)
	assert.Equal(t, 2, r2.Updated)
	assert.Zero(t, r2.ServicesAdded)
	assert.Empty(t, r2.Events, "unchanged accessories produce no events")

	last, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, r2.PassID, last.PassID)
}

func TestRunPass_RemovesVanishedDevices(t *testing.T) {
	src := &fakeSource{devices: []hub.Device{dev("1", "com.fibaro.binarySwitch"), dev("2", "com.fibaro.binarySwitch")}}
	p := newFakePlatform()
	s := newTestSyncer(config.SyncConfig{}, src, p)

	_, err := s.RunPass(context.Background())
	require.NoError(t, err)

	src.devices = src.devices[:1]
	r, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"com.fibaro.binarySwitch/2"}, r.Removed)
	assert.Contains(t, r.Events, AccessoryEvent{Key: "com.fibaro.binarySwitch/2", Event: EventRemoved})
}

func TestRunPass_PollFailureTouchesNothing(t *testing.T) {
	src := &fakeSource{devErr: errors.New("connection refused")}
	p := newFakePlatform()
	s := newTestSyncer(config.SyncConfig{}, src, p)

	_, err := s.RunPass(context.Background())
	require.ErrorIs(t, err, ErrPollFailed)
	assert.Empty(t, p.passes)
	assert.False(t, p.cleanedUp)
	_, ok := s.LastReport()
	assert.False(t, ok)
}

func TestRunPass_DeviceFailureIsCounted(t *testing.T) {
	src := &fakeSource{devices: []hub.Device{dev("1", "com.fibaro.binarySwitch"), dev("2", "com.fibaro.binarySwitch")}}
	p := newFakePlatform()
	p.failKey = "com.fibaro.binarySwitch/2"
	s := newTestSyncer(config.SyncConfig{}, src, p)

	r, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Errors)
	assert.Equal(t, 1, r.Registered)
	assert.True(t, r.CleanupSkipped)
	assert.False(t, p.cleanedUp)
}

func TestRunPass_SyntheticAccessories(t *testing.T) {
	src := &fakeSource{
		scenes: []hub.Scene{{ID: "4", Name: "Movie", Visible: true}},
		variables: map[string]hub.Variable{
			"Mood":    {Name: "Mood", Value: "30"},
			"Holiday": {Name: "Holiday", Value: "false"},
		},
	}
	p := newFakePlatform()
	s := newTestSyncer(config.SyncConfig{
		Scenes:         true,
		SecuritySystem: true,
		GlobalVariables: config.GlobalVariablesConfig{
			Dimmers:  []string{"Mood"},
			Switches: []string{"Holiday"},
		},
	}, src, p)

	r, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, r.Registered)
	assert.Contains(t, p.live, "scene/4")
	assert.Contains(t, p.live, "securitySystem/0")
	assert.Contains(t, p.live, "globalVariable/Mood")
	assert.Contains(t, p.live, "globalVariable/Holiday")
}

func TestRunPass_OptionalPollFailureSkipsCleanup(t *testing.T) {
	src := &fakeSource{
		devices:  []hub.Device{dev("1", "com.fibaro.binarySwitch")},
		sceneErr: errors.New("timeout"),
	}
	p := newFakePlatform()
	p.live["scene/9"] = &fakeLive{key: "scene/9"}
	s := newTestSyncer(config.SyncConfig{Scenes: true}, src, p)

	r, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.True(t, r.CleanupSkipped)
	assert.Contains(t, p.live, "scene/9")

	src.variables = nil
	s = newTestSyncer(config.SyncConfig{GlobalVariables: config.GlobalVariablesConfig{Switches: []string{"Missing"}}}, src, p)
	r, err = s.RunPass(context.Background())
	require.NoError(t, err)
	assert.True(t, r.CleanupSkipped)
	assert.Equal(t, 1, r.Errors)
}

func TestRunPass_EachDeviceOnce(t *testing.T) {
	var devices []hub.Device
	for i := range 50 {
		devices = append(devices, dev(string(rune('A'+i%26))+string(rune('a'+i/26)), "com.fibaro.binarySwitch"))
	}
	p := newFakePlatform()
	s := newTestSyncer(config.SyncConfig{Concurrency: 8}, &fakeSource{devices: devices}, p)

	r, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, r.Registered)
	assert.Equal(t, 50, p.lookups)
	assert.Equal(t, 1, p.maxSame)
}

func TestRunPass_Reporters(t *testing.T) {
	var got []Report
	var failing int
	src := &fakeSource{devices: []hub.Device{dev("1", "com.fibaro.binarySwitch")}}
	s := newTestSyncer(config.SyncConfig{}, src, newFakePlatform())
	s.AddReporter(ReporterFunc(func(_ context.Context, r Report) error {
		failing++
		return errors.New("broker down")
	}))
	s.AddReporter(ReporterFunc(func(_ context.Context, r Report) error {
		got = append(got, r)
		return nil
	}))

	r, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, failing)
	require.Len(t, got, 1)
	assert.Equal(t, r.PassID, got[0].PassID)
}

func TestRunPass_Serialised(t *testing.T) {
	s := newTestSyncer(config.SyncConfig{}, &fakeSource{}, newFakePlatform())
	s.running.Lock()
	_, err := s.RunPass(context.Background())
	s.running.Unlock()
	assert.ErrorIs(t, err, ErrPassRunning)
}

func TestRun_TriggerAndStop(t *testing.T) {
	passes := make(chan Report, 4)
	s := newTestSyncer(config.SyncConfig{}, &fakeSource{}, newFakePlatform())
	s.AddReporter(ReporterFunc(func(_ context.Context, r Report) error {
		passes <- r
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-passes:
	case <-time.After(5 * time.Second):
		t.Fatal("initial pass did not run")
	}

	s.Trigger()
	s.Trigger()
	select {
	case <-passes:
	case <-time.After(5 * time.Second):
		t.Fatal("triggered pass did not run")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
