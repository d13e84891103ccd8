package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/homekit"
	"github.com/nerrad567/hcbridge/internal/hub"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/infrastructure/database"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
)

func TestIntegration_PassesAgainstHomeKitPlatform(t *testing.T) {
	ctx := context.Background()
	dbPath := t.TempDir() + "/bridge.db"
	db, err := database.Open(config.DatabaseConfig{Path: dbPath, BusyTimeout: 5})
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck // test cleanup
	_, err = db.Migrate(ctx)
	require.NoError(t, err)

	code := 2
	dimmer := hub.Device{
		ID: "12", Name: "Kitchen", Type: "com.fibaro.FGD212",
		Properties: hub.Properties{DeviceControlType: &code},
		Interfaces: hub.NewInterfaceSet(), Visible: true, Enabled: true,
	}
	src := &fakeSource{
		devices: []hub.Device{dimmer, dev("13", "com.fibaro.doorSensor")},
		scenes:  []hub.Scene{{ID: "12", Name: "Dinner", Visible: true}},
	}
	cfg := config.SyncConfig{Concurrency: 4, Scenes: true}

	platform := homekit.NewPlatform(homekit.NewSQLiteRegistry(db.DB), nil, logging.Discard())
	store := NewPassStore(db.DB)
	s := New(cfg, time.Hour, src, platform, homekit.ShadowKey, logging.Discard())
	s.AddReporter(store)

	r, err := s.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Registered)
	assert.Zero(t, r.Errors)
	require.Len(t, platform.Accessories(), 3)

	// A restart restores identity from the registry.
	src.devices = src.devices[:1]
	restarted := homekit.NewPlatform(homekit.NewSQLiteRegistry(db.DB), nil, logging.Discard())
	require.NoError(t, restarted.Load(ctx))
	s = New(cfg, time.Hour, src, restarted, homekit.ShadowKey, logging.Discard())
	s.AddReporter(store)

	r, err = s.RunPass(ctx)
	require.NoError(t, err)
	assert.Zero(t, r.Registered)
	assert.Equal(t, 2, r.Updated)
	assert.Zero(t, r.ServicesAdded)
	assert.Equal(t, []string{"13"}, r.Removed)

	rec, ok := restarted.Record("12")
	require.True(t, ok)
	assert.Equal(t, "Kitchen", rec.Name)
	_, ok = restarted.Record("scene:12")
	assert.True(t, ok)

	last, ok, err := store.Last(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.PassID, last.PassID)
}
