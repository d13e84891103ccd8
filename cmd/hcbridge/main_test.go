package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("HCBRIDGE_CONFIG", configPath)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("HCBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingHubURL verifies validation rejects a config without a hub.
func TestRun_MissingHubURL(t *testing.T) {
	writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
`)
	t.Setenv("HCBRIDGE_HUB_URL", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without hub.url")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is invalid.
func TestRun_MissingDatabasePath(t *testing.T) {
	writeConfig(t, `
hub:
  url: "http://127.0.0.1:1"
database:
  path: ""
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("HCBRIDGE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("HCBRIDGE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown runs the bridge against a fake hub with MQTT,
// InfluxDB and the API disabled, then cancels it. HAP advertisement needs
// multicast, so a startup error is logged rather than failed.
func TestRun_StartupAndShutdown(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/devices":
			w.Write([]byte(`[{"id":7,"name":"Hall","roomID":2,"type":"com.fibaro.binarySwitch","baseType":"com.fibaro.actor","visible":true,"enabled":true,"properties":{"value":false}}]`)) //nolint:errcheck // test server
		case "/api/scenes":
			w.Write([]byte(`[]`)) //nolint:errcheck // test server
		default:
			http.NotFound(w, r)
		}
	}))
	defer fake.Close()

	tmpDir := t.TempDir()
	writeConfig(t, `
hub:
  url: "`+fake.URL+`"
  poll_interval: 60
homekit:
  store_path: "`+filepath.Join(tmpDir, "hap")+`"
  addr: "127.0.0.1:0"
database:
  path: "`+filepath.Join(tmpDir, "test.db")+`"
mqtt:
  enabled: false
influxdb:
  enabled: false
api:
  enabled: false
logging:
  level: info
  format: text
  output: stdout
`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Logf("run() returned error: %v (may be due to missing multicast)", err)
	}
}
