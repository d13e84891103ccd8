// hcbridge publishes the devices of a Fibaro Home Center hub as a HomeKit
// bridge.
//
// Each sync pass polls the hub, classifies every device into HomeKit
// services and reconciles the published accessories against that shadow.
// Pass results are stored in SQLite and, when enabled, published over MQTT,
// written to InfluxDB and streamed to WebSocket clients of the status API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/hcbridge/migrations"

	"github.com/nerrad567/hcbridge/internal/api"
	"github.com/nerrad567/hcbridge/internal/homekit"
	"github.com/nerrad567/hcbridge/internal/hub"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/infrastructure/database"
	"github.com/nerrad567/hcbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hcbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/hcbridge/internal/syncer"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting hcbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	applied, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", applied)

	hubClient, err := hub.NewClient(cfg.Hub)
	if err != nil {
		return fmt.Errorf("creating hub client: %w", err)
	}

	checks := map[string]api.HealthChecker{"database": db}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	platform := homekit.NewPlatform(homekit.NewSQLiteRegistry(db.DB), hubClient, log)
	if loadErr := platform.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading accessory registry: %w", loadErr)
	}
	log.Info("accessory registry loaded", "accessories", len(platform.Records()))

	passes := syncer.NewPassStore(db.DB)
	loop := syncer.New(cfg.Sync, cfg.GetPollInterval(), hubClient, platform, homekit.ShadowKey, log)
	if last, ok, lastErr := passes.Last(ctx); lastErr != nil {
		log.Warn("reading last pass failed", "error", lastErr)
	} else if ok {
		loop.SetLastReport(last)
	}
	loop.AddReporter(passes)

	if mqttClient != nil {
		loop.AddReporter(syncer.NewMQTTReporter(mqttClient))
		topic := mqtt.Topics{}.SyncCommand()
		subErr := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), func(string, []byte) error {
			loop.Trigger()
			return nil
		})
		if subErr != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, subErr)
		}
	}
	if influxClient != nil {
		loop.AddReporter(syncer.NewInfluxReporter(influxClient))
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.API.Enabled {
		wsHub := api.NewHub(log.With("component", "stream"))
		loop.AddReporter(wsHub)
		g.Go(func() error {
			wsHub.Run(gctx)
			return nil
		})

		apiServer, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log,
			Accessories: platform,
			Passes:      loop,
			History:     passes,
			Checks:      checks,
			Hub:         wsHub,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	hapServer := homekit.NewServer(cfg.HomeKit, platform, version, log)
	g.Go(func() error { return hapServer.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })

	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("hcbridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HCBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HCBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
