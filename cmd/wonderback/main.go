// Wonderback - TalkBack accessibility audit server
//
// Wonderback receives TalkBack utterance streams from an on-device agent,
// runs them through a local LLM to surface accessibility issues, and relays
// skill commands (taps, swipes, text entry) back to the device. It is built
// to run on a developer workstation next to Ollama with zero setup.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mccartykim/wonderback/migrations"

	"github.com/mccartykim/wonderback/internal/analysis"
	"github.com/mccartykim/wonderback/internal/api"
	"github.com/mccartykim/wonderback/internal/device"
	"github.com/mccartykim/wonderback/internal/discovery"
	"github.com/mccartykim/wonderback/internal/infrastructure/config"
	"github.com/mccartykim/wonderback/internal/infrastructure/database"
	"github.com/mccartykim/wonderback/internal/infrastructure/influxdb"
	"github.com/mccartykim/wonderback/internal/infrastructure/logging"
	"github.com/mccartykim/wonderback/internal/infrastructure/mqtt"
	"github.com/mccartykim/wonderback/internal/session"
	"github.com/mccartykim/wonderback/internal/settings"
	"github.com/mccartykim/wonderback/internal/skills"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main so cleanup runs through
// defers and exit codes stay in one place.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Wonderback", "version", version, "commit", commit)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// Session persistence. The database is local SQLite; failing to open it
	// means a misconfigured path, which is worth stopping for.
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	sessionRepo := session.NewSQLiteRepository(db.DB)
	sessions := session.NewManager(cfg.Session.ExportDir, sessionRepo, log)

	// Device trust and the settings/skill channels.
	registry := device.NewRegistry(cfg.Auth.StaticToken)
	registry.SetLogger(log)
	if cfg.Auth.StaticToken != "" {
		log.Info("static agent token configured, auth enforcement active from boot")
	}

	deviceSettings := settings.NewManager()
	deviceSettings.SetLogger(log)

	skillQueue := skills.NewQueue()
	skillQueue.SetLogger(log)

	analyzer := analysis.NewOllamaAnalyzer(cfg.Analyzer, log)
	log.Info("analyzer configured", "model", cfg.Analyzer.Model, "host", cfg.Analyzer.Host)

	// Optional MQTT publisher for dashboards.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Optional InfluxDB metrics.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: registry,
		Settings: deviceSettings,
		Skills:   skillQueue,
		Sessions: sessions,
		Exporter: sessionRepo,
		Analyzer: analyzer,
		MQTT:     mqttClient,
		Metrics:  influxClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("closing API server", "error", closeErr)
		}
	}()

	// mDNS advertisement so the agent finds us without adb reverse.
	if cfg.Discovery.Enabled {
		mdns, err := discovery.Register(cfg.Discovery, cfg.API.Port, version, log)
		if err != nil {
			// Discovery is a convenience; the agent can still be pointed at
			// us directly.
			log.Warn("mDNS registration failed", "error", err)
		} else {
			defer mdns.Close()
		}
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	skillQueue.Clear()

	log.Info("Wonderback stopped")
	return nil
}

// loadConfig loads the config file when present and falls back to built-in
// defaults when it is not. Wonderback is a development tool and must start
// with zero setup.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("WONDERBACK_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && os.Getenv("WONDERBACK_CONFIG") == "" {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// healthCheck verifies infrastructure connections after startup.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
