// Hearth Core - Routine Automation Engine
//
// This is the main entry point for the Hearth Core controller. Hearth
// runs user-defined routines: ordered sequences of scene invocations
// and waits, fired by time-of-day, sunrise/sunset, or presence
// triggers, or invoked on demand.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/finchworks/hearth-core/migrations"

	"github.com/finchworks/hearth-core/internal/infrastructure/config"
	"github.com/finchworks/hearth-core/internal/infrastructure/database"
	"github.com/finchworks/hearth-core/internal/infrastructure/influxdb"
	"github.com/finchworks/hearth-core/internal/infrastructure/logging"
	"github.com/finchworks/hearth-core/internal/infrastructure/mqtt"
	"github.com/finchworks/hearth-core/internal/routine"
	"github.com/finchworks/hearth-core/internal/scene"
	"github.com/finchworks/hearth-core/internal/scheduler"
	"github.com/finchworks/hearth-core/internal/status"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise routine store
	repo := routine.NewSQLiteRepository(db.DB)
	store := routine.NewStore(repo)
	store.SetLogger(log)

	if refreshErr := store.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading routine store: %w", refreshErr)
	}
	log.Info("routine store initialised", "routines", store.Count())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Wire the execution engine
	qos := byte(cfg.MQTT.QoS)
	invoker := scene.NewExecutor(mqttClient, qos, log)
	sink := status.NewMQTTSink(mqttClient, qos, log)

	var recorder routine.ExecutionRecorder
	if influxClient != nil {
		recorder = influxClient
	}

	engine := routine.NewEngine(store, repo, invoker, sink, recorder, log)
	store.SetCanceller(engine)

	// Presence events feed arrival/departure triggers. A failed
	// subscription degrades those triggers to never-arm rather than
	// stopping the controller.
	var presence scheduler.PresenceSource
	if src, presErr := scheduler.NewMQTTPresenceSource(mqttClient, cfg.Presence.Topic, qos, log); presErr != nil {
		log.Warn("presence source unavailable, arrival/departure triggers disabled", "error", presErr)
	} else {
		presence = src
	}

	// Coordinates of 0,0 mean unconfigured: sunrise/sunset triggers
	// never arm rather than firing on equatorial times.
	var sun scheduler.SunProvider
	if cfg.Site.Location.Latitude != 0 || cfg.Site.Location.Longitude != 0 {
		sun = scheduler.SolarCalculator{
			Latitude:  cfg.Site.Location.Latitude,
			Longitude: cfg.Site.Location.Longitude,
		}
	}

	sched := scheduler.New(store, engine, scheduler.SystemClock{}, sun, presence, scheduler.Config{
		TickInterval: cfg.TickInterval(),
		FireWindow:   cfg.FireWindow(),
		Location:     cfg.Location(),
	}, log)
	sched.SetFiredSink(sink)
	if influxClient != nil {
		sched.SetTriggerRecorder(influxClient)
	}

	go sched.Run(ctx)
	log.Info("Hearth Core running",
		"site", cfg.Site.Name,
		"timezone", cfg.Site.Timezone,
	)

	// Block until shutdown signal
	<-ctx.Done()
	log.Info("shutdown signal received")

	// Cancel in-flight executions before the deferred closes run, so
	// cancelled runs can still record their statistics.
	engine.Shutdown()
	log.Info("execution engine stopped")

	return nil
}

// getConfigPath returns the config file path from the environment or
// the default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
