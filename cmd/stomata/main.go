// stomata is the backend for Thyme watering stations.
//
// It runs two listeners: the producer HTTP API, through which stations are
// provisioned and their state and configuration changed, and the station
// endpoint, where stations hold a websocket open to receive those changes
// as they happen. With MQTT enabled, station presence is published to the
// broker and commands can be sent to stations over it as well.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/technoelf/stomata/migrations"

	"github.com/technoelf/stomata/internal/api"
	"github.com/technoelf/stomata/internal/bridges/command"
	"github.com/technoelf/stomata/internal/infrastructure/config"
	"github.com/technoelf/stomata/internal/infrastructure/database"
	"github.com/technoelf/stomata/internal/infrastructure/influxdb"
	"github.com/technoelf/stomata/internal/infrastructure/logging"
	"github.com/technoelf/stomata/internal/infrastructure/mqtt"
	"github.com/technoelf/stomata/internal/notifier"
	"github.com/technoelf/stomata/internal/presence"
	"github.com/technoelf/stomata/internal/station"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

var errNotifierStopped = errors.New("notifier loop exited unexpectedly")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts every component and blocks until ctx is cancelled. It returns
// an error only for startup failures or a failed notifier loop.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting stomata",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	stations := station.NewSQLiteRepository(db.DB)
	health := map[string]api.HealthChecker{"database": db}

	var presenceDeps presence.Deps
	presenceDeps.Logger = log.With("component", "presence")

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
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		presenceDeps.Publisher = mqttClient
		health["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		presenceDeps.Writer = influxClient
		health["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// The tracker outlives ctx so the shutdown disconnects are published.
	tracker := presence.New(presence.Config{}, presenceDeps)
	trackerCtx, stopTracker := context.WithCancel(context.Background())
	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		tracker.Run(trackerCtx) //nolint:errcheck // always nil
	}()
	defer func() {
		stopTracker()
		<-trackerDone
	}()

	svc := notifier.NewService(notifierConfig(cfg.Notifier), notifier.Deps{
		Store:    stations,
		Observer: tracker,
		Logger:   log.With("component", "notifier"),
	})
	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	var loopErr error
	go func() {
		defer close(loopDone)
		loopErr = svc.Run(loopCtx)
	}()
	// The loop closes every station connection before returning.
	defer func() {
		stopLoop()
		<-loopDone
	}()

	acceptor := notifier.NewAcceptor(notifier.AcceptorConfig{
		Addr: cfg.NotifierAddr(),
		Path: cfg.Notifier.Path,
		Transport: notifier.TransportOptions{
			InboxSize:      cfg.Notifier.InboxSize,
			SendBuffer:     cfg.Notifier.SendBuffer,
			MaxMessageSize: int64(cfg.Notifier.MaxMessageSize),
			WriteTimeout:   cfg.Notifier.WriteTimeout,
		},
	}, svc)
	acceptor.SetLogger(log.With("component", "acceptor"))
	if startErr := acceptor.Start(ctx); startErr != nil {
		return fmt.Errorf("starting station listener: %w", startErr)
	}
	defer func() {
		if closeErr := acceptor.Close(); closeErr != nil {
			log.Error("error closing station listener", "error", closeErr)
		}
	}()

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log.With("component", "api"),
		Stations: stations,
		Notifier: svc,
		Health:   health,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if mqttClient != nil {
		bridge, bridgeErr := command.NewBridge(command.Options{
			Subscriber: mqttClient,
			Enqueuer:   svc,
			Store:      stations,
			Logger:     log.With("component", "command-bridge"),
			QoS:        byte(cfg.MQTT.QoS),
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating command bridge: %w", bridgeErr)
		}
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting command bridge: %w", startErr)
		}
		defer func() {
			if stopErr := bridge.Stop(); stopErr != nil {
				log.Warn("error stopping command bridge", "error", stopErr)
			}
		}()
	}

	log.Info("initialisation complete",
		"api", cfg.APIAddr(),
		"stations", acceptor.Addr(),
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case <-loopDone:
		if err := loopExitError(ctx, loopErr); err != nil {
			return err
		}
		log.Info("shutdown signal received, cleaning up")
	}

	return nil
}

// loopExitError reports whether the notifier loop stopping is a failure.
// The loop also returns when ctx is cancelled, which is a normal shutdown.
func loopExitError(ctx context.Context, loopErr error) error {
	if ctx.Err() != nil {
		return nil
	}
	if loopErr == nil {
		loopErr = errNotifierStopped
	}
	return fmt.Errorf("notifier loop stopped: %w", loopErr)
}

// getConfigPath returns STOMATA_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("STOMATA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func notifierConfig(n config.NotifierConfig) notifier.Config {
	return notifier.Config{
		TickInterval:     n.TickInterval,
		StationTimeout:   n.StationTimeout,
		HandshakeTimeout: n.EffectiveHandshakeTimeout(),
		QueueSize:        n.QueueSize,
		AcceptBacklog:    n.AcceptBacklog,
		HandshakeRate:    n.HandshakeRate,
		HandshakeBurst:   n.HandshakeBurst,
	}
}
