package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/billy-core/internal/api"
	"github.com/nerrad567/billy-core/internal/audio"
	"github.com/nerrad567/billy-core/internal/history"
	"github.com/nerrad567/billy-core/internal/infrastructure/config"
	"github.com/nerrad567/billy-core/internal/infrastructure/database"
	"github.com/nerrad567/billy-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/billy-core/internal/infrastructure/logging"
	"github.com/nerrad567/billy-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/billy-core/internal/motor"
	"github.com/nerrad567/billy-core/internal/movement"
	"github.com/nerrad567/billy-core/internal/playback"
	"github.com/nerrad567/billy-core/internal/song"
	"github.com/nerrad567/billy-core/migrations"
)

// app holds the wired components shared by serve and play.
type app struct {
	cfg *config.Config
	log *logging.Logger

	library *song.Library
	output  audio.Output
	mqtt    *mqtt.Client // nil when the broker is unreachable
	db      *database.DB // nil when the database is disabled
	history *history.SQLiteRepository
	influx  *influxdb.Client // nil when InfluxDB is disabled or unreachable
	hub     *api.Hub
	service *playback.Service

	closers []func() error
}

// newApp wires every component. Optional infrastructure that fails to
// come up (MQTT, InfluxDB) is logged and left out; required pieces
// (audio output, database when enabled) fail the call.
//
// Parameters:
//   - ctx: Context for connection setup
//   - cfg: Application configuration
//   - log: Logger instance
//
// Returns:
//   - *app: Wired application; call Close when done
//   - error: If a required component cannot be created
func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, library: song.NewLibrary(cfg.Songs.Dir)}
	defer func() {
		if err != nil {
			if closeErr := a.Close(); closeErr != nil {
				log.Error("error releasing partially started app", "error", closeErr)
			}
		}
	}()

	a.output, err = audio.Open(cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("opening audio output: %w", err)
	}
	a.onClose("audio output", a.output.Close)
	log.Info("audio output ready", "backend", cfg.Audio.Backend)

	a.connectMQTT()

	if cfg.Database.Enabled {
		if err := a.openDatabase(ctx); err != nil {
			return nil, err
		}
	} else {
		log.Info("play history disabled")
	}

	if cfg.InfluxDB.Enabled {
		a.connectInfluxDB(ctx)
	} else {
		log.Info("InfluxDB disabled")
	}

	a.hub = api.NewHub(cfg.WebSocket, log)

	deps := playback.Deps{
		Library:   a.library,
		Output:    a.output,
		Actuator:  a.actuator(),
		Hub:       eventFanout{hub: a.hub, influx: a.influx},
		Reporters: a.reporters(),
		Logger:    log,
	}
	if a.mqtt != nil {
		deps.Bus = a.mqtt
	}

	a.service, err = playback.New(deps, playback.Options{
		ChunkFrames: cfg.Playback.ChunkFrames,
		QueueDepth:  cfg.Playback.QueueDepth,
		Movement: movement.Options{
			IdleAmplitude:    cfg.Movement.IdleAmplitude,
			MouthThreshold:   cfg.Movement.MouthThreshold,
			KeyframeHold:     cfg.KeyframeHold(),
			TailFlapDuration: cfg.TailFlapDuration(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating playback service: %w", err)
	}
	a.onClose("playback service", a.service.Close)

	return a, nil
}

// connectMQTT connects to the broker. Without a broker Billy still plays
// songs; motor commands are logged instead of sent.
func (a *app) connectMQTT() {
	client, err := mqtt.Connect(a.cfg.MQTT)
	if err != nil {
		a.log.Warn("MQTT unavailable, motor commands will only be logged",
			"broker", fmt.Sprintf("%s:%d", a.cfg.MQTT.Broker.Host, a.cfg.MQTT.Broker.Port),
			"error", err,
		)
		return
	}
	client.SetLogger(a.log)
	client.SetOnConnect(func() {
		a.log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		a.log.Warn("MQTT disconnected", "error", err)
	})
	a.mqtt = client
	a.onClose("MQTT", client.Close)
	a.log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", a.cfg.MQTT.Broker.Host, a.cfg.MQTT.Broker.Port),
		"client_id", a.cfg.MQTT.Broker.ClientID,
	)
}

func (a *app) openDatabase(ctx context.Context) error {
	db, err := database.Open(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	a.onClose("database", db.Close)
	a.log.Info("database connected", "path", db.Path())

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	a.log.Info("database migrations complete")

	a.history = history.NewSQLiteRepository(db.DB)
	return nil
}

// connectInfluxDB connects the telemetry writer. Telemetry is best
// effort, so a connection failure only disables it.
func (a *app) connectInfluxDB(ctx context.Context) {
	client, err := influxdb.Connect(ctx, a.cfg.InfluxDB, a.cfg.Device.ID)
	if err != nil {
		a.log.Warn("InfluxDB unavailable, telemetry disabled", "url", a.cfg.InfluxDB.URL, "error", err)
		return
	}
	client.SetOnError(func(err error) {
		a.log.Error("InfluxDB write error", "error", err)
	})
	a.influx = client
	a.onClose("InfluxDB", client.Close)
	a.log.Info("InfluxDB connected",
		"url", a.cfg.InfluxDB.URL,
		"org", a.cfg.InfluxDB.Org,
		"bucket", a.cfg.InfluxDB.Bucket,
	)
}

func (a *app) actuator() movement.Actuator {
	if a.mqtt == nil {
		return motor.NewLogActuator(a.log)
	}
	return motor.NewMQTTActuator(a.mqtt, byte(a.cfg.MQTT.QoS)) //nolint:gosec // QoS validated to 0-2
}

// reporters returns the sinks that receive each finished session.
func (a *app) reporters() []playback.Reporter {
	var out []playback.Reporter
	if a.history != nil {
		out = append(out, a.history)
	}
	if a.influx != nil {
		out = append(out, a.influx)
	}
	if a.mqtt != nil {
		out = append(out, sessionEventReporter(a.mqtt, byte(a.cfg.MQTT.QoS))) //nolint:gosec // QoS validated to 0-2
	}
	return out
}

// healthCheckers returns the components /health reports on.
func (a *app) healthCheckers() map[string]api.HealthChecker {
	checks := make(map[string]api.HealthChecker)
	if a.db != nil {
		checks["database"] = a.db
	}
	if a.mqtt != nil {
		checks["mqtt"] = a.mqtt
	}
	if a.influx != nil {
		checks["influxdb"] = a.influx
	}
	return checks
}

func (a *app) onClose(name string, fn func() error) {
	a.closers = append(a.closers, func() error {
		a.log.Info("closing " + name)
		if err := fn(); err != nil {
			return fmt.Errorf("closing %s: %w", name, err)
		}
		return nil
	})
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// publisher is the subset of the MQTT client the session reporter needs.
type publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// sessionEventReporter publishes each finished session as JSON on
// billy/session/finished.
func sessionEventReporter(pub publisher, qos byte) playback.Reporter {
	topic := mqtt.Topics{}.SessionEvent("finished")
	return playback.ReporterFunc(func(_ context.Context, r playback.Report) error {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding session report: %w", err)
		}
		return pub.Publish(topic, payload, qos, false)
	})
}

// eventFanout forwards playback events to the WebSocket hub and records
// state changes in InfluxDB.
type eventFanout struct {
	hub    playback.Hub
	influx *influxdb.Client
}

func (f eventFanout) Broadcast(channel string, payload any) {
	if f.hub != nil {
		f.hub.Broadcast(channel, payload)
	}
	if ev, ok := payload.(playback.StateEvent); ok && f.influx != nil {
		f.influx.WriteState(ev.State)
	}
}
