package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/billy-core/internal/api"
	"github.com/nerrad567/billy-core/internal/infrastructure/config"
	"github.com/nerrad567/billy-core/internal/infrastructure/logging"
	"github.com/nerrad567/billy-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/billy-core/internal/playback"
	"github.com/nerrad567/billy-core/internal/song"
)

// serve runs the long-lived service until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: Application configuration
//   - log: Logger instance
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func serve(ctx context.Context, cfg *config.Config, log *logging.Logger) (err error) {
	log.Info("starting Billy",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
		log.Info("Billy stopped")
	}()

	controller := playback.NewController(a.service, log)

	// A crash mid-song can leave a retained playing_song behind.
	notifier := a.service.Notifier()
	notifier.Publish(playback.StateIdle)
	log.Info("playback state announced", "topic", notifier.Topic(), "state", playback.StateIdle)

	if a.mqtt != nil {
		commands := mqtt.Topics{}.AllCommands()
		if subErr := a.mqtt.Subscribe(commands, byte(cfg.MQTT.QoS), controller.HandleCommand); subErr != nil { //nolint:gosec // QoS validated to 0-2
			return fmt.Errorf("subscribing to %s: %w", commands, subErr)
		}
		log.Info("listening for MQTT commands", "topic", commands)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	if cfg.Songs.Watch {
		g.Go(func() error {
			watchErr := a.library.Watch(gctx, log, func() {
				a.hub.Broadcast(ChannelLibrary, map[string]string{"event": "changed"})
			})
			if watchErr != nil {
				log.Warn("song library watcher disabled", "dir", a.library.Dir(), "error", watchErr)
			}
			return nil
		})
	}

	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Player:  controller,
			Songs:   a.library,
			History: historyStore(a),
			Health:  a.healthCheckers(),
			Hub:     a.hub,
			Version: version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
	} else {
		log.Info("HTTP API disabled")
	}

	// The controller outlives the API so in-flight requests can still
	// reach it; songs are cancelled once everything else is shutting down.
	g.Go(func() error {
		<-gctx.Done()
		controller.Close()
		return nil
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	if waitErr := g.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// ChannelLibrary is the hub channel announcing song library changes.
const ChannelLibrary = "library.changed"

// historyStore returns the history repository as an api.HistoryStore,
// keeping the interface nil when history is disabled.
func historyStore(a *app) api.HistoryStore {
	if a.history == nil {
		return nil
	}
	return a.history
}

// playOnce plays a single song in the foreground and returns when it ends
// or ctx is cancelled.
func playOnce(ctx context.Context, cfg *config.Config, log *logging.Logger, name string) (err error) {
	if err := song.ValidateName(name); err != nil {
		return err
	}
	if lib := song.NewLibrary(cfg.Songs.Dir); !lib.Exists(name) {
		return fmt.Errorf("song %q not found in %s", name, lib.Dir())
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	log.Info("playing song", "song", name)
	if playErr := a.service.PlaySong(ctx, name); playErr != nil {
		if errors.Is(playErr, context.Canceled) {
			log.Info("playback interrupted", "song", name)
			return nil
		}
		return fmt.Errorf("playing %s: %w", name, playErr)
	}
	return nil
}
