// Package playback plays songs and moves the fish in time with them.
//
// A Service owns a single worker goroutine and a bounded FIFO of audio
// chunks. PlaySong reads a song chunk by chunk and queues each chunk; the
// worker renders it on the audio output, plans and dispatches the head,
// mouth and tail movements that belong to it, and then sleeps until the
// chunk's scheduled end. Deadlines are absolute, so playback never drifts.
//
// Every session is bracketed on the status bus:
//
//	billy/state  playing_song   after metadata is loaded
//	billy/state  idle           once, when the session is torn down
//
// Teardown always runs once a session has started, whether the song
// finished, failed or was cancelled: the motors are stopped, "idle" is
// published and every Reporter receives the session Report.
//
// Controller wraps a Service for remote callers. It starts songs in the
// background and handles the billy/command/{play,stop} MQTT commands.
//
// # Usage
//
//	svc, err := playback.New(playback.Deps{
//	    Library:  song.NewLibrary(cfg.Songs.Dir),
//	    Output:   out,
//	    Actuator: motor.NewMQTTActuator(mqttClient, byte(cfg.MQTT.QoS)),
//	    Bus:      mqttClient,
//	    Logger:   log,
//	}, playback.Options{})
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	if err := svc.PlaySong(ctx, "take-me-to-the-river"); err != nil {
//	    log.Error("song failed", "error", err)
//	}
package playback
