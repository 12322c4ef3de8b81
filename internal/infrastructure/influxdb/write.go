package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/billy-core/internal/playback"
)

// Measurement names.
const (
	MeasurementSession = "billy_session"
	MeasurementState   = "billy_state"
)

// SessionPoint builds the point recorded for a finished session.
// It is timestamped at the session end.
func SessionPoint(deviceID string, r playback.Report) *write.Point {
	tags := map[string]string{
		"device_id": deviceID,
		"song":      r.Song,
		"outcome":   r.Outcome,
	}
	fields := map[string]any{
		"session_id":   r.SessionID,
		"played_s":     r.Played.Seconds(),
		"frames":       r.Frames,
		"chunks":       r.Chunks,
		"frame_rate":   r.FrameRate,
		"reached_tail": r.ReachedTail,
	}
	if r.Error != "" {
		fields["error"] = r.Error
	}
	ts := r.EndedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementSession, tags, fields, ts)
}

// StatePoint builds the point recorded when the playback state changes.
func StatePoint(deviceID string, state playback.State, at time.Time) *write.Point {
	playing := 0
	if state == playback.StatePlayingSong {
		playing = 1
	}
	return write.NewPoint(MeasurementState,
		map[string]string{"device_id": deviceID},
		map[string]any{"state": string(state), "playing": playing},
		at,
	)
}

// RecordSession writes the session point. It makes the client a
// playback.Reporter. The write is asynchronous; ctx is unused.
func (c *Client) RecordSession(_ context.Context, r playback.Report) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writeAPI.WritePoint(SessionPoint(c.deviceID, r))
	return nil
}

// WriteState records a playback state change.
func (c *Client) WriteState(state playback.State) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(StatePoint(c.deviceID, state, time.Now()))
}
