package influxdb_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/billy-core/internal/infrastructure/config"
	"github.com/nerrad567/billy-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/billy-core/internal/playback"
)

// testConfig matches the local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "billy-dev-token",
		Org:           "billy",
		Bucket:        "billy",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

// connectOrSkip skips unless a local InfluxDB answers.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION to run InfluxDB tests")
	}
	c, err := influxdb.Connect(context.Background(), testConfig(), "billy-test")
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func tags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fields(p *write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestSessionPoint(t *testing.T) {
	ended := time.Date(2026, 3, 1, 20, 3, 0, 0, time.UTC)
	p := influxdb.SessionPoint("billy-kitchen", playback.Report{
		SessionID:   "sess-1",
		Song:        "river",
		EndedAt:     ended,
		Played:      90 * time.Second,
		Frames:      3_969_000,
		Chunks:      3876,
		FrameRate:   44100,
		ReachedTail: true,
		Outcome:     playback.OutcomeCompleted,
	})

	if p.Name() != influxdb.MeasurementSession {
		t.Errorf("Name() = %q, want %q", p.Name(), influxdb.MeasurementSession)
	}
	if !p.Time().Equal(ended) {
		t.Errorf("Time() = %v, want %v", p.Time(), ended)
	}

	tg := tags(p)
	if tg["device_id"] != "billy-kitchen" || tg["song"] != "river" || tg["outcome"] != "completed" {
		t.Errorf("tags = %v", tg)
	}

	f := fields(p)
	if f["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", f["session_id"])
	}
	if f["played_s"] != 90.0 {
		t.Errorf("played_s = %v, want 90", f["played_s"])
	}
	if f["frames"] != int64(3_969_000) || f["chunks"] != int64(3876) {
		t.Errorf("frames/chunks = %v/%v", f["frames"], f["chunks"])
	}
	if f["reached_tail"] != true {
		t.Errorf("reached_tail = %v", f["reached_tail"])
	}
	if _, ok := f["error"]; ok {
		t.Error("error field set for a clean session")
	}
}

func TestSessionPoint_Failed(t *testing.T) {
	p := influxdb.SessionPoint("billy", playback.Report{
		Song:    "river",
		Outcome: playback.OutcomeFailed,
		Error:   "playback: audio output failed",
	})
	if fields(p)["error"] != "playback: audio output failed" {
		t.Errorf("fields = %v", fields(p))
	}
	if p.Time().IsZero() {
		t.Error("point without timestamp")
	}
}

func TestStatePoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	tests := []struct {
		state       playback.State
		wantPlaying int64
	}{
		{playback.StatePlayingSong, 1},
		{playback.StateIdle, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			p := influxdb.StatePoint("billy", tt.state, at)
			if p.Name() != influxdb.MeasurementState {
				t.Errorf("Name() = %q", p.Name())
			}
			f := fields(p)
			if f["state"] != string(tt.state) || f["playing"] != tt.wantPlaying {
				t.Errorf("fields = %v", f)
			}
			line := write.PointToLineProtocol(p, time.Second)
			if !strings.HasPrefix(line, "billy_state,device_id=billy ") {
				t.Errorf("line protocol = %q", line)
			}
		})
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := influxdb.Connect(context.Background(), cfg, "billy"); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := influxdb.Connect(ctx, cfg, "billy"); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClient_NotConnected(t *testing.T) {
	var nilClient *influxdb.Client
	if nilClient.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil error = %v", err)
	}

	c := &influxdb.Client{}
	if err := c.RecordSession(context.Background(), playback.Report{}); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("RecordSession() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	c.WriteState(playback.StateIdle)
	c.Flush()
}

func TestIntegration_WriteSession(t *testing.T) {
	c := connectOrSkip(t)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	var writeErr error
	c.SetOnError(func(err error) { writeErr = err })

	if err := c.RecordSession(context.Background(), playback.Report{
		SessionID: "integration",
		Song:      "river",
		EndedAt:   time.Now(),
		Outcome:   playback.OutcomeCompleted,
	}); err != nil {
		t.Fatalf("RecordSession() error = %v", err)
	}
	c.WriteState(playback.StateIdle)
	c.Flush()

	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
}
