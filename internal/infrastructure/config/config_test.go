package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  id: "billy-kitchen"
songs:
  dir: "/srv/billy/songs"
playback:
  chunk_frames: 2048
  queue_depth: 8
audio:
  backend: "null"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "billy-test"
  qos: 1
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "billy-kitchen" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "billy-kitchen")
	}
	if cfg.Songs.Dir != "/srv/billy/songs" {
		t.Errorf("Songs.Dir = %q, want %q", cfg.Songs.Dir, "/srv/billy/songs")
	}
	if cfg.Playback.ChunkFrames != 2048 {
		t.Errorf("Playback.ChunkFrames = %d, want 2048", cfg.Playback.ChunkFrames)
	}
	if cfg.Audio.Backend != "null" {
		t.Errorf("Audio.Backend = %q, want %q", cfg.Audio.Backend, "null")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}

	// Values absent from the file keep their defaults.
	if cfg.Movement.IdleAmplitude != 0.3 {
		t.Errorf("Movement.IdleAmplitude = %v, want default 0.3", cfg.Movement.IdleAmplitude)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  id: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty device.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing device ID", mutate: func(c *Config) { c.Device.ID = "" }, wantErr: true},
		{name: "missing songs dir", mutate: func(c *Config) { c.Songs.Dir = "" }, wantErr: true},
		{name: "zero chunk frames", mutate: func(c *Config) { c.Playback.ChunkFrames = 0 }, wantErr: true},
		{name: "zero queue depth", mutate: func(c *Config) { c.Playback.QueueDepth = 0 }, wantErr: true},
		{name: "idle amplitude above 1", mutate: func(c *Config) { c.Movement.IdleAmplitude = 1.5 }, wantErr: true},
		{name: "negative mouth threshold", mutate: func(c *Config) { c.Movement.MouthThreshold = -1 }, wantErr: true},
		{name: "unknown audio backend", mutate: func(c *Config) { c.Audio.Backend = "alsa" }, wantErr: true},
		{name: "null audio backend", mutate: func(c *Config) { c.Audio.Backend = "NULL" }},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "database enabled without path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "database disabled without path", mutate: func(c *Config) {
			c.Database.Enabled = false
			c.Database.Path = ""
		}},
		{name: "influxdb enabled without URL", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "api disabled ignores port", mutate: func(c *Config) {
			c.API.Enabled = false
			c.API.Port = 0
		}},
		{name: "file logging without path", mutate: func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.File.Path = ""
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Movement: MovementConfig{
			KeyframeHold:     1.5,
			TailFlapDuration: 0.25,
		},
	}

	if got := cfg.KeyframeHold(); got != 1500*time.Millisecond {
		t.Errorf("KeyframeHold() = %v, want 1.5s", got)
	}
	if got := cfg.TailFlapDuration(); got != 250*time.Millisecond {
		t.Errorf("TailFlapDuration() = %v, want 250ms", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("BILLY_SONGS_DIR", "/media/songs")
	t.Setenv("BILLY_AUDIO_BACKEND", "null")
	t.Setenv("BILLY_MQTT_HOST", "mqtt.example.com")
	t.Setenv("BILLY_MQTT_PORT", "8883")
	t.Setenv("BILLY_MQTT_USERNAME", "billy")
	t.Setenv("BILLY_MQTT_PASSWORD", "bass")
	t.Setenv("BILLY_DATABASE_PATH", "/custom/path.db")
	t.Setenv("BILLY_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("BILLY_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   any
		want  any
	}{
		{"Songs.Dir", cfg.Songs.Dir, "/media/songs"},
		{"Audio.Backend", cfg.Audio.Backend, "null"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Broker.Port", cfg.MQTT.Broker.Port, 8883},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "billy"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "bass"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.field, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := Default()
	t.Setenv("BILLY_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Playback.ChunkFrames != 1024 {
		t.Errorf("Default Playback.ChunkFrames = %d, want 1024", cfg.Playback.ChunkFrames)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("Default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Default API.Port = %d, want 8080", cfg.API.Port)
	}
}
