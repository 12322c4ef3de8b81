package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Billy Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Songs     SongsConfig     `yaml:"songs"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Movement  MovementConfig  `yaml:"movement"`
	Audio     AudioConfig     `yaml:"audio"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies the animatronic this process drives.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SongsConfig locates the song library on disk.
type SongsConfig struct {
	// Dir holds one sub-directory per song containing full.wav,
	// vocals.wav, drums.wav and an optional metadata.txt.
	Dir string `yaml:"dir"`

	// Watch enables fsnotify-based invalidation of the cached song list.
	Watch bool `yaml:"watch"`
}

// PlaybackConfig tunes the chunk pipeline between the orchestrator and the worker.
type PlaybackConfig struct {
	// ChunkFrames is the number of frames read per chunk.
	ChunkFrames int `yaml:"chunk_frames"`

	// QueueDepth bounds the chunk queue so reading cannot race ahead of playback.
	QueueDepth int `yaml:"queue_depth"`
}

// MovementConfig tunes the movement engine.
type MovementConfig struct {
	// IdleAmplitude is the head position used for tempo pulses (0-1).
	IdleAmplitude float64 `yaml:"idle_amplitude"`

	// MouthThreshold is the vocal-band level above which the mouth opens.
	MouthThreshold float64 `yaml:"mouth_threshold"`

	// KeyframeHold is how long the last head keyframe is held, in seconds.
	KeyframeHold float64 `yaml:"keyframe_hold"`

	// TailFlapDuration is how long a single tail flap lasts, in seconds.
	TailFlapDuration float64 `yaml:"tail_flap_duration"`
}

// AudioConfig selects the audio output backend.
type AudioConfig struct {
	// Backend is "oto" (sound card) or "null" (headless, timing only).
	Backend string `yaml:"backend"`

	// BufferMillis is the oto device buffer size in milliseconds.
	BufferMillis int `yaml:"buffer_millis"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
// Used when Output is "file"; rotation is handled by lumberjack.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BILLY_SECTION_KEY
// For example: BILLY_SONGS_DIR, BILLY_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
// It is also used by the CLI when no configuration file exists.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "billy-01",
			Name: "Billy",
		},
		Songs: SongsConfig{
			Dir:   "./sounds/songs",
			Watch: true,
		},
		Playback: PlaybackConfig{
			ChunkFrames: 1024,
			QueueDepth:  16,
		},
		Movement: MovementConfig{
			IdleAmplitude:    0.3,
			MouthThreshold:   800,
			KeyframeHold:     1.0,
			TailFlapDuration: 0.25,
		},
		Audio: AudioConfig{
			Backend:      "oto",
			BufferMillis: 100,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "billy-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/billy.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/billy.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BILLY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Songs
	if v := os.Getenv("BILLY_SONGS_DIR"); v != "" {
		cfg.Songs.Dir = v
	}

	// Audio
	if v := os.Getenv("BILLY_AUDIO_BACKEND"); v != "" {
		cfg.Audio.Backend = v
	}

	// MQTT
	if v := os.Getenv("BILLY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BILLY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("BILLY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BILLY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("BILLY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("BILLY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("BILLY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	if c.Songs.Dir == "" {
		errs = append(errs, "songs.dir is required")
	}

	if c.Playback.ChunkFrames <= 0 {
		errs = append(errs, "playback.chunk_frames must be positive")
	}
	if c.Playback.QueueDepth <= 0 {
		errs = append(errs, "playback.queue_depth must be positive")
	}

	if c.Movement.IdleAmplitude < 0 || c.Movement.IdleAmplitude > 1 {
		errs = append(errs, "movement.idle_amplitude must be between 0 and 1")
	}
	if c.Movement.MouthThreshold < 0 {
		errs = append(errs, "movement.mouth_threshold must not be negative")
	}

	switch strings.ToLower(c.Audio.Backend) {
	case "oto", "null":
	default:
		errs = append(errs, "audio.backend must be \"oto\" or \"null\"")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// KeyframeHold returns the movement keyframe hold as a Duration.
func (c *Config) KeyframeHold() time.Duration {
	return seconds(c.Movement.KeyframeHold)
}

// TailFlapDuration returns the tail flap duration as a Duration.
func (c *Config) TailFlapDuration() time.Duration {
	return seconds(c.Movement.TailFlapDuration)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
