package config

import (
	"os"
	"regexp"
	"time"

	"github.com/mimiclab/simlink/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the top-level simlink configuration.
	Config struct {
		Backend BackendConfig `yaml:"backend"`
		Session SessionConfig `yaml:"session"`
		Presets PresetsConfig `yaml:"presets"`
		Logger  LoggerConfig  `yaml:"logger"`
		Metrics MetricsConfig `yaml:"metrics"`
		Tracing TracingConfig `yaml:"tracing"`
	}

	// BackendConfig locates the simulation backend.
	BackendConfig struct {
		// URL is the WebSocket endpoint, e.g. ws://localhost:8764/ws
		URL string `yaml:"url"`
	}

	// SessionConfig tunes the realtime session layer. Zero values fall back
	// to the canonical defaults applied by the session package.
	SessionConfig struct {
		HandshakeTimeout       time.Duration `yaml:"handshake_timeout"`
		WriteTimeout           time.Duration `yaml:"write_timeout"`
		HeartbeatInterval      time.Duration `yaml:"heartbeat_interval"`
		LivenessInterval       time.Duration `yaml:"liveness_interval"`
		ReconnectBaseDelay     time.Duration `yaml:"reconnect_base_delay"`
		ReconnectMaxDelay      time.Duration `yaml:"reconnect_max_delay"`
		ReconnectExtendedDelay time.Duration `yaml:"reconnect_extended_delay"`
		MaxReconnectAttempts   int           `yaml:"max_reconnect_attempts"`
		QueueSize              int           `yaml:"queue_size"`
		SeenCap                int           `yaml:"seen_cap"`
		SeenRetain             int           `yaml:"seen_retain"`
		RequestTimeout         time.Duration `yaml:"request_timeout"`

		// EphemeralTypes are dropped instead of queued while disconnected.
		EphemeralTypes []string `yaml:"ephemeral_types"`
		// ReplyTypes overrides the expected reply type per request type.
		ReplyTypes map[string]string `yaml:"reply_types"`
	}

	// PresetsConfig locates the named-configuration CRUD service.
	PresetsConfig struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// MetricsConfig configures the prometheus registry.
	MetricsConfig struct {
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// TracingConfig configures OpenTelemetry export.
	TracingConfig struct {
		Enabled     bool              `yaml:"enabled"`
		ServiceName string            `yaml:"service_name"`
		Endpoint    string            `yaml:"endpoint"` // e.g. localhost:4317 or http://localhost:4318
		Protocol    string            `yaml:"protocol"` // grpc or http
		Insecure    bool              `yaml:"insecure"`
		SamplerRate float64           `yaml:"sampler_rate"` // 0.0~1.0
		Environment string            `yaml:"environment"`
		Headers     map[string]string `yaml:"headers"`
	}
)

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*Config, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
