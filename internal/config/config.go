// Package config loads the fiblight YAML configuration.
package config

import (
	"errors"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Controller   ControllerConfig `yaml:"controller"`
	PollInterval Duration         `yaml:"poll_interval"`
	Database     DatabaseConfig   `yaml:"database"`
	MQTT         MQTTConfig       `yaml:"mqtt"`
	Log          LogConfig        `yaml:"log"`
}

// ControllerConfig contains Home Center connection settings
type ControllerConfig struct {
	URL      string   `yaml:"url"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Timeout  Duration `yaml:"timeout"` // HTTP timeout for controller requests
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MQTTConfig contains broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"` // 0 means the default of 1
}

func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Controller.Timeout == 0 {
		cfg.Controller.Timeout = Duration(10 * time.Second)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(30 * time.Second)
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./fiblight.sqlite"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "fiblight"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "fiblight"
	}
	if cfg.MQTT.QoS == 0 {
		cfg.MQTT.QoS = 1
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks the settings every command needs.
func (cfg *Config) Validate() error {
	if cfg.Controller.URL == "" {
		return errors.New("controller url is required")
	}
	if cfg.PollInterval.Duration() < time.Second {
		return errors.New("poll_interval must be at least 1s")
	}
	if cfg.MQTT.QoS > 2 {
		return errors.New("mqtt qos must be 0, 1 or 2")
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
}
