package netplay

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config holds the server settings loaded from YAML. Protocol constants
// (packet size, tag bands, revision) are compile-time and deliberately not
// configurable.
type Config struct {
	ListenAddr     string `yaml:"listen_addr"`
	MaxClients     int    `yaml:"max_clients"`
	TickRate       int    `yaml:"tick_rate"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	StatsPath      string `yaml:"stats_path"`
	Debug          bool   `yaml:"debug"`
}

func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":29250",
		MaxClients:     16,
		TickRate:       30,
		TimeoutSeconds: 30,
		StatsPath:      "storage/stats.db",
	}
}

// LoadConfig reads path over the defaults. A missing file is an error;
// missing keys fall back to their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if cfg.TickRate <= 0 {
		return nil, errors.New("config: tick_rate must be positive")
	}
	return cfg, nil
}
