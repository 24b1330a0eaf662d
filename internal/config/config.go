package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config carries the coordinator's connection and coordination settings.
// Values merge in order: yaml file, then environment, then env-defaults for
// anything still unset.
type Config struct {
	DSN             string `yaml:"dsn" env:"STAMINADS_CLICKHOUSE_DSN"`
	SystemDatabase  string `yaml:"system_database" env:"STAMINADS_SYSTEM_DATABASE" env-default:"staminads_system"`
	SettingsTable   string `yaml:"settings_table" env:"STAMINADS_SETTINGS_TABLE" env-default:"settings"`
	WorkspacePrefix string `yaml:"workspace_prefix" env:"STAMINADS_WORKSPACE_PREFIX" env-default:"staminads"`
	Holder          string `yaml:"holder" env:"STAMINADS_MIGRATION_HOLDER"`
	LockStaleSec    int    `yaml:"lock_stale_sec" env:"STAMINADS_LOCK_STALE_SEC" env-default:"300"`
	JSON            bool   `yaml:"json" env:"STAMINADS_LOG_JSON"`
}

// Load reads an optional yaml file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return cfg, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// StaleThreshold is the age past which a migration lease counts as abandoned.
func (c *Config) StaleThreshold() time.Duration {
	if c.LockStaleSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.LockStaleSec) * time.Second
}
