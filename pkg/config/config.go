// Package config loads the orbit configuration file.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ORBIT_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/StoreStation/orbit/pkg/logger"
	"github.com/StoreStation/orbit/pkg/server"
)

// EnvPrefix is prepended to every environment override, e.g.
// ORBIT_SERVER_ADDRESS or ORBIT_LOGGING_LEVEL.
const EnvPrefix = "ORBIT"

// Config is the complete orbit configuration.
type Config struct {
	Server  server.Config `mapstructure:"server" yaml:"server"`
	World   WorldConfig   `mapstructure:"world" yaml:"world"`
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// WorldConfig locates the world whose region files are read.
type WorldConfig struct {
	// Root is the directory containing world directories.
	Root string `mapstructure:"root" validate:"required" yaml:"root"`
	Name string `mapstructure:"name" validate:"required" yaml:"name"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true" yaml:"address"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: server.DefaultConfig(),
		World: WorldConfig{
			Root: "worlds",
			Name: "world",
		},
		Logging: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Address: ":9225",
		},
	}
}

// Load reads configuration from path, then applies ORBIT_* environment
// overrides. An empty path skips the file. A path that does not exist is an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setupViper(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Server.Sample == nil {
		cfg.Server.Sample = []server.SamplePlayer{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper registers every key with its default so that environment
// variables are honoured even when no file mentions the key.
func setupViper(v *viper.Viper, d *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.protocol_version", d.Server.ProtocolVersion)
	v.SetDefault("server.version_name", d.Server.VersionName)
	v.SetDefault("server.max_players", d.Server.MaxPlayers)
	v.SetDefault("server.motd", d.Server.MOTD)
	v.SetDefault("server.motd_color", d.Server.MOTDColor)
	v.SetDefault("server.favicon", d.Server.Favicon)
	v.SetDefault("server.sample", d.Server.Sample)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)

	v.SetDefault("world.root", d.World.Root)
	v.SetDefault("world.name", d.World.Name)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.address", d.Metrics.Address)
}

var validate = validator.New()

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
