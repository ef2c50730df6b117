package server

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/StoreStation/orbit/pkg/protocol"
)

// Config holds server configuration. It is treated as immutable once the
// server has started; every connection reads the same value.
type Config struct {
	// Address is the TCP listen address.
	Address string `mapstructure:"address" validate:"required" yaml:"address"`

	// ProtocolVersion is the only client protocol version accepted at handshake.
	ProtocolVersion int32 `mapstructure:"protocol_version" validate:"gt=0" yaml:"protocol_version"`

	// VersionName is reported in the status response.
	VersionName string `mapstructure:"version_name" validate:"required" yaml:"version_name"`

	MaxPlayers int    `mapstructure:"max_players" validate:"gte=0" yaml:"max_players"`
	MOTD       string `mapstructure:"motd" yaml:"motd"`
	MOTDColor  string `mapstructure:"motd_color" yaml:"motd_color"`

	// Favicon is a data URI ("data:image/png;base64,..."), empty when unset.
	Favicon string `mapstructure:"favicon" validate:"omitempty,startswith=data:image/" yaml:"favicon"`

	// Sample is the player list shown on hover in the server browser.
	Sample []SamplePlayer `mapstructure:"sample" validate:"dive" yaml:"sample"`

	// ReadTimeout bounds each blocking read on a connection. Zero disables it.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"gte=0" yaml:"read_timeout"`
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() Config {
	return Config{
		Address:         ":25565",
		ProtocolVersion: protocol.ProtocolVersion,
		VersionName:     protocol.VersionName,
		MaxPlayers:      100,
		MOTD:            "Hello, Orbit Server!",
		Sample: []SamplePlayer{
			{Name: "gaegeumchi", ID: "4566e69f-c907-48ee-8d71-d7ba5aa36881"},
		},
	}
}

var validate = validator.New()

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	return nil
}
