package server

import (
	"encoding/json"

	"github.com/StoreStation/orbit/pkg/chat"
)

// StatusResponse is the JSON document returned for a Status Request.
type StatusResponse struct {
	Version     StatusVersion `json:"version"`
	Players     StatusPlayers `json:"players"`
	Description chat.Message  `json:"description"`
	Favicon     string        `json:"favicon"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type StatusPlayers struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []SamplePlayer `json:"sample"`
}

// SamplePlayer is one entry of the hover list; ID is a hyphenated UUID.
type SamplePlayer struct {
	Name string `json:"name" mapstructure:"name" validate:"required" yaml:"name"`
	ID   string `json:"id" mapstructure:"id" validate:"required,uuid" yaml:"id"`
}

// NewStatusResponse builds a fresh status document from the configuration.
// No play state exists, so the online count is always zero.
func NewStatusResponse(cfg *Config) StatusResponse {
	sample := make([]SamplePlayer, len(cfg.Sample))
	copy(sample, cfg.Sample)

	return StatusResponse{
		Version: StatusVersion{
			Name:     cfg.VersionName,
			Protocol: cfg.ProtocolVersion,
		},
		Players: StatusPlayers{
			Max:    cfg.MaxPlayers,
			Online: 0,
			Sample: sample,
		},
		Description: chat.Colored(cfg.MOTD, cfg.MOTDColor),
		Favicon:     cfg.Favicon,
	}
}

// JSON serializes the response as sent on the wire.
func (r StatusResponse) JSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
