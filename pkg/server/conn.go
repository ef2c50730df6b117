package server

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/StoreStation/orbit/pkg/protocol"
)

// Handshake is the first packet a client sends.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

// Conn walks a single client through handshake and then either the status
// or the login exchange. It is driven by one goroutine and is not safe for
// concurrent use.
type Conn struct {
	cfg     *Config
	rw      io.ReadWriter
	log     zerolog.Logger
	metrics *Metrics

	state     protocol.State
	handshake Handshake
	player    string
}

// NewConn prepares a connection in the handshaking state. metrics may be nil.
func NewConn(cfg *Config, rw io.ReadWriter, logger zerolog.Logger, metrics *Metrics) *Conn {
	return &Conn{
		cfg:     cfg,
		rw:      rw,
		log:     logger,
		metrics: metrics,
		state:   protocol.StateHandshaking,
	}
}

// State returns the current protocol state.
func (c *Conn) State() protocol.State { return c.state }

// Handshake returns the handshake received, zero before it arrives.
func (c *Conn) Handshake() Handshake { return c.handshake }

// Player returns the name sent in Login Start, empty otherwise.
func (c *Conn) Player() string { return c.player }

// Serve runs the state machine until the connection reaches StateClosed.
// Protocol violations close the connection with a nil error; malformed or
// truncated input and write failures are returned.
func (c *Conn) Serve() error {
	for c.state != protocol.StateClosed {
		var next protocol.State
		var err error

		switch c.state {
		case protocol.StateHandshaking:
			next, err = c.handleHandshake()
		case protocol.StateStatus:
			next, err = c.handleStatus()
		case protocol.StateLogin:
			next, err = c.handleLogin()
		default:
			next = protocol.StateClosed
		}

		if err != nil {
			failed := c.state
			c.state = protocol.StateClosed
			return fmt.Errorf("%s: %w", failed, err)
		}
		if next != c.state {
			c.log.Debug().
				Str("from", c.state.String()).
				Str("to", next.String()).
				Msg("state transition")
		}
		c.state = next
	}
	return nil
}

func (c *Conn) send(pkt *protocol.Packet) error {
	if err := protocol.WritePacket(c.rw, pkt); err != nil {
		return fmt.Errorf("write packet 0x%02X: %w", pkt.ID, err)
	}
	return nil
}

func (c *Conn) handleHandshake() (protocol.State, error) {
	h, err := protocol.ReadHeader(c.rw)
	if err == io.EOF {
		c.log.Debug().Msg("closed before handshake")
		return protocol.StateClosed, nil
	}
	if err != nil {
		return protocol.StateClosed, err
	}
	if h.ID != protocol.PacketHandshake {
		c.log.Warn().
			Str("packet_id", fmt.Sprintf("0x%02X", h.ID)).
			Msg("invalid first packet, expected handshake")
		c.metrics.handshake("invalid_packet")
		return protocol.StateClosed, nil
	}

	var hs Handshake
	if hs.ProtocolVersion, _, err = protocol.ReadVarInt(c.rw); err != nil {
		return protocol.StateClosed, fmt.Errorf("handshake protocol version: %w", err)
	}
	if hs.ServerAddress, err = protocol.ReadString(c.rw); err != nil {
		return protocol.StateClosed, fmt.Errorf("handshake server address: %w", err)
	}
	if hs.ServerPort, err = protocol.ReadUint16(c.rw); err != nil {
		return protocol.StateClosed, fmt.Errorf("handshake server port: %w", err)
	}
	if hs.NextState, _, err = protocol.ReadVarInt(c.rw); err != nil {
		return protocol.StateClosed, fmt.Errorf("handshake next state: %w", err)
	}
	c.handshake = hs

	c.log.Info().
		Int32("protocol", hs.ProtocolVersion).
		Str("address", hs.ServerAddress).
		Uint16("port", hs.ServerPort).
		Int32("next_state", hs.NextState).
		Msg("handshake")

	if hs.ProtocolVersion != c.cfg.ProtocolVersion {
		c.log.Warn().
			Int32("client", hs.ProtocolVersion).
			Int32("server", c.cfg.ProtocolVersion).
			Msg("protocol version mismatch, disconnecting")
		c.metrics.handshake("version_mismatch")
		return protocol.StateClosed, nil
	}

	switch next := protocol.State(hs.NextState); next {
	case protocol.StateStatus:
		c.metrics.handshake("status")
		return next, nil
	case protocol.StateLogin:
		c.metrics.handshake("login")
		return next, nil
	default:
		c.log.Debug().Int32("next_state", hs.NextState).Msg("unsupported next state")
		c.metrics.handshake("unsupported_state")
		return protocol.StateClosed, nil
	}
}

func (c *Conn) handleStatus() (protocol.State, error) {
	h, err := protocol.ReadHeader(c.rw)
	if err == io.EOF {
		return protocol.StateClosed, nil
	}
	if err != nil {
		return protocol.StateClosed, err
	}
	if h.ID != protocol.PacketStatusRequest {
		c.log.Debug().Str("packet_id", fmt.Sprintf("0x%02X", h.ID)).Msg("ignoring packet, expected status request")
		return protocol.StateClosed, nil
	}

	body, err := NewStatusResponse(c.cfg).JSON()
	if err != nil {
		return protocol.StateClosed, fmt.Errorf("marshal status response: %w", err)
	}
	resp := protocol.MarshalPacket(protocol.PacketStatusResponse, func(w *bytes.Buffer) {
		protocol.WriteString(w, body)
	})
	if err := c.send(resp); err != nil {
		return protocol.StateClosed, err
	}
	c.metrics.statusSent()
	c.log.Debug().Msg("status response sent")

	h, err = protocol.ReadHeader(c.rw)
	if err == io.EOF {
		return protocol.StateClosed, nil
	}
	if err != nil {
		return protocol.StateClosed, err
	}
	if h.ID != protocol.PacketPing {
		c.log.Debug().Str("packet_id", fmt.Sprintf("0x%02X", h.ID)).Msg("ignoring packet, expected ping")
		return protocol.StateClosed, nil
	}

	payload, err := protocol.ReadInt64(c.rw)
	if err != nil {
		return protocol.StateClosed, fmt.Errorf("ping payload: %w", err)
	}
	c.log.Debug().Int64("payload", payload).Msg("ping")

	pong := protocol.MarshalPacket(protocol.PacketPong, func(w *bytes.Buffer) {
		protocol.WriteInt64(w, payload)
	})
	if err := c.send(pong); err != nil {
		return protocol.StateClosed, err
	}
	c.metrics.pongSent()
	return protocol.StateClosed, nil
}

func (c *Conn) handleLogin() (protocol.State, error) {
	h, err := protocol.ReadHeader(c.rw)
	if err == io.EOF {
		return protocol.StateClosed, nil
	}
	if err != nil {
		return protocol.StateClosed, err
	}
	if h.ID != protocol.PacketLoginStart {
		c.log.Warn().Str("packet_id", fmt.Sprintf("0x%02X", h.ID)).Msg("invalid packet during login, expected login start")
		c.metrics.login("unexpected_packet")
		return protocol.StateClosed, nil
	}

	// Only the name is read. Newer clients follow it with their own UUID,
	// which is left on the stream.
	name, err := protocol.ReadString(c.rw)
	if err != nil {
		return protocol.StateClosed, fmt.Errorf("login start name: %w", err)
	}
	c.player = name

	id := OfflineUUID(name)
	logger := c.log.With().Str("player", name).Str("uuid", id.String()).Logger()
	logger.Info().Msg("player logging in")

	// No property count follows the name.
	success := protocol.MarshalPacket(protocol.PacketLoginSuccess, func(w *bytes.Buffer) {
		protocol.WriteUUID(w, id)
		protocol.WriteString(w, name)
	})
	if err := c.send(success); err != nil {
		return protocol.StateClosed, err
	}
	c.metrics.login("success_sent")

	h, err = protocol.ReadHeader(c.rw)
	if err == io.EOF {
		return protocol.StateClosed, nil
	}
	if err != nil {
		return protocol.StateClosed, err
	}
	if h.ID != protocol.PacketLoginAcknowledged {
		logger.Warn().Str("packet_id", fmt.Sprintf("0x%02X", h.ID)).Msg("expected login acknowledged")
		c.metrics.login("unexpected_packet")
		return protocol.StateClosed, nil
	}

	// Play is not implemented; the session ends here.
	logger.Info().Msg("login acknowledged")
	c.metrics.login("acknowledged")
	return protocol.StateClosed, nil
}
