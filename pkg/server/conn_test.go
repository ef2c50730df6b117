package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StoreStation/orbit/pkg/protocol"
)

// fakeConn feeds scripted client bytes and records what the server writes.
type fakeConn struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func newFakeConn(chunks ...[]byte) *fakeConn {
	return &fakeConn{in: bytes.NewReader(bytes.Join(chunks, nil))}
}

func (f *fakeConn) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeConn) Write(p []byte) (int, error) { return f.out.Write(p) }

func packet(id int32, build func(w *bytes.Buffer)) []byte {
	if build == nil {
		build = func(*bytes.Buffer) {}
	}
	var buf bytes.Buffer
	protocol.WritePacket(&buf, protocol.MarshalPacket(id, build))
	return buf.Bytes()
}

func handshakePacket(version int32, address string, port uint16, next int32) []byte {
	return packet(protocol.PacketHandshake, func(w *bytes.Buffer) {
		protocol.WriteVarInt(w, version)
		protocol.WriteString(w, address)
		protocol.WriteUint16(w, port)
		protocol.WriteVarInt(w, next)
	})
}

func pingPacket(payload int64) []byte {
	return packet(protocol.PacketPing, func(w *bytes.Buffer) {
		protocol.WriteInt64(w, payload)
	})
}

func loginStartPacket(name string) []byte {
	return packet(protocol.PacketLoginStart, func(w *bytes.Buffer) {
		protocol.WriteString(w, name)
	})
}

func serve(t *testing.T, cfg Config, metrics *Metrics, chunks ...[]byte) (*Conn, *fakeConn, error) {
	t.Helper()
	fc := newFakeConn(chunks...)
	c := NewConn(&cfg, fc, zerolog.Nop(), metrics)
	err := c.Serve()
	return c, fc, err
}

func readPackets(t *testing.T, out *bytes.Buffer) []*protocol.Packet {
	t.Helper()
	var pkts []*protocol.Packet
	r := bytes.NewReader(out.Bytes())
	for r.Len() > 0 {
		pkt, err := protocol.ReadPacket(r)
		require.NoError(t, err)
		pkts = append(pkts, pkt)
	}
	return pkts
}

func TestStatusAndPing(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	c, fc, err := serve(t, DefaultConfig(), metrics,
		handshakePacket(771, "x", 25565, 1),
		packet(protocol.PacketStatusRequest, nil),
		pingPacket(1234567890123),
	)
	require.NoError(t, err)
	assert.Equal(t, protocol.StateClosed, c.State())
	assert.Equal(t, Handshake{ProtocolVersion: 771, ServerAddress: "x", ServerPort: 25565, NextState: 1}, c.Handshake())

	pkts := readPackets(t, &fc.out)
	require.Len(t, pkts, 2)

	assert.Equal(t, int32(protocol.PacketStatusResponse), pkts[0].ID)
	body, err := protocol.ReadString(bytes.NewReader(pkts[0].Data))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	version := doc["version"].(map[string]any)
	assert.Equal(t, float64(771), version["protocol"])
	assert.Equal(t, "1.20.6", version["name"])
	players := doc["players"].(map[string]any)
	assert.Equal(t, float64(100), players["max"])
	assert.Equal(t, float64(0), players["online"])
	assert.Equal(t, []any{
		map[string]any{"name": "gaegeumchi", "id": "4566e69f-c907-48ee-8d71-d7ba5aa36881"},
	}, players["sample"])
	assert.Equal(t, "Hello, Orbit Server!", doc["description"].(map[string]any)["text"])
	assert.Equal(t, "", doc["favicon"])

	assert.Equal(t, int32(protocol.PacketPong), pkts[1].ID)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x1F, 0x71, 0xFB, 0x04, 0xCB}, pkts[1].Data)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HandshakesTotal.WithLabelValues("status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StatusResponsesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PingsTotal))
}

func TestStatusResponseUsesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPlayers = 7
	cfg.MOTD = "maintenance"
	cfg.MOTDColor = "red"
	cfg.Favicon = "data:image/png;base64,AAAA"
	cfg.Sample = []SamplePlayer{{Name: "alex", ID: "4566e69f-c907-48ee-8d71-d7ba5aa36881"}}

	_, fc, err := serve(t, cfg, nil,
		handshakePacket(771, "localhost", 25565, 1),
		packet(protocol.PacketStatusRequest, nil),
	)
	require.NoError(t, err)

	pkts := readPackets(t, &fc.out)
	require.Len(t, pkts, 1)
	body, err := protocol.ReadString(bytes.NewReader(pkts[0].Data))
	require.NoError(t, err)

	var got StatusResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, NewStatusResponse(&cfg), got)
	assert.Equal(t, "red", got.Description.Color)
	assert.Equal(t, "alex", got.Players.Sample[0].Name)
}

func TestStatusIgnoresUnexpectedPackets(t *testing.T) {
	t.Run("first packet", func(t *testing.T) {
		_, fc, err := serve(t, DefaultConfig(), nil,
			handshakePacket(771, "x", 25565, 1),
			packet(0x05, nil),
			pingPacket(1),
		)
		require.NoError(t, err)
		assert.Zero(t, fc.out.Len())
	})

	t.Run("second packet", func(t *testing.T) {
		_, fc, err := serve(t, DefaultConfig(), nil,
			handshakePacket(771, "x", 25565, 1),
			packet(protocol.PacketStatusRequest, nil),
			packet(0x00, nil),
		)
		require.NoError(t, err)
		pkts := readPackets(t, &fc.out)
		require.Len(t, pkts, 1)
		assert.Equal(t, int32(protocol.PacketStatusResponse), pkts[0].ID)
	})
}

func TestHandshakeRejections(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		outcome string
	}{
		{"version mismatch", handshakePacket(47, "x", 25565, 1), "version_mismatch"},
		{"invalid first packet", packet(0x01, nil), "invalid_packet"},
		{"unsupported next state", handshakePacket(771, "x", 25565, 3), "unsupported_state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics(nil)
			c, fc, err := serve(t, DefaultConfig(), metrics,
				tt.input,
				packet(protocol.PacketStatusRequest, nil),
			)
			require.NoError(t, err)
			assert.Equal(t, protocol.StateClosed, c.State())
			assert.Zero(t, fc.out.Len(), "nothing is sent to the client")
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HandshakesTotal.WithLabelValues(tt.outcome)))
		})
	}
}

func TestHandshakeHonoursConfiguredVersion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProtocolVersion = 47

	_, fc, err := serve(t, cfg, nil,
		handshakePacket(47, "x", 25565, 1),
		packet(protocol.PacketStatusRequest, nil),
	)
	require.NoError(t, err)
	assert.Len(t, readPackets(t, &fc.out), 1)
}

func TestLogin(t *testing.T) {
	metrics := NewMetrics(nil)
	c, fc, err := serve(t, DefaultConfig(), metrics,
		handshakePacket(771, "x", 25565, 2),
		loginStartPacket("Notch"),
		packet(protocol.PacketLoginAcknowledged, nil),
	)
	require.NoError(t, err)
	assert.Equal(t, protocol.StateClosed, c.State())
	assert.Equal(t, "Notch", c.Player())

	pkts := readPackets(t, &fc.out)
	require.Len(t, pkts, 1)
	assert.Equal(t, int32(protocol.PacketLoginSuccess), pkts[0].ID)

	wantUUID, _ := hex.DecodeString("63aa1e33a4f8a031bee01aacd6f24434")
	want := append(wantUUID, 0x05, 'N', 'o', 't', 'c', 'h')
	assert.Equal(t, want, pkts[0].Data, "uuid followed by name, no property count")

	r := bytes.NewReader(pkts[0].Data)
	id, err := protocol.ReadUUID(r)
	require.NoError(t, err)
	assert.Equal(t, OfflineUUID("Notch"), id)
	assert.Equal(t, "331eaa63-f8a4-31a0-bee0-1aacd6f24434", id.String())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues("success_sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues("acknowledged")))
}

func TestLoginUnexpectedPackets(t *testing.T) {
	t.Run("instead of login start", func(t *testing.T) {
		_, fc, err := serve(t, DefaultConfig(), nil,
			handshakePacket(771, "x", 25565, 2),
			packet(0x01, nil),
		)
		require.NoError(t, err)
		assert.Zero(t, fc.out.Len())
	})

	t.Run("instead of acknowledged", func(t *testing.T) {
		metrics := NewMetrics(nil)
		_, fc, err := serve(t, DefaultConfig(), metrics,
			handshakePacket(771, "x", 25565, 2),
			loginStartPacket("Steve"),
			packet(0x02, nil),
		)
		require.NoError(t, err)
		assert.Len(t, readPackets(t, &fc.out), 1)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues("unexpected_packet")))
	})
}

func TestLoginStartClientUUIDIsNotConsumed(t *testing.T) {
	// A current client appends its UUID to Login Start. Those bytes are read
	// as the next packet header, so the acknowledgement is never seen.
	clientUUID := make([]byte, 16)
	metrics := NewMetrics(nil)
	_, fc, err := serve(t, DefaultConfig(), metrics,
		handshakePacket(771, "x", 25565, 2),
		loginStartPacket("Steve"),
		clientUUID,
		packet(protocol.PacketLoginAcknowledged, nil),
	)
	require.NoError(t, err)
	assert.Len(t, readPackets(t, &fc.out), 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues("acknowledged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues("unexpected_packet")))
}

func TestMalformedInput(t *testing.T) {
	t.Run("oversized varint", func(t *testing.T) {
		c, _, err := serve(t, DefaultConfig(), nil, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
		require.Error(t, err)
		assert.True(t, errors.Is(err, protocol.ErrMalformedVarInt))
		assert.Equal(t, protocol.StateClosed, c.State())
	})

	t.Run("truncated handshake", func(t *testing.T) {
		full := handshakePacket(771, "localhost", 25565, 1)
		_, _, err := serve(t, DefaultConfig(), nil, full[:len(full)-3])
		require.Error(t, err)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	})

	t.Run("truncated ping", func(t *testing.T) {
		ping := pingPacket(99)
		_, fc, err := serve(t, DefaultConfig(), nil,
			handshakePacket(771, "x", 25565, 1),
			packet(protocol.PacketStatusRequest, nil),
			ping[:len(ping)-2],
		)
		require.Error(t, err)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
		assert.Len(t, readPackets(t, &fc.out), 1)
	})
}

func TestHangUpIsNotAnError(t *testing.T) {
	c, fc, err := serve(t, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.StateClosed, c.State())
	assert.Zero(t, fc.out.Len())

	_, fc, err = serve(t, DefaultConfig(), nil,
		handshakePacket(771, "x", 25565, 1),
		packet(protocol.PacketStatusRequest, nil),
	)
	require.NoError(t, err)
	assert.Len(t, readPackets(t, &fc.out), 1)
}
