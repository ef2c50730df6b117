package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/StoreStation/orbit/pkg/protocol"
)

// StatusResult is what a server list ping returns.
type StatusResult struct {
	Status  StatusResponse
	Latency time.Duration
}

// QueryStatus performs the client half of the status exchange against
// address: handshake with next state 1, status request, then a ping whose
// round trip is reported as Latency.
func QueryStatus(ctx context.Context, address string, protocolVersion int32) (*StatusResult, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	handshake := protocol.MarshalPacket(protocol.PacketHandshake, func(w *bytes.Buffer) {
		protocol.WriteVarInt(w, protocolVersion)
		protocol.WriteString(w, host)
		protocol.WriteUint16(w, uint16(port))
		protocol.WriteVarInt(w, int32(protocol.StateStatus))
	})
	if err := protocol.WritePacket(conn, handshake); err != nil {
		return nil, fmt.Errorf("send handshake: %w", err)
	}
	if err := protocol.WritePacket(conn, &protocol.Packet{ID: protocol.PacketStatusRequest}); err != nil {
		return nil, fmt.Errorf("send status request: %w", err)
	}

	pkt, err := protocol.ReadPacket(conn)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	if pkt.ID != protocol.PacketStatusResponse {
		return nil, fmt.Errorf("unexpected packet 0x%02X, want status response", pkt.ID)
	}
	body, err := protocol.ReadString(bytes.NewReader(pkt.Data))
	if err != nil {
		return nil, fmt.Errorf("status response body: %w", err)
	}
	var result StatusResult
	if err := json.Unmarshal([]byte(body), &result.Status); err != nil {
		return nil, fmt.Errorf("decode status json: %w", err)
	}

	sent := time.Now()
	payload := sent.UnixMilli()
	ping := protocol.MarshalPacket(protocol.PacketPing, func(w *bytes.Buffer) {
		protocol.WriteInt64(w, payload)
	})
	if err := protocol.WritePacket(conn, ping); err != nil {
		return nil, fmt.Errorf("send ping: %w", err)
	}
	pkt, err = protocol.ReadPacket(conn)
	if err != nil {
		return nil, fmt.Errorf("read pong: %w", err)
	}
	if pkt.ID != protocol.PacketPong {
		return nil, fmt.Errorf("unexpected packet 0x%02X, want pong", pkt.ID)
	}
	echoed, err := protocol.ReadInt64(bytes.NewReader(pkt.Data))
	if err != nil {
		return nil, fmt.Errorf("pong payload: %w", err)
	}
	if echoed != payload {
		return nil, fmt.Errorf("pong payload %d does not match ping %d", echoed, payload)
	}
	result.Latency = time.Since(sent)

	return &result, nil
}
