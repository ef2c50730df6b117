package protocol

import (
	"bytes"
	"fmt"
	"io"
)

// Version pinned by the server; clients announcing anything else are dropped.
const (
	ProtocolVersion = 771
	VersionName     = "1.20.6"
)

// Handshaking packet IDs (serverbound).
const (
	PacketHandshake = 0x00
)

// Status packet IDs. Request/Response and Ping/Pong share IDs across directions.
const (
	PacketStatusRequest  = 0x00
	PacketStatusResponse = 0x00
	PacketPing           = 0x01
	PacketPong           = 0x01
)

// Login packet IDs.
const (
	PacketLoginStart        = 0x00
	PacketLoginSuccess      = 0x02
	PacketLoginAcknowledged = 0x03
)

// Header is the prefix of every inbound packet. Length is the declared size of
// the ID plus body; the server reads the body field by field straight off the
// stream and does not check it against Length.
type Header struct {
	Length int32
	ID     int32
}

// ReadHeader reads a packet length followed by a packet ID. It returns a bare
// io.EOF only when the stream ends before the first byte of the header.
func ReadHeader(r io.Reader) (Header, error) {
	length, _, err := ReadVarInt(r)
	if err == io.EOF {
		return Header{}, io.EOF
	}
	if err != nil {
		return Header{}, fmt.Errorf("packet length: %w", err)
	}
	id, _, err := ReadVarInt(r)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Header{}, fmt.Errorf("packet id: %w", err)
	}
	return Header{Length: length, ID: id}, nil
}

// Packet represents a protocol packet with an ID and payload.
type Packet struct {
	ID   int32
	Data []byte
}

// ReadPacket reads a full length-delimited packet from the reader. Used on
// the client side, where responses are consumed whole.
func ReadPacket(r io.Reader) (*Packet, error) {
	length, _, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("packet length too small: %d", length)
	}
	if length > 2097151 { // max 3-byte VarInt
		return nil, fmt.Errorf("packet length too large: %d", length)
	}

	payload := make([]byte, length)
	if _, err = io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	packetID, idLen, err := ReadVarInt(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	return &Packet{
		ID:   packetID,
		Data: payload[idLen:],
	}, nil
}

// WritePacket writes a full packet to the writer using a single buffered write.
func WritePacket(w io.Writer, p *Packet) error {
	idSize := VarIntSize(p.ID)
	totalLen := int32(idSize + len(p.Data))

	buf := bytes.NewBuffer(make([]byte, 0, VarIntSize(totalLen)+int(totalLen)))
	WriteVarInt(buf, totalLen)
	WriteVarInt(buf, p.ID)
	buf.Write(p.Data)

	_, err := w.Write(buf.Bytes())
	return err
}

// MarshalPacket creates a Packet from a packet ID and a builder function.
// Writes into a bytes.Buffer cannot fail, so builders may ignore errors.
func MarshalPacket(id int32, builder func(w *bytes.Buffer)) *Packet {
	var buf bytes.Buffer
	builder(&buf)
	return &Packet{
		ID:   id,
		Data: buf.Bytes(),
	}
}
