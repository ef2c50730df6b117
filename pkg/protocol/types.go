package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrMalformedVarInt is returned when a VarInt runs past 5 bytes.
	ErrMalformedVarInt = errors.New("protocol: VarInt is too big")

	// ErrNegativeLength is returned when a length prefix decodes below zero.
	ErrNegativeLength = errors.New("protocol: negative length prefix")
)

// MaxVarIntLen is the longest encoding of a 32-bit VarInt.
const MaxVarIntLen = 5

// ReadVarInt reads a variable-length integer from the reader and returns the
// value together with the number of bytes consumed.
func ReadVarInt(r io.Reader) (int32, int, error) {
	var result int32
	var numRead int
	var buf [1]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if err == io.EOF && numRead > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, numRead, err
		}
		b := buf[0]
		result |= int32(b&0x7F) << (7 * numRead)
		numRead++
		if numRead > MaxVarIntLen {
			return 0, numRead, ErrMalformedVarInt
		}
		if (b & 0x80) == 0 {
			break
		}
	}
	return result, numRead, nil
}

// WriteVarInt writes a variable-length integer to the writer.
func WriteVarInt(w io.Writer, value int32) (int, error) {
	var buf [MaxVarIntLen]byte
	n := PutVarInt(buf[:], value)
	return w.Write(buf[:n])
}

// PutVarInt encodes a VarInt into buf and returns the number of bytes written.
// buf must hold at least MaxVarIntLen bytes.
func PutVarInt(buf []byte, value int32) int {
	uval := uint32(value)
	n := 0
	for {
		if (uval & ^uint32(0x7F)) == 0 {
			buf[n] = byte(uval)
			n++
			return n
		}
		buf[n] = byte(uval&0x7F) | 0x80
		n++
		uval >>= 7
	}
}

// VarIntSize returns the number of bytes needed to encode a VarInt.
func VarIntSize(value int32) int {
	uval := uint32(value)
	size := 0
	for {
		size++
		if (uval & ^uint32(0x7F)) == 0 {
			return size
		}
		uval >>= 7
	}
}

// ReadString reads a VarInt length-prefixed UTF-8 string.
//
// The declared length is not capped. Bytes are copied as they arrive, so a
// peer that lies about the length stalls or hits EOF before memory for the
// full declared size is committed.
func ReadString(r io.Reader) (string, error) {
	length, _, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", fmt.Errorf("%w: string length %d", ErrNegativeLength, length)
	}
	var sb strings.Builder
	n, err := io.CopyN(&sb, r, int64(length))
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("string body (%d of %d bytes): %w", n, length, err)
	}
	return strings.ToValidUTF8(sb.String(), "\uFFFD"), nil
}

// readFull fills buf. Fixed-width fields are always read inside a packet, so
// running out of input at any point is io.ErrUnexpectedEOF.
func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// WriteString writes a length-prefixed UTF-8 string.
func WriteString(w io.Writer, s string) error {
	if _, err := WriteVarInt(w, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadUint16 reads a big-endian unsigned 16-bit integer.
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// WriteUint16 writes a big-endian unsigned 16-bit integer.
func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadInt64 reads a big-endian signed 64-bit integer.
func ReadInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// WriteInt64 writes a big-endian signed 64-bit integer.
func WriteInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

// swapUUID reverses the 0-3, 4-5 and 6-7 byte groups of id. The operation is
// its own inverse.
func swapUUID(id [16]byte) [16]byte {
	out := id
	out[0], out[1], out[2], out[3] = id[3], id[2], id[1], id[0]
	out[4], out[5] = id[5], id[4]
	out[6], out[7] = id[7], id[6]
	return out
}

// WriteUUID writes a UUID in the wire layout used by Login Success: the first
// three groups of the identifier are byte-reversed and the last eight bytes
// follow unchanged.
func WriteUUID(w io.Writer, id uuid.UUID) error {
	out := swapUUID(id)
	_, err := w.Write(out[:])
	return err
}

// ReadUUID reads a UUID written by WriteUUID.
func ReadUUID(r io.Reader) (uuid.UUID, error) {
	var buf [16]byte
	if err := readFull(r, buf[:]); err != nil {
		return uuid.Nil, err
	}
	return uuid.UUID(swapUUID(buf)), nil
}
