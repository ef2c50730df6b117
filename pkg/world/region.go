package world

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Region file layout.
const (
	SectorSize      = 4096
	RegionWidth     = 32
	ChunksPerRegion = RegionWidth * RegionWidth

	locationEntrySize = 4
	chunkHeaderSize   = 5 // uint32 length + compression byte
)

// Compression schemes a chunk payload may declare. Only zlib is decoded.
const (
	CompressionGzip byte = 1
	CompressionZlib byte = 2
	CompressionNone byte = 3
	CompressionLZ4  byte = 4
)

var (
	// ErrUnsupportedCompression is returned for any payload not stored as zlib.
	ErrUnsupportedCompression = errors.New("world: unsupported chunk compression")

	errTruncated = errors.New("world: chunk payload runs past end of region file")
)

// Location is one entry of the region header: where a chunk starts, in
// sectors from the beginning of the file, and how many sectors it spans.
type Location struct {
	Offset  uint32
	Sectors uint8
}

// Empty reports whether the entry points at no chunk.
func (l Location) Empty() bool {
	return l.Offset == 0 || l.Sectors == 0
}

// RegionCoords returns the region that holds the given chunk.
func RegionCoords(chunkX, chunkZ int) (regionX, regionZ int) {
	return chunkX >> 5, chunkZ >> 5
}

// ChunkIndex returns the position of a chunk within its region's 32x32 grid.
// Negative coordinates wrap the same way a bitwise AND does.
func ChunkIndex(chunkX, chunkZ int) int {
	return (chunkX & 31) + (chunkZ&31)*RegionWidth
}

// readLocation reads the header entry at index: a 3-byte big-endian sector
// offset followed by a 1-byte sector count.
func readLocation(r io.ReaderAt, index int) (Location, error) {
	var buf [locationEntrySize]byte
	if _, err := r.ReadAt(buf[:], int64(index*locationEntrySize)); err != nil {
		return Location{}, fmt.Errorf("read location %d: %w", index, err)
	}
	return Location{
		Offset:  uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]),
		Sectors: buf[3],
	}, nil
}

// readTimestamp reads the last-modified time, in Unix seconds, from the
// second header table.
func readTimestamp(r io.ReaderAt, index int) (uint32, error) {
	var buf [4]byte
	off := int64(SectorSize + index*4)
	if _, err := r.ReadAt(buf[:], off); err != nil {
		return 0, fmt.Errorf("read timestamp %d: %w", index, err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// readPayload reads the chunk record loc points at and returns its
// compression type and the still-compressed bytes. size is the total file
// size and bounds the declared length.
func readPayload(r io.ReaderAt, size int64, loc Location) (byte, []byte, error) {
	start := int64(loc.Offset) * SectorSize

	var hdr [chunkHeaderSize]byte
	if _, err := r.ReadAt(hdr[:], start); err != nil {
		return 0, nil, fmt.Errorf("read chunk header at sector %d: %w", loc.Offset, err)
	}
	length := binary.BigEndian.Uint32(hdr[:4])
	compression := hdr[4]
	if length < 1 {
		return 0, nil, fmt.Errorf("chunk at sector %d declares length %d", loc.Offset, length)
	}

	dataLen := int64(length) - 1
	if start+chunkHeaderSize+dataLen > size {
		return 0, nil, fmt.Errorf("%w: sector %d, length %d, file size %d", errTruncated, loc.Offset, length, size)
	}

	data := make([]byte, dataLen)
	if _, err := r.ReadAt(data, start+chunkHeaderSize); err != nil {
		return 0, nil, fmt.Errorf("read chunk data at sector %d: %w", loc.Offset, err)
	}
	return compression, data, nil
}

// inflate decompresses a payload fully into memory.
func inflate(compression byte, data []byte) ([]byte, error) {
	if compression != CompressionZlib {
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedCompression, compression)
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open zlib stream: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate chunk: %w", err)
	}
	return raw, nil
}
