// Package world reads chunks out of a world's region files.
package world

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/StoreStation/orbit/pkg/logger"
)

// World is a world directory on disk. It holds no open files or cached data,
// so it is safe for concurrent use.
type World struct {
	dir string
}

// Open returns the world called name under root, i.e. root/name.
func Open(root, name string) *World {
	return New(filepath.Join(root, name))
}

// New returns the world rooted at dir.
func New(dir string) *World {
	return &World{dir: dir}
}

// Dir returns the world directory.
func (w *World) Dir() string { return w.dir }

// RegionPath returns the file holding the given region.
func (w *World) RegionPath(regionX, regionZ int) string {
	return filepath.Join(w.dir, "region", fmt.Sprintf("r.%d.%d.mca", regionX, regionZ))
}

// LoadChunk reads and parses the chunk at the given chunk coordinates. It
// reports false when the chunk is not stored, uses a compression other than
// zlib, or cannot be read; failures are logged, never returned.
func (w *World) LoadChunk(chunkX, chunkZ int) (*Chunk, bool) {
	chunk, err := w.loadChunk(chunkX, chunkZ)
	switch {
	case err == nil:
		return chunk, chunk != nil
	case errors.Is(err, ErrUnsupportedCompression):
		l := w.chunkLog(chunkX, chunkZ)
		l.Debug().Err(err).Msg("skipping chunk")
	default:
		l := w.chunkLog(chunkX, chunkZ)
		l.Error().Err(err).Msg("error loading chunk")
	}
	return nil, false
}

// loadChunk returns a nil chunk and nil error when the chunk is absent.
func (w *World) loadChunk(chunkX, chunkZ int) (*Chunk, error) {
	f, size, err := w.openRegion(chunkX, chunkZ)
	if f == nil || err != nil {
		return nil, err
	}
	defer f.Close()

	loc, err := readLocation(f, ChunkIndex(chunkX, chunkZ))
	if err != nil {
		return nil, err
	}
	if loc.Empty() {
		return nil, nil
	}

	compression, data, err := readPayload(f, size, loc)
	if err != nil {
		return nil, err
	}
	raw, err := inflate(compression, data)
	if err != nil {
		return nil, err
	}
	return parseChunk(chunkX, chunkZ, raw)
}

// ChunkTimestamp returns when the chunk was last written, read from the
// region's timestamp table. It reports false under the same conditions that
// make a chunk absent in LoadChunk's location lookup.
func (w *World) ChunkTimestamp(chunkX, chunkZ int) (time.Time, bool) {
	f, _, err := w.openRegion(chunkX, chunkZ)
	if f == nil || err != nil {
		if err != nil {
			l := w.chunkLog(chunkX, chunkZ)
			l.Error().Err(err).Msg("error reading chunk timestamp")
		}
		return time.Time{}, false
	}
	defer f.Close()

	index := ChunkIndex(chunkX, chunkZ)
	loc, err := readLocation(f, index)
	if err == nil && loc.Empty() {
		return time.Time{}, false
	}
	var ts uint32
	if err == nil {
		ts, err = readTimestamp(f, index)
	}
	if err != nil {
		l := w.chunkLog(chunkX, chunkZ)
		l.Error().Err(err).Msg("error reading chunk timestamp")
		return time.Time{}, false
	}
	return time.Unix(int64(ts), 0), true
}

func (w *World) chunkLog(chunkX, chunkZ int) zerolog.Logger {
	return logger.Component("world").With().
		Str("world", w.dir).
		Int("chunk_x", chunkX).
		Int("chunk_z", chunkZ).
		Logger()
}

// openRegion opens the region file for a chunk. A missing file yields a nil
// file and nil error.
func (w *World) openRegion(chunkX, chunkZ int) (*os.File, int64, error) {
	path := w.RegionPath(RegionCoords(chunkX, chunkZ))
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open region: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat region: %w", err)
	}
	return f, info.Size(), nil
}
