package world

import (
	"bytes"
	"fmt"

	"github.com/Tnze/go-mc/nbt"
)

// Chunk is one decoded chunk column: the root compound of its named-tag tree.
type Chunk struct {
	// X and Z are the coordinates the chunk was requested with.
	X, Z int

	// Name is the root tag name, usually empty.
	Name string

	// Data holds the root compound. Nested compounds are map[string]any;
	// numeric tags keep their wire width (int8, int16, int32, int64, ...).
	Data map[string]any
}

func parseChunk(chunkX, chunkZ int, raw []byte) (*Chunk, error) {
	data := make(map[string]any)
	name, err := nbt.NewDecoder(bytes.NewReader(raw)).Decode(&data)
	if err != nil {
		return nil, fmt.Errorf("parse chunk tree: %w", err)
	}
	return &Chunk{X: chunkX, Z: chunkZ, Name: name, Data: data}, nil
}

// Lookup walks nested compounds along path and returns the final value if it
// has type T.
func Lookup[T any](c *Chunk, path ...string) (T, bool) {
	var zero T
	if c == nil || len(path) == 0 {
		return zero, false
	}
	node := c.Data
	for _, key := range path[:len(path)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			return zero, false
		}
		node = next
	}
	v, ok := node[path[len(path)-1]].(T)
	return v, ok
}

// root returns the compound holding the chunk's fields. Worlds written before
// 1.18 wrap them in a "Level" compound.
func (c *Chunk) root() []string {
	if _, ok := c.Data["Level"].(map[string]any); ok {
		return []string{"Level"}
	}
	return nil
}

// Pos returns the chunk position recorded inside the chunk itself.
func (c *Chunk) Pos() (x, z int32, ok bool) {
	prefix := c.root()
	x, okX := Lookup[int32](c, append(prefix, "xPos")...)
	z, okZ := Lookup[int32](c, append(prefix, "zPos")...)
	return x, z, okX && okZ
}

// DataVersion returns the data version the chunk was saved with.
func (c *Chunk) DataVersion() (int32, bool) {
	return Lookup[int32](c, "DataVersion")
}

// Status returns the generation status, such as "minecraft:full".
func (c *Chunk) Status() (string, bool) {
	return Lookup[string](c, append(c.root(), "Status")...)
}
