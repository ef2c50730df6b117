package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/StoreStation/orbit/pkg/world"
)

var (
	chunkX     int
	chunkZ     int
	chunkWorld string
	chunkJSON  bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Inspect a chunk stored in a region file",
	Long: `Load one chunk from the configured world and print a summary of it.

The world directory is <world.root>/<world.name> from the configuration, or
the --world flag when given.

Examples:
  orbit chunk --x 0 --z 0
  orbit chunk --world ./saves/lobby --x -3 --z 17 --json`,
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().IntVar(&chunkX, "x", 0, "chunk X coordinate")
	chunkCmd.Flags().IntVar(&chunkZ, "z", 0, "chunk Z coordinate")
	chunkCmd.Flags().StringVar(&chunkWorld, "world", "", "world directory (overrides world.root/world.name)")
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "print the whole chunk tree as JSON")
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	w := world.Open(cfg.World.Root, cfg.World.Name)
	if chunkWorld != "" {
		w = world.New(chunkWorld)
	}

	chunk, ok := w.LoadChunk(chunkX, chunkZ)
	if !ok {
		return fmt.Errorf("chunk %d,%d not present in %s", chunkX, chunkZ, w.Dir())
	}

	out := cmd.OutOrStdout()
	if chunkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(chunk.Data)
	}

	rx, rz := world.RegionCoords(chunkX, chunkZ)
	fmt.Fprintf(out, "Chunk:        %d, %d\n", chunkX, chunkZ)
	fmt.Fprintf(out, "Region:       %s\n", w.RegionPath(rx, rz))
	if x, z, ok := chunk.Pos(); ok {
		fmt.Fprintf(out, "Position:     %d, %d\n", x, z)
	}
	if dv, ok := chunk.DataVersion(); ok {
		fmt.Fprintf(out, "Data version: %d\n", dv)
	}
	if status, ok := chunk.Status(); ok {
		fmt.Fprintf(out, "Status:       %s\n", status)
	}
	if ts, ok := w.ChunkTimestamp(chunkX, chunkZ); ok {
		fmt.Fprintf(out, "Saved:        %s\n", ts.UTC().Format("2006-01-02 15:04:05 MST"))
	}

	keys := make([]string, 0, len(chunk.Data))
	for k := range chunk.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "Tags:         %d\n", len(keys))
	for _, k := range keys {
		fmt.Fprintf(out, "  %s\n", k)
	}
	return nil
}
