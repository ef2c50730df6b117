package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/StoreStation/orbit/pkg/protocol"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "orbit %s\n", Version)
		fmt.Fprintf(out, "  Commit:     %s\n", Commit)
		fmt.Fprintf(out, "  Built:      %s\n", Date)
		fmt.Fprintf(out, "  Minecraft:  %s (protocol %d)\n", protocol.VersionName, protocol.ProtocolVersion)
		fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
	},
}
