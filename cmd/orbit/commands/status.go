package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/StoreStation/orbit/pkg/protocol"
	"github.com/StoreStation/orbit/pkg/server"
)

var (
	statusProtocol int32
	statusTimeout  time.Duration
	statusJSON     bool
)

var statusCmd = &cobra.Command{
	Use:   "status <host:port>",
	Short: "Query a server's status",
	Long: `Perform a server-list ping against a server and print its status.

Examples:
  orbit status localhost:25565
  orbit status play.example.com:25565 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Int32Var(&statusProtocol, "protocol", protocol.ProtocolVersion, "protocol version to announce in the handshake")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "overall timeout for the query")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	result, err := server.QueryStatus(ctx, args[0], statusProtocol)
	if err != nil {
		return fmt.Errorf("query %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Status)
	}

	st := result.Status
	fmt.Fprintf(out, "Version:  %s (protocol %d)\n", st.Version.Name, st.Version.Protocol)
	fmt.Fprintf(out, "Players:  %d/%d\n", st.Players.Online, st.Players.Max)
	for _, p := range st.Players.Sample {
		fmt.Fprintf(out, "  - %s (%s)\n", p.Name, p.ID)
	}
	fmt.Fprintf(out, "MOTD:     %s\n", st.Description.Text)
	fmt.Fprintf(out, "Latency:  %s\n", result.Latency.Round(time.Millisecond))
	return nil
}
