// Package commands implements the orbit command line.
package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/StoreStation/orbit/pkg/config"
	"github.com/StoreStation/orbit/pkg/logger"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "Orbit - a minimal Minecraft status and login server",
	Long: `Orbit answers server-list pings and completes offline-mode logins for
Minecraft Java Edition 1.20.6 clients. It can also query other servers and
inspect chunks stored in region files.

Use "orbit [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); ORBIT_* environment variables override it")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chunkCmd)
	rootCmd.AddCommand(initCmd)
}

// loadConfig reads the configuration and installs the global logger. Log
// output goes to w, normally the command's stderr.
func loadConfig(w io.Writer) (*config.Config, io.Closer, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	closer, err := logger.Init(cfg.Logging, w)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}
