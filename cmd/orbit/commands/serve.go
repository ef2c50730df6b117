package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/StoreStation/orbit/pkg/config"
	"github.com/StoreStation/orbit/pkg/server"
)

var (
	serveAddress    string
	serveMaxPlayers int
	serveMOTD       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the server",
	Long: `Run the server in the foreground until interrupted.

Flags override the configuration file and environment.

Examples:
  # Defaults: listen on :25565
  orbit serve

  # Custom config file with a flag override
  orbit serve --config /etc/orbit.yaml --motd "Maintenance"

  # Environment overrides
  ORBIT_LOGGING_LEVEL=debug ORBIT_METRICS_ENABLED=true orbit serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "server address to listen on")
	serveCmd.Flags().IntVar(&serveMaxPlayers, "max-players", 0, "maximum number of players shown in the server list")
	serveCmd.Flags().StringVar(&serveMOTD, "motd", "", "server MOTD")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Server.Address = serveAddress
	}
	if flags.Changed("max-players") {
		cfg.Server.MaxPlayers = serveMaxPlayers
	}
	if flags.Changed("motd") {
		cfg.Server.MOTD = serveMOTD
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var metrics *server.Metrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = server.NewMetrics(reg)
		metricsSrv = startMetricsServer(cfg.Metrics, reg)
	}

	srv := server.New(cfg.Server, metrics)
	if err := srv.Start(); err != nil {
		return err
	}

	log.Info().
		Str("version", Version).
		Int("max_players", cfg.Server.MaxPlayers).
		Msg("orbit server started")

	// Wait for interrupt signal or accept loop failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case <-srv.Done():
		runErr = errors.New("listener stopped unexpectedly")
		log.Error().Err(runErr).Msg("shutting down server")
	}

	srv.Stop()
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}
	log.Info().Msg("server stopped")
	return runErr
}

func startMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Address).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", cfg.Address).Msg("metrics server failed")
		}
	}()
	return srv
}
