package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kdd-ids/internal/ml"
	"kdd-ids/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	servePort    int
	serveVersion string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions from a stored artifact pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := settings.ServerPort
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		pair, err := loadPair(serveVersion)
		if err != nil {
			return err
		}

		mw := cliMetrics()
		svc, err := ml.NewService(pair, mw)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go reportModelAge(ctx, svc)

		srv := server.NewModelServer(svc, port, settings.RequestTimeout, prometheus.DefaultGatherer)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		log.Info().
			Str("version", pair.Manifest.Version).
			Int("expected_features", pair.ExpectedFeatures()).
			Int("port", port).
			Msg("model server started")

		return waitForShutdown(srv, errCh)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (defaults to SERVER_PORT)")
	serveCmd.Flags().StringVar(&serveVersion, "version", "", "artifact version (defaults to the active one)")
	rootCmd.AddCommand(serveCmd)
}

func reportModelAge(ctx context.Context, svc *ml.Service) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	svc.ReportModelAge()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReportModelAge()
		}
	}
}

// waitForShutdown blocks until a signal arrives or the server fails, then
// drains in-flight requests.
func waitForShutdown(srv *server.ModelServer, errCh <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout reached, forcing exit")
		return err
	}
	log.Info().Msg("graceful shutdown completed")
	return nil
}
