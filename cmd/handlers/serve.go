package handlers

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spectra/internal/config"
	"spectra/internal/llm"
	"spectra/internal/logger"
	"spectra/internal/query"
	"spectra/internal/server"
	"spectra/internal/vectorstore"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP server exposing the query API.

Endpoints:
  GET /api/query   spectrum record for a query and date range
  GET /api/topics  the day's mined topics
  GET /health      service health

Examples:
  # Start on the configured address (default 0.0.0.0:8080)
  spectra serve

  # Start on a custom port
  spectra serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), host, port)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")

	return cmd
}

func runServe(ctx context.Context, host string, port int) error {
	log := logger.Get()
	cfg := config.Get()

	serverCfg := cfg.Server
	if host != "" {
		serverCfg.Host = host
	}
	if port != 0 {
		serverCfg.Port = port
	}

	s, err := connectStore()
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := llm.NewClient(ctx)
	if err != nil {
		return err
	}

	searcher := vectorstore.NewPgVectorAdapter(s.DB())
	queryService := query.NewService(s, searcher, client, client, client.LightModel())
	srv := server.New(queryService, s.Topics(), s, serverCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
