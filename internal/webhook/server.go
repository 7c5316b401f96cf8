package webhook

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tvcollector/config"
	"tvcollector/pkg/storage"
	"tvcollector/pkg/storage/postgres"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the webhook receiver's HTTP front. Handlers get the store
// injected at construction; there is no other path that writes observations.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

func NewServer(cfg config.ServerConfig, store storage.Store, logger *zap.Logger) *Server {
	handler := NewHandler(store, NewHub(logger), logger)

	r := mux.NewRouter()
	r.Use(Recovery(logger), Logging(logger))

	r.HandleFunc("/", handler.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", handler.Health).Methods(http.MethodGet)
	r.HandleFunc("/webhook", handler.ReceiveWebhook).Methods(http.MethodPost)
	r.HandleFunc("/observations", handler.AllObservations).Methods(http.MethodGet)
	r.HandleFunc("/observations/latest", handler.LatestObservations).Methods(http.MethodGet)
	r.HandleFunc("/observations/export", handler.ExportObservations).Methods(http.MethodGet)
	r.HandleFunc("/ws", handler.StreamObservations).Methods(http.MethodGet)

	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Run serves until ctx is cancelled, then drains within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// Start wires the webhook receiver: Postgres store (created and migrated if
// needed), HTTP server, and signal-driven shutdown. It blocks until the
// process is told to stop.
func Start(cfg *config.Config, logger *zap.Logger) error {
	client, err := postgres.InitializeAndMigrateObservation(cfg.Postgres, cfg.Log.Environment, true)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer client.Close()

	server := NewServer(cfg.Server, client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}
