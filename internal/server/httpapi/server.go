package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/netsoclabs/memberd/internal/logging"
)

type Server struct {
	address string
	handler *Handler
	logger  logging.Logger
}

func NewServer(address string, handler *Handler, logger logging.Logger) *Server {
	return &Server{
		address: address,
		handler: handler,
		logger:  logger.With("module", "http_server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "graceful shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
