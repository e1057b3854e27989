// Package server assembles the gateway HTTP surfaces and manages their
// lifecycle.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akme/indexer/config"
	"github.com/akme/indexer/errors"
	gwhttp "github.com/akme/indexer/gateway/http"
	"github.com/akme/indexer/metric"
)

// Server owns the API and metrics listeners.
type Server struct {
	config      config.ServerConfig
	gateway     *gwhttp.Gateway
	statusProxy http.Handler
	registry    *metric.Registry
	logger      *slog.Logger
}

// New creates a server from its assembled parts.
func New(cfg config.ServerConfig, gateway *gwhttp.Gateway, statusProxy http.Handler,
	registry *metric.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:      cfg,
		gateway:     gateway,
		statusProxy: statusProxy,
		registry:    registry,
		logger:      logger,
	}
}

// apiHandler builds the API mux: liveness, status proxy, query endpoint.
func (s *Server) apiHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready to roll!"))
	})

	mux.Handle("/status", s.statusProxy)
	s.gateway.RegisterHTTPHandlers(mux)

	return mux
}

// metricsHandler builds the metrics mux.
func (s *Server) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.registry.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Run starts both listeners and blocks until the context is cancelled or a
// listener fails. Shutdown is graceful within the given timeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	api := &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: s.apiHandler(),
	}
	metrics := &http.Server{
		Addr:    s.config.MetricsAddr,
		Handler: s.metricsHandler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("api server listening", "addr", s.config.ListenAddr)
		if err := api.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapFatal(err, "Server", "Run", "api listener")
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info("metrics server listening", "addr", s.config.MetricsAddr)
		if err := metrics.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapFatal(err, "Server", "Run", "metrics listener")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down", "timeout", shutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := api.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			return errors.WrapTransient(stderrors.Join(errs...), "Server", "Run", "shutdown")
		}
		return nil
	})

	return g.Wait()
}
