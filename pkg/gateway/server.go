package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/config"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/engine"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/rules"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/telemetry/metrics"
)

// Server is the enforcement gateway HTTP server.
type Server struct {
	config       config.GatewayConfig
	metricsCfg   config.MetricsConfig
	engine       *engine.Engine
	blocks       ledger.BlockStore
	audit        *ledger.Audit
	ruleStore    *rules.Store
	collector    *metrics.Collector
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new enforcement gateway server.
func NewServer(cfg config.GatewayConfig, metricsCfg config.MetricsConfig, eng *engine.Engine, blocks ledger.BlockStore, audit *ledger.Audit, ruleStore *rules.Store, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:     cfg,
		metricsCfg: metricsCfg,
		engine:     eng,
		blocks:     blocks,
		audit:      audit,
		ruleStore:  ruleStore,
		collector:  collector,
		logger:     logger.With("component", "gateway"),
	}
}

// Start starts the HTTP server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("gateway is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting enforcement gateway", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("gateway listener: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during gateway shutdown", "error", err)
				shutdownErr = fmt.Errorf("gateway shutdown: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("enforcement gateway stopped")
	})

	return shutdownErr
}

// Routes builds the handler tree with the middleware chain applied.
// Exposed separately from Start so tests can drive the gateway through
// httptest without a listener.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/enforce", s.handleEnforce)
	mux.HandleFunc("/v1/blocks", s.handleListBlocks)
	mux.HandleFunc("/v1/blocks/", s.handleBlockByID)
	mux.HandleFunc("/v1/rules", s.handleRules)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	if s.metricsCfg.Enabled && s.collector != nil {
		mux.Handle(s.metricsCfg.Path, s.collector.Handler())
	}

	var handler http.Handler = mux
	handler = s.metricsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = s.recoveryMiddleware(handler)

	return handler
}
