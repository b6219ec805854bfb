package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"poold/internal/domain"
)

// StatusProvider returns the current pool snapshots served on /pools.
type StatusProvider func() []domain.PoolInfo

type HTTPServerOptions struct {
	Addr          string
	EnableMetrics bool
	EnableHealthz bool
	Health        *HealthTracker
	Registry      prometheus.Gatherer
	PoolStatus    StatusProvider
}

// StartHTTPServer runs the observability endpoint until ctx is canceled.
// The listener is bound before the function goes async, so an unusable
// address fails the caller immediately instead of racing startup.
func StartHTTPServer(ctx context.Context, opts HTTPServerOptions, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.EnableMetrics && !opts.EnableHealthz && opts.PoolStatus == nil {
		return nil
	}

	addr := opts.Addr
	if addr == "" {
		addr = domain.DefaultObservabilityListenAddress
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	if opts.EnableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	if opts.EnableHealthz {
		mux.Handle("/healthz", healthHandler(opts.Health, logger))
	}
	if opts.PoolStatus != nil {
		mux.Handle("/pools", poolStatusHandler(opts.PoolStatus, logger))
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("observability listen on %s: %w", addr, err)
	}
	server := &http.Server{Handler: mux}

	logger.Info("observability server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("metrics", opts.EnableMetrics),
		zap.Bool("healthz", opts.EnableHealthz),
		zap.Bool("pools", opts.PoolStatus != nil),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("observability server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("observability server shutdown error", zap.Error(err))
		return err
	}
	logger.Info("observability server stopped")
	return nil
}

func healthHandler(tracker *HealthTracker, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := HealthReport{Status: "ok"}
		if tracker != nil {
			report = tracker.Report()
		}

		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
			stale := make([]string, 0, len(report.Components))
			for _, component := range report.Components {
				if component.Status != "ok" {
					stale = append(stale, component.Name)
				}
			}
			logger.Warn("health check degraded", zap.Strings("stale", stale))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})
}

func poolStatusHandler(provider StatusProvider, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pools := provider()
		queued := 0
		for _, p := range pools {
			queued += p.Stats.Queued
		}
		logger.Debug("pool status served",
			zap.Int("pools", len(pools)),
			zap.Int("queuedTotal", queued),
		)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pools)
	})
}
