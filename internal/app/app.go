// Package app wires the catalog, pools, cluster and observability
// surface into the poold daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"poold/internal/domain"
	"poold/internal/infra/backend"
	"poold/internal/infra/catalog"
	"poold/internal/infra/cluster"
	"poold/internal/infra/pool"
	"poold/internal/infra/telemetry"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{logger: logger}
}

type ServeConfig struct {
	ConfigPath string
}

// Serve runs the daemon until ctx is canceled, then drains every pool.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	loader := catalog.NewLoader(a.logger)
	cat, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	metrics := telemetry.NewPrometheusMetrics(nil)
	health := telemetry.NewHealthTracker()

	cl, err := cluster.New[*backend.Conn](a.logger)
	if err != nil {
		return err
	}
	build := a.poolBuilder(metrics, health)
	for _, spec := range cat.Pools {
		p, err := build(spec)
		if err != nil {
			return fmt.Errorf("pool %s: %w", spec.Name, err)
		}
		if err := cl.Add(p); err != nil {
			return err
		}
	}
	a.logger.Info("pools started", zap.Int("count", len(cat.Pools)))

	reload := newReloader(a.logger, loader, cfg.ConfigPath, cl, build, cat.Pools)
	go reload.run(ctx)

	obs := cat.Runtime.Observability
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- telemetry.StartHTTPServer(ctx, telemetry.HTTPServerOptions{
			Addr:          obs.ListenAddress,
			EnableMetrics: obs.EnableMetrics,
			EnableHealthz: obs.EnableHealthz,
			Health:        health,
			PoolStatus:    cl.Status,
		}, a.logger)
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			a.endCluster(cl)
			return err
		}
		<-ctx.Done()
	case <-ctx.Done():
		<-serverDone
	}

	a.logger.Info("shutting down")
	return a.endCluster(cl)
}

func (a *App) endCluster(cl *cluster.Cluster[*backend.Conn]) error {
	done := make(chan []error, 1)
	cl.End(func(errs []error) { done <- errs })
	select {
	case errs := <-done:
		for _, err := range errs {
			a.logger.Warn("teardown error during shutdown", zap.Error(err))
		}
		if len(errs) > 0 {
			return fmt.Errorf("shutdown finished with %d teardown errors", len(errs))
		}
		a.logger.Info("shutdown complete")
		return nil
	case <-time.After(shutdownTimeout):
		return errors.New("shutdown timed out")
	}
}

func (a *App) poolBuilder(metrics domain.Metrics, health *telemetry.HealthTracker) func(domain.PoolSpec) (*pool.Pool[*backend.Conn], error) {
	return func(spec domain.PoolSpec) (*pool.Pool[*backend.Conn], error) {
		return a.buildPool(spec, metrics, health)
	}
}

func (a *App) buildPool(spec domain.PoolSpec, metrics domain.Metrics, health *telemetry.HealthTracker) (*pool.Pool[*backend.Conn], error) {
	dialer := backend.NewDialer(spec, a.logger)
	idle := spec.IdleTimeout()
	if spec.SyncInterval() == pool.NoTimeout {
		idle = 0
	}
	return pool.New(pool.Config[*backend.Conn]{
		Name:           spec.Name,
		Acquire:        dialer.Dial,
		Dispose:        dialer.Close,
		Destroy:        dialer.Destroy,
		Ping:           dialer.Ping,
		Min:            spec.Min,
		Max:            spec.Max,
		MaxRequests:    spec.MaxRequests,
		AcquireTimeout: spec.AcquireTimeout(),
		DisposeTimeout: spec.DisposeTimeout(),
		PingTimeout:    spec.PingTimeout(),
		IdleTimeout:    idle,
		SyncInterval:   spec.SyncInterval(),
		RequestTimeout: spec.RequestTimeout(),
		BailAfter:      spec.BailAfter(),
		Backoff: pool.BackoffConfig{
			Base: spec.BackoffBase(),
			Max:  spec.BackoffMax(),
		},
		Capabilities: spec.Capabilities,
		Logger:       a.logger,
		Metrics:      metrics,
		Health:       health,
	})
}

type ValidateConfig struct {
	ConfigPath string
}

// Validate loads the catalog and echoes the normalized form
// without starting any pool.
func (a *App) Validate(ctx context.Context, cfg ValidateConfig) error {
	loader := catalog.NewLoader(a.logger)
	cat, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(normalizedView(cat))
	if err != nil {
		return fmt.Errorf("render catalog: %w", err)
	}
	if _, err := os.Stdout.Write(out); err != nil {
		return err
	}
	a.logger.Info("catalog valid", zap.Int("pools", len(cat.Pools)))
	return nil
}

type normalizedPool struct {
	Name         string   `yaml:"name"`
	Network      string   `yaml:"network"`
	Address      string   `yaml:"address"`
	Capabilities []string `yaml:"capabilities,omitempty"`
	Min          int      `yaml:"min"`
	Max          int      `yaml:"max"`
}

type normalizedCatalog struct {
	Pools         []normalizedPool `yaml:"pools"`
	Observability struct {
		ListenAddress string `yaml:"listenAddress"`
	} `yaml:"observability"`
}

func normalizedView(cat domain.Catalog) normalizedCatalog {
	var view normalizedCatalog
	for _, spec := range cat.Pools {
		view.Pools = append(view.Pools, normalizedPool{
			Name:         spec.Name,
			Network:      spec.Network,
			Address:      spec.Address,
			Capabilities: spec.Capabilities,
			Min:          spec.Min,
			Max:          spec.Max,
		})
	}
	view.Observability.ListenAddress = cat.Runtime.Observability.ListenAddress
	return view
}
