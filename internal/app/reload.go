package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"poold/internal/domain"
	"poold/internal/infra/backend"
	"poold/internal/infra/catalog"
	"poold/internal/infra/cluster"
	"poold/internal/infra/pool"
)

const reloadDebounce = 200 * time.Millisecond

// reloader watches the catalog file and applies pool additions, removals
// and replacements to the running cluster. Pool config is immutable, so
// a changed spec is applied as remove-then-add.
type reloader struct {
	logger  *zap.Logger
	loader  *catalog.Loader
	path    string
	cluster *cluster.Cluster[*backend.Conn]
	build   func(domain.PoolSpec) (*pool.Pool[*backend.Conn], error)
	current map[string]domain.PoolSpec
}

func newReloader(
	logger *zap.Logger,
	loader *catalog.Loader,
	path string,
	cl *cluster.Cluster[*backend.Conn],
	build func(domain.PoolSpec) (*pool.Pool[*backend.Conn], error),
	pools []domain.PoolSpec,
) *reloader {
	current := make(map[string]domain.PoolSpec, len(pools))
	for _, spec := range pools {
		current[spec.Name] = spec
	}
	return &reloader{
		logger:  logger.Named("reload"),
		loader:  loader,
		path:    path,
		cluster: cl,
		build:   build,
		current: current,
	}
}

func (r *reloader) run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.logger.Warn("config watcher unavailable", zap.Error(err))
		return
	}
	defer watcher.Close()

	// Watch the directory: editors and config tools replace the file
	// instead of writing it in place.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		r.logger.Warn("config watch failed", zap.Error(err))
		return
	}

	var debounce *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("config watcher error", zap.Error(err))
		case <-pending:
			r.apply(ctx)
		}
	}
}

func (r *reloader) apply(ctx context.Context) {
	cat, err := r.loader.Load(ctx, r.path)
	if err != nil {
		r.logger.Warn("reload rejected", zap.Error(err))
		return
	}

	next := make(map[string]domain.PoolSpec, len(cat.Pools))
	for _, spec := range cat.Pools {
		next[spec.Name] = spec
	}

	for name, spec := range r.current {
		replacement, stillPresent := next[name]
		if stillPresent && spec.Equal(replacement) {
			continue
		}
		if p := r.cluster.Remove(name); p != nil {
			logger := r.logger
			p.End(func(errs []error) {
				for _, err := range errs {
					logger.Warn("teardown error after reload", zap.Error(err))
				}
			})
		}
		r.logger.Info("pool removed", zap.String("pool", name))
	}

	for _, spec := range cat.Pools {
		previous, existed := r.current[spec.Name]
		if existed && previous.Equal(spec) {
			continue
		}
		p, err := r.build(spec)
		if err != nil {
			r.logger.Warn("pool rebuild failed", zap.String("pool", spec.Name), zap.Error(err))
			delete(next, spec.Name)
			continue
		}
		if err := r.cluster.Add(p); err != nil {
			r.logger.Warn("pool attach failed", zap.String("pool", spec.Name), zap.Error(err))
			p.DestroyPool()
			delete(next, spec.Name)
			continue
		}
		r.logger.Info("pool added", zap.String("pool", spec.Name))
	}

	r.current = next
}
