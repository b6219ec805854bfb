package pool

import "poold/internal/domain"

// Stats returns a snapshot of the pool accounting. Allocated counts
// resources in teardown until their dispose completes; Available is the
// remaining headroom including idle resources on standby.
func (p *Pool[R]) Stats() domain.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	allocated := len(p.resources) + p.disposing
	return domain.Stats{
		Min:         p.cfg.Min,
		Max:         p.cfg.Max,
		Allocated:   allocated,
		Available:   p.cfg.Max - (allocated - len(p.available)),
		Queued:      len(p.requests),
		MaxRequests: p.cfg.MaxRequests,
	}
}

// Snapshot returns the JSON-friendly status view used by /pools.
func (p *Pool[R]) Snapshot() domain.PoolInfo {
	return domain.PoolInfo{
		Name:         p.cfg.Name,
		State:        p.Status().String(),
		Capabilities: p.cfg.Capabilities,
		Stats:        p.Stats(),
	}
}
