package pool

import (
	"time"

	"poold/internal/infra/telemetry"
)

func (p *Pool[R]) startSync() {
	interval := p.cfg.SyncInterval
	p.syncTicker = time.NewTicker(interval)
	p.stopSync = make(chan struct{})
	stop := p.stopSync
	ticker := p.syncTicker
	if p.cfg.Health != nil {
		p.syncBeat = p.cfg.Health.Register("pool_sync_"+p.cfg.Name, interval*3)
	}
	beat := p.syncBeat
	go func() {
		for {
			select {
			case <-ticker.C:
				beat.Beat()
				p.sync()
			case <-stop:
				return
			}
		}
	}()
}

func (p *Pool[R]) stopSyncLocked() {
	if p.syncTicker == nil {
		return
	}
	p.syncTicker.Stop()
	p.syncTicker = nil
	close(p.stopSync)
	if p.syncBeat != nil {
		p.syncBeat.Stop()
		p.syncBeat = nil
	}
}

func (p *Pool[R]) sync() {
	p.ensureMinimum()
	p.reap()
	p.scheduleDispatch()
}

// ensureMinimum starts factory calls until the pool, counting in-flight
// allocations, reaches Min.
func (p *Pool[R]) ensureMinimum() {
	p.mu.Lock()
	if p.status == StatusEnding || p.status == StatusDestroyed {
		p.mu.Unlock()
		return
	}
	for len(p.resources)+p.acquiring < p.cfg.Min {
		p.allocateLocked()
	}
	p.mu.Unlock()
}

// reap tears down idle resources above Min, oldest first.
func (p *Pool[R]) reap() {
	cutoff := p.now().Add(-p.cfg.IdleTimeout)

	var candidates []R
	p.mu.Lock()
	if p.status == StatusEnding || p.status == StatusDestroyed {
		p.mu.Unlock()
		return
	}
	for len(p.available) > 0 {
		if len(p.resources)-len(candidates) <= p.cfg.Min {
			break
		}
		tail := p.available[len(p.available)-1]
		if !p.resources[tail].Before(cutoff) {
			break
		}
		p.available = p.available[:len(p.available)-1]
		candidates = append(candidates, tail)
	}
	p.mu.Unlock()

	for _, resource := range candidates {
		p.logger.Info("idle reap", telemetry.EventField(telemetry.EventIdleReap))
		p.remove(resource, true, nil)
	}
}
