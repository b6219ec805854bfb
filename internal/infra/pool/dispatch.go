package pool

import (
	"context"
	"fmt"
	"time"

	"poold/internal/domain"
	"poold/internal/infra/telemetry"
)

// scheduleDispatch starts the dispatch loop unless one is already
// running. The loop re-examines all state on every iteration, so a
// mutation made while it runs is never lost.
func (p *Pool[R]) scheduleDispatch() {
	p.mu.Lock()
	if p.dispatching || p.status == StatusDestroyed {
		p.mu.Unlock()
		return
	}
	p.dispatching = true
	p.mu.Unlock()
	go p.dispatchLoop()
}

// dispatchLoop matches available resources to queued requests in FIFO
// order. It is the only goroutine that pairs resources with requests, so
// each iteration is atomic with respect to external mutations.
func (p *Pool[R]) dispatchLoop() {
	for {
		p.mu.Lock()
		emptied := p.pruneRequestsLocked()
		if p.status == StatusDestroyed {
			p.dispatching = false
			p.mu.Unlock()
			return
		}
		if len(p.requests) == 0 {
			p.dispatching = false
			p.mu.Unlock()
			if emptied {
				p.emitDrain()
			}
			return
		}

		if len(p.available) > 0 {
			resource := p.available[0]
			p.available = p.available[1:]
			p.mu.Unlock()

			if err := p.pingResource(resource); err != nil {
				p.emitWarn(telemetry.EventPingFailure, err)
				p.remove(resource, true, nil)
				p.mu.Lock()
				var head *Request[R]
				if len(p.requests) > 0 {
					head = p.requests[0]
				}
				p.mu.Unlock()
				if head != nil {
					p.logger.Debug("request requeued", telemetry.EventField(telemetry.EventRequeue), telemetry.RequestIDField(head.ID()))
					if hook := p.cfg.Hooks.OnRequeue; hook != nil {
						hook(head)
					}
				}
				continue
			}

			p.mu.Lock()
			p.pruneRequestsLocked()
			if len(p.requests) == 0 {
				// The request died while we pinged; keep the resource.
				p.mu.Unlock()
				p.returnResource(resource)
				continue
			}
			req := p.requests[0]
			p.requests = p.requests[1:]
			drained := len(p.requests) == 0
			p.mu.Unlock()

			if !req.Resolve(resource) {
				// Lost the race with an abort or timeout: the resource
				// goes back for the next request, never leaked.
				p.returnResource(resource)
				continue
			}
			p.updateGauges()
			if drained {
				p.emitDrain()
			}
			continue
		}

		if (p.status == StatusInitial || p.status == StatusLive) &&
			len(p.resources)+p.acquiring < p.cfg.Max &&
			p.acquiring < len(p.requests) {
			p.allocateLocked()
			p.mu.Unlock()
			continue
		}

		p.dispatching = false
		p.mu.Unlock()
		return
	}
}

// pruneRequestsLocked drops terminal requests from the queue and reports
// whether that emptied it.
func (p *Pool[R]) pruneRequestsLocked() bool {
	if len(p.requests) == 0 {
		return false
	}
	kept := p.requests[:0]
	for _, req := range p.requests {
		if !req.Fulfilled() {
			kept = append(kept, req)
		}
	}
	emptied := len(kept) == 0
	p.requests = kept
	return emptied
}

// returnResource puts a resource that was earmarked but never handed out
// back where it belongs.
func (p *Pool[R]) returnResource(resource R) {
	p.mu.Lock()
	if _, member := p.resources[resource]; !member || p.status == StatusDestroyed {
		p.mu.Unlock()
		return
	}
	if p.teardownStarted {
		p.mu.Unlock()
		p.remove(resource, true, nil)
		return
	}
	p.resources[resource] = p.now()
	p.available = append([]R{resource}, p.available...)
	p.mu.Unlock()
	p.updateGauges()
}

func (p *Pool[R]) pingResource(resource R) error {
	if p.cfg.Ping == nil {
		return nil
	}
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PingTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- fmt.Errorf("ping panic: %v", v)
			}
		}()
		done <- p.cfg.Ping(ctx, resource)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = domain.Wrap(domain.CodeDeadlineExceeded, "pool ping", domain.ErrTimedOut)
	}
	p.metrics.ObservePing(p.cfg.Name, time.Since(started), err)
	return err
}
