package pool

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"poold/internal/domain"
	"poold/internal/infra/telemetry"
)

// retryKickDelay spaces out re-allocation after a failed factory call so
// a storm of failing factories does not busy-loop.
const retryKickDelay = 100 * time.Millisecond

// allocAttempt gates the race between the acquire timer and the factory
// callback: whichever marks done first wins the accounting, exactly once.
type allocAttempt struct {
	done bool
}

// allocateLocked reserves an acquiring slot and starts one factory call.
// Caller holds p.mu.
func (p *Pool[R]) allocateLocked() {
	p.acquiring++
	go p.runFactory()
}

func (p *Pool[R]) runFactory() {
	attempt := &allocAttempt{}

	ctx := context.Background()
	var cancel context.CancelFunc
	var guard *time.Timer
	if p.cfg.AcquireTimeout != NoTimeout {
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
		guard = time.AfterFunc(p.cfg.AcquireTimeout, func() {
			p.factoryTimedOut(attempt)
		})
	}

	started := time.Now()
	resource, err := p.safeFactory(ctx)
	if guard != nil {
		guard.Stop()
	}
	p.metrics.ObserveFactory(p.cfg.Name, time.Since(started), err)

	if err != nil {
		p.factoryFailed(attempt, err)
		return
	}
	p.factorySucceeded(attempt, resource)
}

func (p *Pool[R]) safeFactory(ctx context.Context) (resource R, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("factory panic: %v", v)
		}
	}()
	return p.cfg.Acquire(ctx)
}

func (p *Pool[R]) factoryTimedOut(attempt *allocAttempt) {
	p.mu.Lock()
	if attempt.done {
		p.mu.Unlock()
		return
	}
	attempt.done = true
	p.acquiring--
	initial := p.status == StatusInitial && !p.live
	drain := p.syntheticDrainLocked()
	p.mu.Unlock()

	err := domain.Wrap(domain.CodeDeadlineExceeded, "pool factory", domain.ErrTimedOut)
	if initial {
		p.initialFailure(err)
	} else {
		p.emitWarn(telemetry.EventFactoryTimeout, err)
		p.kickAfterFailure()
	}
	if drain {
		p.emitDrain()
	}
}

func (p *Pool[R]) factoryFailed(attempt *allocAttempt, err error) {
	p.mu.Lock()
	if attempt.done {
		// The timer already settled this attempt.
		p.mu.Unlock()
		return
	}
	attempt.done = true
	p.acquiring--
	initial := p.status == StatusInitial && !p.live
	drain := p.syntheticDrainLocked()
	p.mu.Unlock()

	if initial {
		p.initialFailure(err)
	} else {
		p.emitWarn(telemetry.EventFactoryFailure, err)
		p.kickAfterFailure()
	}
	if drain {
		p.emitDrain()
	}
}

func (p *Pool[R]) factorySucceeded(attempt *allocAttempt, resource R) {
	p.mu.Lock()
	if attempt.done {
		// The acquire timer fired first: the resource arrived late and
		// is handed to graceful teardown, never dropped.
		p.mu.Unlock()
		p.logger.Warn("late factory arrival",
			telemetry.EventField(telemetry.EventLateArrival),
		)
		p.remove(resource, true, nil)
		return
	}
	attempt.done = true
	p.acquiring--
	p.live = true
	if p.status == StatusInitial {
		p.status = StatusLive
		p.firstFailAt = time.Time{}
		p.retry.Reset()
	}
	if p.status == StatusEnding || p.status == StatusDestroyed {
		drain := p.syntheticDrainLocked()
		p.mu.Unlock()
		p.remove(resource, true, nil)
		if drain {
			p.emitDrain()
		}
		return
	}
	p.resources[resource] = p.now()
	p.available = append([]R{resource}, p.available...)
	p.mu.Unlock()

	p.updateGauges()
	p.scheduleDispatch()
}

// syntheticDrainLocked reports whether the end routine should proceed now
// that this factory callback settled. Covers end() called during a
// min-fill with no pending requests.
func (p *Pool[R]) syntheticDrainLocked() bool {
	return p.status == StatusEnding && !p.teardownStarted && len(p.requests) == 0 && p.acquiring == 0
}

func (p *Pool[R]) kickAfterFailure() {
	time.AfterFunc(retryKickDelay, func() {
		p.ensureMinimum()
		p.scheduleDispatch()
	})
}

// initialFailure handles a factory error before the pool ever went live:
// retry on a backoff schedule until the bailAfter window is exhausted,
// then destroy the pool.
func (p *Pool[R]) initialFailure(err error) {
	p.mu.Lock()
	if p.status != StatusInitial {
		p.mu.Unlock()
		return
	}
	now := time.Now()
	if p.firstFailAt.IsZero() {
		p.firstFailAt = now
	}
	exhausted := p.cfg.BailAfter > 0 && now.Sub(p.firstFailAt) >= p.cfg.BailAfter
	if !exhausted {
		delay := p.retry.Next()
		p.stopRetryLocked()
		p.retryTimer = time.AfterFunc(delay, p.retryInitial)
		p.mu.Unlock()
		p.logger.Warn("initial factory failure, retrying",
			telemetry.EventField(telemetry.EventFactoryFailure),
			zap.Duration("retryIn", delay),
			zap.Error(err),
		)
		if hook := p.cfg.Hooks.OnWarn; hook != nil {
			hook(err)
		}
		return
	}
	p.mu.Unlock()

	p.emitError(domain.Wrap(domain.CodeUnavailable, "pool factory", err))
	p.destroyPool()
}

func (p *Pool[R]) retryInitial() {
	p.ensureMinimum()
	p.scheduleDispatch()
}
