package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"poold/internal/domain"
	"poold/internal/infra/telemetry"
)

// remove detaches a resource and runs the dispose operation under the
// dispose deadline. skipError suppresses the usage error for internal
// callers that already own the resource outside the accounting.
func (p *Pool[R]) remove(resource R, skipError bool, callback func(error)) {
	p.mu.Lock()
	_, member := p.resources[resource]
	delete(p.resources, resource)
	p.removeAvailableLocked(resource)
	p.disposing++
	p.mu.Unlock()

	p.updateGauges()
	if !member && !skipError {
		p.emitError(domain.Wrap(domain.CodeInvalidArgument, "pool remove", domain.ErrNotMember))
	}
	go p.runDispose(resource, callback)
}

func (p *Pool[R]) runDispose(resource R, callback func(error)) {
	var once sync.Once
	finish := func(err error) {
		once.Do(func() { p.finishDispose(err, callback) })
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	var fallback *time.Timer
	if p.cfg.DisposeTimeout != NoTimeout {
		ctx, cancel = context.WithTimeout(ctx, p.cfg.DisposeTimeout)
		defer cancel()
		fallback = time.AfterFunc(p.cfg.DisposeTimeout, func() {
			err := domain.Wrap(domain.CodeDeadlineExceeded, "pool dispose", domain.ErrTimedOut)
			p.emitWarn(telemetry.EventDisposeTimeout, err)
			p.forceDestroy(resource)
			finish(err)
		})
	}

	err := p.safeDispose(ctx, resource)
	if fallback != nil {
		fallback.Stop()
	}
	finish(err)
}

func (p *Pool[R]) safeDispose(ctx context.Context, resource R) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("dispose panic: %v", v)
		}
	}()
	return p.cfg.Dispose(ctx, resource)
}

func (p *Pool[R]) finishDispose(err error, callback func(error)) {
	p.mu.Lock()
	p.disposing--
	status := p.status
	if err != nil && status == StatusEnding {
		p.endErrs = append(p.endErrs, err)
	}
	finish := p.endCheckLocked()
	p.mu.Unlock()

	p.metrics.ObserveDispose(p.cfg.Name, err)
	if err != nil && status != StatusEnding {
		p.emitWarn(telemetry.EventDisposeFailure, err)
	}
	if callback != nil {
		callback(err)
	}
	if status == StatusLive {
		p.ensureMinimum()
	}
	if finish != nil {
		finish()
	}
}

// forceDestroy runs the user destroy operation, fire and forget.
func (p *Pool[R]) forceDestroy(resource R) {
	if p.cfg.Destroy == nil {
		return
	}
	go func() {
		defer func() {
			if v := recover(); v != nil {
				p.emitWarn(telemetry.EventDestroyFailure, fmt.Errorf("destroy panic: %v", v))
			}
		}()
		p.cfg.Destroy(resource)
		p.metrics.ObserveDestroy(p.cfg.Name)
	}()
}
