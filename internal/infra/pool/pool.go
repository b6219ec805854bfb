// Package pool manages the lifecycle of opaque, expensive-to-create
// resources supplied by user operations, and multiplexes them across
// concurrent consumers subject to size bounds, request queuing, health
// checks, idle reaping and graceful shutdown.
package pool

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"poold/internal/domain"
	"poold/internal/infra/telemetry"
)

// Status is the pool lifecycle state.
type Status int32

const (
	// StatusInitial means no factory call has succeeded yet.
	StatusInitial Status = iota
	// StatusLive means at least one resource was successfully produced.
	StatusLive
	// StatusEnding means the pool is draining gracefully.
	StatusEnding
	// StatusDestroyed means the pool is terminated.
	StatusDestroyed
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusLive:
		return "live"
	case StatusEnding:
		return "ending"
	case StatusDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Pool owns a set of resources produced by the configured factory.
// Resource identity is Go equality on R; pointer handles compare by
// reference.
//
// All state lives behind one mutex. User operations and consumer
// callbacks always run outside the critical section; they may re-enter
// the pool.
type Pool[R comparable] struct {
	cfg     Config[R]
	logger  *zap.Logger
	metrics domain.Metrics
	now     func() time.Time

	mu          sync.Mutex
	status      Status
	live        bool
	resources   map[R]time.Time // idleSince, refreshed on release
	available   []R             // head = most recently released
	requests    []*Request[R]   // FIFO
	acquiring   int
	disposing   int
	dispatching bool

	firstFailAt time.Time
	retry       *backoff
	retryTimer  *time.Timer

	syncTicker *time.Ticker
	stopSync   chan struct{}
	syncBeat   *telemetry.Heartbeat

	teardownStarted bool
	endCallbacks    []func([]error)
	endErrs         []error
}

// New validates cfg, starts the maintenance loop and begins filling the
// pool toward Min.
func New[R comparable](cfg Config[R]) (*Pool[R], error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	p := &Pool[R]{
		cfg:       cfg,
		logger:    cfg.Logger.Named("pool").With(telemetry.PoolField(cfg.Name)),
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		resources: make(map[R]time.Time),
		retry:     newBackoff(cfg.Backoff.Base, cfg.Backoff.Max),
	}
	if cfg.SyncInterval != NoTimeout {
		p.startSync()
	}
	if cfg.Min > 0 {
		p.ensureMinimum()
	}
	return p, nil
}

// Name returns the pool name used in logs and metrics.
func (p *Pool[R]) Name() string {
	return p.cfg.Name
}

// Status returns the current lifecycle state.
func (p *Pool[R]) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Capabilities returns the declared capability tags.
func (p *Pool[R]) Capabilities() []string {
	return p.cfg.Capabilities
}

// HasCapabilities reports whether the pool's tags are a superset of the
// required set. An empty requirement matches every pool.
func (p *Pool[R]) HasCapabilities(required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range p.cfg.Capabilities {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Acquire admits a resource request and returns its handle. The result
// arrives through callback; the handle supports Abort.
func (p *Pool[R]) Acquire(callback Callback[R]) (*Request[R], error) {
	return p.AcquireCapability(nil, callback)
}

// AcquireCapability is Acquire with a required capability set checked
// against the pool's declared tags.
func (p *Pool[R]) AcquireCapability(capabilities []string, callback Callback[R]) (*Request[R], error) {
	timeout := NoTimeout
	if p.cfg.RequestTimeout > 0 {
		timeout = p.cfg.RequestTimeout
	}
	req, err := NewRequest[R](timeout, callback)
	if err != nil {
		return nil, err
	}
	req.SetOnError(p.emitError)
	req.setOnTerminal(func() { p.requestTerminal(req) })

	if !p.HasCapabilities(capabilities) {
		p.observeAcquireFailure(domain.AcquireFailureNoCapability)
		req.Reject(domain.Wrap(domain.CodeFailedPrecond, "pool acquire", domain.ErrNoCapablePool))
		return req, nil
	}

	p.mu.Lock()
	switch p.status {
	case StatusEnding:
		p.mu.Unlock()
		p.observeAcquireFailure(domain.AcquireFailureEnding)
		req.Reject(domain.Wrap(domain.CodeUnavailable, "pool acquire", domain.ErrPoolEnding))
		return req, nil
	case StatusDestroyed:
		p.mu.Unlock()
		p.observeAcquireFailure(domain.AcquireFailureDestroyed)
		req.Reject(domain.Wrap(domain.CodeUnavailable, "pool acquire", domain.ErrPoolDestroyed))
		return req, nil
	case StatusInitial, StatusLive:
	}
	if p.cfg.MaxRequests > 0 && len(p.requests) >= p.cfg.MaxRequests {
		p.mu.Unlock()
		p.observeAcquireFailure(domain.AcquireFailurePoolFull)
		req.Reject(domain.Wrap(domain.CodeUnavailable, "pool acquire", domain.ErrPoolFull))
		return req, nil
	}
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	p.updateGauges()
	if hook := p.cfg.Hooks.OnRequest; hook != nil {
		hook(req)
	}
	p.scheduleDispatch()
	return req, nil
}

// Release returns a loaned resource to the available set and serves the
// request queue. Releasing a non-member or an already idle resource is a
// usage error and leaves state unchanged.
func (p *Pool[R]) Release(resource R) error {
	p.mu.Lock()
	if _, member := p.resources[resource]; !member {
		p.mu.Unlock()
		err := domain.Wrap(domain.CodeInvalidArgument, "pool release", domain.ErrNotMember)
		p.emitError(err)
		return err
	}
	if p.indexAvailableLocked(resource) >= 0 {
		p.mu.Unlock()
		err := domain.Wrap(domain.CodeInvalidArgument, "pool release", domain.ErrAlreadyReleased)
		p.emitError(err)
		return err
	}
	if p.teardownStarted {
		// Draining: returned resources go straight to teardown.
		p.mu.Unlock()
		p.remove(resource, true, nil)
		return nil
	}
	p.resources[resource] = p.now()
	p.available = append([]R{resource}, p.available...)
	drained := len(p.requests) == 0
	p.mu.Unlock()

	p.updateGauges()
	if drained {
		p.emitDrain()
	}
	p.scheduleDispatch()
	return nil
}

// Remove gracefully tears a resource down through the dispose operation,
// with the destroy operation as a fallback when dispose exceeds its
// deadline.
func (p *Pool[R]) Remove(resource R) {
	p.remove(resource, false, nil)
}

// RemoveWithCallback is Remove with completion notification.
func (p *Pool[R]) RemoveWithCallback(resource R, callback func(error)) {
	p.remove(resource, false, callback)
}

// Destroy forcefully tears a resource down, fire and forget.
func (p *Pool[R]) Destroy(resource R) {
	p.mu.Lock()
	delete(p.resources, resource)
	p.removeAvailableLocked(resource)
	p.mu.Unlock()

	p.updateGauges()
	p.forceDestroy(resource)
	p.ensureMinimum()
	p.scheduleDispatch()
}

// End drains the pool: queued requests are still served, new acquires are
// rejected, and every resource is torn down as it comes home. callback
// fires once the pool is empty, with any teardown errors.
func (p *Pool[R]) End(callback func([]error)) {
	p.mu.Lock()
	if p.status == StatusDestroyed {
		p.mu.Unlock()
		if callback != nil {
			go callback(nil)
		}
		return
	}
	if callback != nil {
		p.endCallbacks = append(p.endCallbacks, callback)
	}
	if p.status == StatusEnding {
		p.mu.Unlock()
		return
	}
	p.status = StatusEnding
	p.stopSyncLocked()
	p.stopRetryLocked()
	p.mu.Unlock()

	p.logger.Info("pool ending", telemetry.EventField(telemetry.EventPoolEnding))
	p.maybeBeginTeardown()
}

// DestroyPool terminates the pool abruptly: pending requests are
// rejected, the sync loop stops, and every member is routed through the
// destroy operation.
func (p *Pool[R]) DestroyPool() {
	p.destroyPool()
}

func (p *Pool[R]) destroyPool() {
	p.mu.Lock()
	if p.status == StatusDestroyed {
		p.mu.Unlock()
		return
	}
	p.status = StatusDestroyed
	pending := p.requests
	p.requests = nil
	members := make([]R, 0, len(p.resources))
	for resource := range p.resources {
		members = append(members, resource)
	}
	p.resources = make(map[R]time.Time)
	p.available = nil
	p.stopSyncLocked()
	p.stopRetryLocked()
	callbacks := p.endCallbacks
	p.endCallbacks = nil
	errs := p.endErrs
	p.mu.Unlock()

	p.logger.Warn("pool destroyed",
		telemetry.EventField(telemetry.EventPoolDestroyed),
		zap.Int("rejectedRequests", len(pending)),
		zap.Int("destroyedResources", len(members)),
	)
	for _, req := range pending {
		req.Reject(domain.Wrap(domain.CodeUnavailable, "pool destroy", domain.ErrPoolDestroyed))
	}
	for _, resource := range members {
		p.forceDestroy(resource)
	}
	p.updateGauges()
	for _, callback := range callbacks {
		go callback(errs)
	}
}

func (p *Pool[R]) requestTerminal(req *Request[R]) {
	p.observeRequestWait(req)
	p.updateGauges()
	p.scheduleDispatch()
}

func (p *Pool[R]) indexAvailableLocked(resource R) int {
	for i, candidate := range p.available {
		if candidate == resource {
			return i
		}
	}
	return -1
}

func (p *Pool[R]) removeAvailableLocked(resource R) {
	if i := p.indexAvailableLocked(resource); i >= 0 {
		p.available = append(p.available[:i], p.available[i+1:]...)
	}
}

func (p *Pool[R]) emitWarn(event string, err error) {
	p.logger.Warn("pool warning", telemetry.EventField(event), zap.Error(err))
	if hook := p.cfg.Hooks.OnWarn; hook != nil {
		hook(err)
	}
}

func (p *Pool[R]) emitError(err error) {
	p.logger.Error("pool error", zap.Error(err))
	if hook := p.cfg.Hooks.OnError; hook != nil {
		hook(err)
	}
}

// emitDrain fires the drain hook and, while ending, advances teardown.
func (p *Pool[R]) emitDrain() {
	if hook := p.cfg.Hooks.OnDrain; hook != nil {
		hook()
	}
	p.maybeBeginTeardown()
}

func (p *Pool[R]) maybeBeginTeardown() {
	p.mu.Lock()
	if p.status != StatusEnding || p.teardownStarted || len(p.requests) != 0 || p.acquiring != 0 {
		p.mu.Unlock()
		return
	}
	p.teardownStarted = true
	candidates := make([]R, len(p.available))
	copy(candidates, p.available)
	p.available = nil
	finish := p.endCheckLocked()
	p.mu.Unlock()

	for _, resource := range candidates {
		p.remove(resource, true, nil)
	}
	if finish != nil {
		finish()
	}
}

// endCheckLocked returns the completion closure once the drain is fully
// settled, nil otherwise.
func (p *Pool[R]) endCheckLocked() func() {
	if p.status != StatusEnding || !p.teardownStarted {
		return nil
	}
	if len(p.resources) != 0 || p.disposing != 0 || p.acquiring != 0 {
		return nil
	}
	p.status = StatusDestroyed
	callbacks := p.endCallbacks
	p.endCallbacks = nil
	errs := p.endErrs
	return func() {
		p.logger.Info("pool ended", telemetry.EventField(telemetry.EventPoolDestroyed))
		for _, callback := range callbacks {
			if len(errs) > 0 {
				callback(errs)
			} else {
				callback(nil)
			}
		}
	}
}

func (p *Pool[R]) stopRetryLocked() {
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
}

func (p *Pool[R]) updateGauges() {
	p.mu.Lock()
	pooled := len(p.resources)
	available := len(p.available)
	queued := len(p.requests)
	acquiring := p.acquiring
	p.mu.Unlock()
	p.metrics.SetPooled(p.cfg.Name, pooled)
	p.metrics.SetAvailable(p.cfg.Name, available)
	p.metrics.SetQueued(p.cfg.Name, queued)
	p.metrics.SetAcquiring(p.cfg.Name, acquiring)
}

func (p *Pool[R]) observeAcquireFailure(reason domain.AcquireFailureReason) {
	p.metrics.ObserveAcquireFailure(p.cfg.Name, reason)
}

func (p *Pool[R]) observeRequestWait(req *Request[R]) {
	p.metrics.ObserveRequestWait(p.cfg.Name, time.Since(req.CreatedAt()), req.Outcome())
}
