package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradedash/pkg/marketdata"

	"go.uber.org/zap"
)

// Poller lazily fetches, caches and periodically refreshes one remote
// resource for one consuming view.
//
// At most one request is in flight: every new fetch cancels the previous
// one and only the most recent request may commit its result. The poll
// ticker runs only while the view is active and a fetch has succeeded.
type Poller[T any] struct {
	name     string
	prober   Prober
	fetchFn  FetchFunc[T]
	keyFn    KeyFunc
	describe func(error) string
	onChange func(State[T])
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	cfg            Config
	state          State[T]
	params         Params
	active         bool
	hasFetchedOnce bool
	lastKey        string // params key behind state.Data
	gen            uint64
	cancelInflight context.CancelFunc
	retryTimer     *time.Timer
	retrySeq       uint64
	pollStop       chan struct{} // non-nil while the poll ticker runs
	closed         bool
}

// Option configures a Poller.
type Option[T any] func(*Poller[T])

// WithOnChange registers a callback that receives every state change.
// It runs outside the poller's lock, possibly from several goroutines;
// use State.Version to order snapshots.
func WithOnChange[T any](fn func(State[T])) Option[T] {
	return func(p *Poller[T]) {
		p.onChange = fn
	}
}

// WithKeyFunc replaces the default cache key extractor.
func WithKeyFunc[T any](fn KeyFunc) Option[T] {
	return func(p *Poller[T]) {
		p.keyFn = fn
	}
}

// WithErrorMessage replaces the mapping from fetch errors to State.Error.
func WithErrorMessage[T any](fn func(error) string) Option[T] {
	return func(p *Poller[T]) {
		p.describe = fn
	}
}

// New creates an idle, inactive poller. Nothing is fetched until SetParams
// or SetActive is called.
func New[T any](name string, cfg Config, prober Prober, fetch FetchFunc[T], logger *zap.Logger, opts ...Option[T]) *Poller[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	p := &Poller[T]{
		name:     name,
		prober:   prober,
		fetchFn:  fetch,
		keyFn:    Key,
		describe: marketdata.UserMessage,
		logger:   logger.Named("poller").With(zap.String("resource", name)),
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		state: State[T]{
			Data:  map[string]T{},
			Phase: PhaseIdle,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastKey = p.keyFn(Params{})
	return p
}

func (p *Poller[T]) Name() string {
	return p.name
}

// State returns a copy of the current fetch state.
func (p *Poller[T]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Params returns the current fetch parameters.
func (p *Poller[T]) Params() Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params.clone()
}

// SetParams updates what the resource fetches. A change of key triggers a
// fetch (even while inactive); an unchanged key is a no-op.
func (p *Poller[T]) SetParams(params Params) {
	p.mu.Lock()
	if p.closed || p.keyFn(params) == p.keyFn(p.params) {
		p.mu.Unlock()
		return
	}
	p.params = params.clone()
	p.fetchLocked(trigger{initial: !p.hasFetchedOnce})
	snap := p.touchLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// SetActive marks the consuming view visible or hidden. Hiding stops the
// poll ticker. Showing restarts it when data exists, otherwise starts an
// initial fetch unless one is already under way.
func (p *Poller[T]) SetActive(active bool) {
	p.mu.Lock()
	if p.closed || p.active == active {
		p.mu.Unlock()
		return
	}
	p.active = active
	p.stopPollLocked()

	if active {
		switch {
		case p.hasFetchedOnce:
			p.startPollLocked()
		case p.cancelInflight == nil && p.retryTimer == nil:
			p.fetchLocked(trigger{initial: true})
		}
	}
	snap := p.touchLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// SetPollingInterval changes the refresh cadence, rebuilding a running ticker.
func (p *Poller[T]) SetPollingInterval(d time.Duration) {
	p.mu.Lock()
	if p.closed || p.cfg.PollingInterval == d {
		p.mu.Unlock()
		return
	}
	p.cfg.PollingInterval = d
	if p.pollStop != nil {
		p.stopPollLocked()
		p.startPollLocked()
	}
	snap := p.touchLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// Refresh is the manual "retry" affordance: it clears any pending retry,
// resets the retry counter and fetches now regardless of the cache gate.
func (p *Poller[T]) Refresh() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.stopRetryLocked()
	p.state.RetryCount = 0
	p.fetchLocked(trigger{initial: !p.hasFetchedOnce, force: true})
	snap := p.touchLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// Close aborts the in-flight request, clears every timer and waits for the
// poller's goroutines. No state changes are published afterwards.
func (p *Poller[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.stopRetryLocked()
	p.stopPollLocked()
	if p.cancelInflight != nil {
		p.cancelInflight()
		p.cancelInflight = nil
	}
	p.state.Phase = PhaseClosed
	p.state.Loading = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	p.logger.Debug("poller closed")
}

// fetchLocked is the orchestrator entry point. It returns after launching
// the request goroutine; results arrive through complete.
func (p *Poller[T]) fetchLocked(tr trigger) {
	if p.closed {
		return
	}

	if p.params.Empty() {
		// invalidate whatever is in flight so its result is dropped
		p.gen++
		p.abortInflightLocked()
		p.stopRetryLocked()
		p.state.Data = map[string]T{}
		p.state.Loading = false
		p.state.Error = ""
		p.state.Phase = PhaseIdle
		p.lastKey = p.keyFn(p.params)
		return
	}

	key := p.keyFn(p.params)
	if !tr.force && ShouldSkip(p.active, p.hasFetchedOnce, key != p.lastKey) {
		p.logger.Debug("cache hit, skipping fetch")
		if p.retryTimer == nil && p.state.Phase == PhaseRetryScheduled {
			p.state.Phase = PhaseIdle
		}
		return
	}

	p.abortInflightLocked()
	p.stopRetryLocked()
	p.gen++
	gen := p.gen
	ctx, cancel := context.WithCancel(p.ctx)
	p.cancelInflight = cancel

	if len(p.state.Data) == 0 {
		p.state.Loading = true
	}
	p.state.Phase = PhaseProbing

	timeout := p.cfg.InitialTimeout
	if tr.retry {
		timeout = p.cfg.RetryTimeout
	}

	p.wg.Add(1)
	go p.run(ctx, cancel, gen, key, p.params.clone(), tr, timeout)
}

func (p *Poller[T]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, key string, params Params, tr trigger, timeout time.Duration) {
	defer p.wg.Done()
	defer cancel()

	if !p.prober.Probe(ctx) {
		p.complete(gen, key, nil, marketdata.ErrBackendUnavailable, false)
		return
	}

	p.mu.Lock()
	current := gen == p.gen && !p.closed
	var snap State[T]
	if current {
		p.state.Phase = PhaseFetching
		p.state.BackendReady = true
		snap = p.touchLocked()
	}
	p.mu.Unlock()
	if !current {
		return
	}
	p.notify(snap)

	reqCtx, reqCancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	data, err := p.fetchFn(reqCtx, params)
	reqCancel()

	if err != nil {
		p.logger.Debug("fetch failed",
			zap.Bool("initial", tr.initial),
			zap.Bool("retry", tr.retry),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
	}
	p.complete(gen, key, data, err, true)
}

// complete applies a finished request. Results from superseded or
// post-Close requests are dropped.
func (p *Poller[T]) complete(gen uint64, key string, data map[string]T, err error, backendReady bool) {
	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Debug("discarding superseded result", zap.Error(err))
		}
		return
	}

	p.cancelInflight = nil
	p.state.BackendReady = backendReady
	p.state.Loading = false
	p.state.Phase = PhaseIdle

	if err == nil {
		if data == nil {
			data = map[string]T{}
		}
		p.state.Data = data
		p.state.Error = ""
		p.state.LastFetched = time.Now()
		p.state.RetryCount = 0
		p.hasFetchedOnce = true
		p.lastKey = key
		if p.active {
			p.startPollLocked()
		}
	} else if len(p.state.Data) == 0 {
		p.state.Error = p.describe(err)
		p.logger.Warn("fetch failed with no data", zap.Int("retry_count", p.state.RetryCount), zap.Error(err))
		p.scheduleRetryLocked()
	} else {
		// keep the last good snapshot
		p.logger.Warn("refresh failed, keeping stale data", zap.Error(err))
	}

	snap := p.touchLocked()
	p.mu.Unlock()

	p.notify(snap)
}

func (p *Poller[T]) scheduleRetryLocked() {
	p.stopRetryLocked()

	if !p.cfg.Retry.CanRetry(p.state.RetryCount) {
		p.logger.Warn("giving up after max retries", zap.Int("attempts", p.state.RetryCount))
		return
	}

	delay := p.cfg.Retry.Delay(p.state.RetryCount)
	p.state.RetryCount++
	p.state.Phase = PhaseRetryScheduled

	seq := p.retrySeq
	p.retryTimer = time.AfterFunc(delay, func() { p.fireRetry(seq) })
	p.logger.Info("retry scheduled", zap.Int("attempt", p.state.RetryCount), zap.Duration("delay", delay))
}

func (p *Poller[T]) fireRetry(seq uint64) {
	p.mu.Lock()
	if p.closed || seq != p.retrySeq || p.retryTimer == nil {
		p.mu.Unlock()
		return
	}
	p.retryTimer = nil
	p.retrySeq++
	p.fetchLocked(trigger{initial: !p.hasFetchedOnce, retry: true})
	snap := p.touchLocked()
	p.mu.Unlock()

	p.notify(snap)
}

func (p *Poller[T]) stopRetryLocked() {
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
	p.retrySeq++
	if p.state.Phase == PhaseRetryScheduled {
		p.state.Phase = PhaseIdle
	}
}

func (p *Poller[T]) abortInflightLocked() {
	if p.cancelInflight != nil {
		p.cancelInflight()
		p.cancelInflight = nil
	}
}

func (p *Poller[T]) startPollLocked() {
	if p.closed || p.pollStop != nil || p.cfg.PollingInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	p.pollStop = stop

	p.wg.Add(1)
	go p.pollLoop(stop, p.cfg.PollingInterval)
}

func (p *Poller[T]) stopPollLocked() {
	if p.pollStop != nil {
		close(p.pollStop)
		p.pollStop = nil
	}
}

func (p *Poller[T]) pollLoop(stop <-chan struct{}, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick(stop)
		}
	}
}

func (p *Poller[T]) tick(stop <-chan struct{}) {
	p.mu.Lock()
	select {
	case <-stop:
		p.mu.Unlock()
		return
	default:
	}
	p.fetchLocked(trigger{})
	snap := p.touchLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// touchLocked bumps the version and returns a snapshot to publish.
func (p *Poller[T]) touchLocked() State[T] {
	p.state.Version++
	return p.snapshotLocked()
}

func (p *Poller[T]) snapshotLocked() State[T] {
	s := p.state.clone()
	if s.Data == nil {
		s.Data = map[string]T{}
	}
	s.Active = p.active
	s.Polling = p.pollStop != nil
	s.Params = p.params.clone()
	return s
}

func (p *Poller[T]) notify(s State[T]) {
	if p.onChange != nil {
		p.onChange(s)
	}
}
