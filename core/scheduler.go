package core

// scheduler.go re-arms the poll loop on a fixed interval using the same
// ticker-plus-closing-channel shape connection_pool.go's reaper goroutine
// uses for idle-connection sweeps, and guards against re-entrant operator
// calls with a cache-backed guard adapted from access_control.go's
// AccessController (lock, check-then-insert, guaranteed release via
// defer).

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// defaultPollInterval is the 500-second interval a scheduler uses when it is
// given none (NewScheduler or Reconfigure with an interval of zero).
const defaultPollInterval = 500 * time.Second

// Scheduler periodically invokes a poll function on a ticker, the way
// ConnPool.reaper periodically sweeps idle connections.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func(context.Context)
	logger   *log.Logger

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewScheduler constructs a scheduler that calls fn every interval. An
// interval of zero uses defaultPollInterval.
func NewScheduler(interval time.Duration, fn func(context.Context), logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Scheduler{interval: interval, fn: fn, logger: logger, closing: make(chan struct{})}
}

// Start begins the ticker loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fn(ctx)
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		}
	}
}

// Stop halts the ticker loop and waits for the in-flight tick, if any, to
// finish.
func (s *Scheduler) Stop() {
	s.closeOnce.Do(func() { close(s.closing) })
	s.wg.Wait()
}

// Reconfigure stops the running ticker loop, if any, and restarts it at the
// new interval — the live re-arm set_interval needs, as distinct from
// PostUpgrade's start at the construction-time interval.
func (s *Scheduler) Reconfigure(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	s.Stop()

	s.mu.Lock()
	s.interval = interval
	s.closing = make(chan struct{})
	s.closeOnce = sync.Once{}
	s.mu.Unlock()

	s.Start(ctx)
}

// CallerGuard prevents re-entrant operator calls (two concurrent sweep
// invocations for the same caller, for instance) the way
// AccessController caches role membership: lock, check-then-insert,
// guaranteed release.
type CallerGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewCallerGuard constructs an empty guard.
func NewCallerGuard() *CallerGuard {
	return &CallerGuard{active: make(map[string]struct{})}
}

// Enter claims the guard for caller, returning ErrBusy if another call for
// the same caller is already in flight. The returned release function
// must be called exactly once, typically via defer, to free the guard.
func (g *CallerGuard) Enter(caller string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[caller]; busy {
		return nil, fmt.Errorf("%w: caller %s", ErrBusy, caller)
	}
	g.active[caller] = struct{}{}
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.active, caller)
	}, nil
}
