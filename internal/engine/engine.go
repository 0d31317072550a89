// Package engine schedules the per-(agent, target) evaluation loops.
//
// Each pair owns one goroutine that runs evaluations serially, so memory
// writes and intent-window appends for a pair are strictly ordered. Across
// pairs, evaluations run concurrently up to a configured limit. An idle pair
// backs off by doubling its interval; any new message for its target resets
// the backoff and wakes the loop.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"presence/internal/config"
	"presence/internal/history"
	"presence/internal/intent"
	"presence/internal/logging"
	"presence/internal/social"
)

type pairKey struct {
	AgentID  string
	TargetID string
}

type pair struct {
	agent  social.Agent
	target social.Target
	window *intent.Window

	// wake resets the idle backoff. Buffered so OnMessage never blocks.
	wake   chan struct{}
	cancel context.CancelFunc

	mu       sync.Mutex
	lastEval time.Time
}

// Engine owns the evaluation loops for every registered (agent, target)
// pair.
type Engine struct {
	cfg   *config.Config
	eval  *Evaluator
	hist  *history.Store
	sem   *semaphore.Weighted
	clock func() time.Time

	mu      sync.Mutex
	pairs   map[pairKey]*pair
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an engine. The evaluator's clock is reused for scheduling so
// tests can drive time.
func New(cfg *config.Config, eval *Evaluator, hist *history.Store) *Engine {
	maxConcurrent := cfg.Loop.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Engine{
		cfg:   cfg,
		eval:  eval,
		hist:  hist,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
		clock: eval.clock,
		pairs: make(map[pairKey]*pair),
	}
}

// Start begins scheduling. Pairs added before Start are launched now; pairs
// added later launch immediately.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.started = true

	for key, p := range e.pairs {
		e.launchLocked(key, p)
	}
	logging.Engine("engine started: pairs=%d max_concurrent=%d interval=%s",
		len(e.pairs), e.cfg.Loop.MaxConcurrent, e.cfg.Loop.Interval)
}

// Stop cancels every loop and waits for in-flight evaluations to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.cancel()
	e.started = false
	e.mu.Unlock()

	e.wg.Wait()
	logging.Engine("engine stopped")
}

// AddPair registers an (agent, target) pair. Disabled agents are ignored.
func (e *Engine) AddPair(agent social.Agent, target social.Target) error {
	if agent.Disabled {
		return fmt.Errorf("agent %s is disabled", agent.ID)
	}

	key := pairKey{AgentID: agent.ID, TargetID: target.ID}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.pairs[key]; exists {
		return fmt.Errorf("pair %s/%s already registered", agent.ID, target.ID)
	}

	p := &pair{
		agent:  agent,
		target: target,
		window: intent.NewWindow(e.cfg.Limits.IntentWindowSize),
		wake:   make(chan struct{}, 1),
	}
	e.pairs[key] = p
	if e.started {
		e.launchLocked(key, p)
	}
	return nil
}

// DisableAgent stops scheduling new evaluations for all the agent's targets.
// In-flight evaluations are cancelled through their context; tool writes
// only happen after a completed model call, so no partial state is left.
func (e *Engine) DisableAgent(agentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, p := range e.pairs {
		if key.AgentID != agentID {
			continue
		}
		if p.cancel != nil {
			p.cancel()
		}
		delete(e.pairs, key)
	}
	logging.Engine("agent disabled: %s", agentID)
}

// OnMessage records an inbound or self-authored message and wakes the loops
// watching its target.
func (e *Engine) OnMessage(msg social.Message) error {
	if _, err := e.hist.Append(msg); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for key, p := range e.pairs {
		if key.TargetID != msg.TargetID {
			continue
		}
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// WakeAgent resets the backoff of every loop belonging to an agent. Used
// when the agent's persona files change on disk.
func (e *Engine) WakeAgent(agentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, p := range e.pairs {
		if key.AgentID != agentID {
			continue
		}
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// PairCount reports how many pairs are registered.
func (e *Engine) PairCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pairs)
}

func (e *Engine) launchLocked(key pairKey, p *pair) {
	ctx, cancel := context.WithCancel(e.ctx)
	p.cancel = cancel
	e.wg.Add(1)
	go e.runLoop(ctx, key, p)
}

func (e *Engine) runLoop(ctx context.Context, key pairKey, p *pair) {
	defer e.wg.Done()

	base := e.cfg.GetLoopInterval()
	maxInterval := base * time.Duration(e.cfg.Loop.IdleMaxMultiplier)
	if maxInterval < base {
		maxInterval = base
	}
	interval := base

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			interval = base
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(interval)
			continue
		case <-timer.C:
		}

		idle := e.tick(ctx, p)
		if ctx.Err() != nil {
			return
		}

		interval = nextInterval(interval, base, maxInterval, idle)
		timer.Reset(interval)
	}
}

// tick runs one evaluation and reports whether the pair was idle.
func (e *Engine) tick(ctx context.Context, p *pair) bool {
	p.mu.Lock()
	lastEval := p.lastEval
	p.mu.Unlock()

	since := lastEval
	if since.IsZero() {
		since = e.clock().Add(-e.cfg.GetLoopInterval())
	}
	newCount, err := e.hist.CountSince(p.target.ID, since)
	if err != nil {
		logging.Get(logging.CategoryEngine).Error("count since failed: target=%s: %v", p.target.ID, err)
		return true
	}
	idle := newCount == 0

	recent, err := e.hist.Recent(p.target.ID, transcriptLimit)
	if err != nil {
		logging.Get(logging.CategoryEngine).Error("recent failed: target=%s: %v", p.target.ID, err)
		return true
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return idle
	}
	_, evalErr := e.eval.RunOnce(ctx, EvalInput{
		Agent:    p.agent,
		Target:   p.target,
		Window:   p.window,
		Recent:   recent,
		Idle:     idle,
		LastEval: lastEval,
	})
	e.sem.Release(1)

	if evalErr != nil {
		// No record this tick; the next tick retries.
		logging.Get(logging.CategoryEngine).Error("evaluation failed: agent=%s target=%s: %v",
			p.agent.ID, p.target.ID, evalErr)
	}

	p.mu.Lock()
	p.lastEval = e.clock()
	p.mu.Unlock()
	return idle
}

// nextInterval doubles the interval on idle ticks, capped at max, and
// resets to base on activity.
func nextInterval(current, base, max time.Duration, idle bool) time.Duration {
	if !idle {
		return base
	}
	next := current * 2
	if next > max {
		next = max
	}
	return next
}
