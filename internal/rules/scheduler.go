package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rpogula2014/dcdashboard/internal/logger"
)

// RuleProvider supplies the enabled rules a refresh round evaluates.
type RuleProvider interface {
	Enabled() []AlertRule
}

// Evaluator runs a set of rules and returns their ordered results.
type Evaluator interface {
	EvaluateAll(ctx context.Context, rules []AlertRule) []AlertResult
}

var (
	_ RuleProvider = (*Store)(nil)
	_ Evaluator    = (*Executor)(nil)
)

// Scheduler drives periodic rule evaluation on a single shared timer. The
// timer fires at the smallest positive refresh interval among the enabled
// rules, floored at minInterval; every round evaluates all enabled rules.
// Manual refreshes run on the caller's goroutine and are never debounced, so
// a manual round may overlap a timed one. Whichever round completes last
// owns the published results.
type Scheduler struct {
	provider    RuleProvider
	evaluator   Evaluator
	minInterval time.Duration
	log         logger.Logger

	mu            sync.RWMutex
	results       []AlertResult
	lastRefreshed time.Time
	lastErr       error
	inFlight      int

	ctrlMu  sync.Mutex
	stopCh  chan struct{}
	rebuild chan struct{}
	done    chan struct{}
}

// NewScheduler wires a scheduler; call Start to begin timed evaluation.
func NewScheduler(provider RuleProvider, evaluator Evaluator, minInterval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		provider:    provider,
		evaluator:   evaluator,
		minInterval: minInterval,
		log:         log,
		rebuild:     make(chan struct{}, 1),
	}
}

// Start runs one immediate evaluation round and launches the timer loop.
// Calling Start on a running scheduler restarts the loop.
func (s *Scheduler) Start() {
	s.Stop()

	s.ctrlMu.Lock()
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.ctrlMu.Unlock()

	s.Refresh(context.Background())

	go func() {
		defer close(done)
		for {
			interval := s.interval()
			var timer *time.Timer
			var tick <-chan time.Time
			if interval > 0 {
				timer = time.NewTimer(interval)
				tick = timer.C
			}
			select {
			case <-tick:
				s.Refresh(context.Background())
			case <-s.rebuild:
			case <-stopCh:
				if timer != nil {
					timer.Stop()
				}
				return
			}
			if timer != nil {
				timer.Stop()
			}
		}
	}()
}

// Stop halts the timer loop and waits for it to exit. In-flight evaluation
// rounds are not interrupted; their results still land.
func (s *Scheduler) Stop() {
	s.ctrlMu.Lock()
	stopCh, done := s.stopCh, s.done
	s.stopCh, s.done = nil, nil
	s.ctrlMu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
}

// RulesChanged tells the scheduler the rule set was edited so the shared
// timer can be recomputed. Safe to call from any goroutine; redundant calls
// coalesce.
func (s *Scheduler) RulesChanged() {
	select {
	case s.rebuild <- struct{}{}:
	default:
	}
}

// Refresh evaluates all enabled rules now and publishes the results. It
// blocks until the round completes and may run concurrently with timed
// rounds.
func (s *Scheduler) Refresh(ctx context.Context) []AlertResult {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()

	rules := s.provider.Enabled()
	results := s.evaluator.EvaluateAll(ctx, rules)

	var roundErr error
	for i := range results {
		if results[i].Error != "" {
			roundErr = fmt.Errorf("rule %q: %s", results[i].RuleName, results[i].Error)
			break
		}
	}

	s.mu.Lock()
	s.inFlight--
	s.results = results
	s.lastRefreshed = time.Now()
	s.lastErr = roundErr
	s.mu.Unlock()

	s.log.Debug("evaluation round complete",
		logger.Int("rules", len(rules)),
		logger.Int("results", len(results)))
	return results
}

// Results returns the most recently published evaluation results.
func (s *Scheduler) Results() []AlertResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AlertResult, len(s.results))
	copy(out, s.results)
	return out
}

// LastRefreshed returns when results were last published; zero before the
// first round completes.
func (s *Scheduler) LastRefreshed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefreshed
}

// Err returns the first per-rule error of the last published round, nil when
// every rule evaluated cleanly.
func (s *Scheduler) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// IsLoading reports whether any evaluation round is in flight.
func (s *Scheduler) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// interval computes the shared timer period: the smallest positive per-rule
// refresh interval among enabled rules, floored at minInterval. Zero means
// no timed evaluation, only manual refreshes.
func (s *Scheduler) interval() time.Duration {
	var min time.Duration
	for _, r := range s.provider.Enabled() {
		if r.RefreshInterval <= 0 {
			continue
		}
		d := time.Duration(r.RefreshInterval) * time.Second
		if min == 0 || d < min {
			min = d
		}
	}
	if min == 0 {
		return 0
	}
	if min < s.minInterval {
		return s.minInterval
	}
	return min
}
