package divide

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase names recorded by a Cluster run.
const (
	PhaseTokens    = "tokens"
	PhaseGraph     = "graph"
	PhaseRefactor  = "refactor"
	PhaseSignals   = "signals"
	PhaseDecompose = "decompose"
)

// Timer records the duration of named phases of one analysis. Observers are
// told about every finished phase.
type Timer struct {
	mu        sync.Mutex
	now       func() time.Time
	started   map[string]time.Time
	order     []string
	costs     map[string]time.Duration
	observers []func(phase string, d time.Duration)
}

func NewTimer(observers ...func(phase string, d time.Duration)) *Timer {
	return &Timer{
		now:       time.Now,
		started:   make(map[string]time.Time),
		costs:     make(map[string]time.Duration),
		observers: observers,
	}
}

func (t *Timer) Mark(phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started[phase] = t.now()
}

// Finish stops phase and returns its duration. Unstarted phases cost zero.
func (t *Timer) Finish(phase string) time.Duration {
	t.mu.Lock()
	start, ok := t.started[phase]
	if !ok {
		t.mu.Unlock()
		return 0
	}
	delete(t.started, phase)
	cost := t.now().Sub(start)
	if _, seen := t.costs[phase]; !seen {
		t.order = append(t.order, phase)
	}
	t.costs[phase] = cost
	observers := t.observers
	t.mu.Unlock()

	for _, o := range observers {
		o(phase, cost)
	}
	return cost
}

// Time returns the recorded duration of phase.
func (t *Timer) Time(phase string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costs[phase]
}

// Phases returns the finished phases in completion order.
func (t *Timer) Phases() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.started)
	clear(t.costs)
	t.order = nil
}

func (t *Timer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	parts := make([]string, len(t.order))
	for i, p := range t.order {
		parts[i] = fmt.Sprintf("Phase %s cost %dms", p, t.costs[p].Milliseconds())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
