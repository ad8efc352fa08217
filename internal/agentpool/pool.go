package agentpool

import (
	"sort"
	"sync"
	"time"

	"github.com/kieran-voss/loopdriver/internal/engerrors"
)

// Default cooldowns applied when a kind is rate-limited. Configurable
// per kind at construction; these are only the shipped defaults.
var defaultCooldowns = map[string]time.Duration{
	"claude": 45 * time.Minute,
	"codex":  30 * time.Minute,
	"gemini": 30 * time.Minute,
}

// defaultCooldown is used for a kind with no entry in the table above.
const defaultCooldown = 30 * time.Minute

// pauseThreshold is the number of consecutive failures after which a
// kind is paused rather than retried.
const pauseThreshold = 5

// Option configures a Pool.
type Option func(*Pool)

// WithCooldown overrides the cooldown duration applied to kind when it
// is rate-limited.
func WithCooldown(kind string, d time.Duration) Option {
	return func(p *Pool) { p.cooldowns[kind] = d }
}

// WithPauseThreshold overrides how many consecutive failures pause a
// kind.
func WithPauseThreshold(n int) Option {
	return func(p *Pool) { p.pauseThreshold = n }
}

// Pool tracks the health of every detected agent kind and decides which
// one a worker should use next. It is safe for concurrent use.
type Pool struct {
	mu             sync.Mutex
	states         map[string]*AgentState
	order          []string // fallback tie-break order, fixed at construction
	cooldowns      map[string]time.Duration
	pauseThreshold int
}

// New creates a Pool seeded with the given agent kinds, in the order
// they should be tried when health scores tie.
func New(kinds []string, opts ...Option) *Pool {
	p := &Pool{
		states:         make(map[string]*AgentState, len(kinds)),
		order:          append([]string(nil), kinds...),
		cooldowns:      make(map[string]time.Duration, len(kinds)),
		pauseThreshold: pauseThreshold,
	}
	for kind, d := range defaultCooldowns {
		p.cooldowns[kind] = d
	}
	for _, kind := range kinds {
		p.states[kind] = &AgentState{Kind: kind, Status: StatusAvailable}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) cooldownFor(kind string) time.Duration {
	if d, ok := p.cooldowns[kind]; ok {
		return d
	}
	return defaultCooldown
}

// Select picks the healthiest available kind. Ties are broken by the
// fixed fallback order given to New. If every kind is on cooldown, it
// returns a wait decision naming the earliest AvailableAt. If every
// kind is paused, it returns a pause decision.
func (p *Pool) Select() Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.unlockedExpireCooldowns(now)

	var candidates []string
	var earliestWait time.Time
	allPaused := true

	for _, kind := range p.order {
		st := p.states[kind]
		if st == nil {
			continue
		}
		if st.Status != StatusPaused {
			allPaused = false
		}
		switch st.Status {
		case StatusAvailable, StatusBusy:
			candidates = append(candidates, kind)
		case StatusCooldown:
			if earliestWait.IsZero() || st.AvailableAt.Before(earliestWait) {
				earliestWait = st.AvailableAt
			}
		}
	}

	if len(candidates) == 0 {
		if allPaused && len(p.order) > 0 {
			return Decision{Outcome: OutcomePause, Reason: "all agent kinds paused"}
		}
		return Decision{Outcome: OutcomeWait, AvailableAt: earliestWait, Reason: "all agent kinds on cooldown"}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := p.states[candidates[i]], p.states[candidates[j]]
		return si.HealthScore() > sj.HealthScore()
	})

	return Decision{Outcome: OutcomeSelected, Kind: candidates[0]}
}

// unlockedExpireCooldowns transitions any kind whose cooldown has
// elapsed back to available. Caller must hold p.mu.
func (p *Pool) unlockedExpireCooldowns(now time.Time) {
	for _, st := range p.states {
		if st.Status == StatusCooldown && !st.AvailableAt.After(now) {
			st.Status = StatusAvailable
		}
	}
}

// MarkBusy transitions kind to busy.
func (p *Pool) MarkBusy(kind string) error {
	return p.transition(kind, func(st *AgentState) { st.Status = StatusBusy })
}

// MarkAvailable transitions kind back to available.
func (p *Pool) MarkAvailable(kind string) error {
	return p.transition(kind, func(st *AgentState) { st.Status = StatusAvailable })
}

// MarkRateLimited puts kind on cooldown for its configured duration.
func (p *Pool) MarkRateLimited(kind string) error {
	return p.transition(kind, func(st *AgentState) {
		st.Status = StatusCooldown
		st.AvailableAt = time.Now().Add(p.cooldownFor(kind))
	})
}

// RecordSuccess records a successful run of duration d for kind,
// resetting its consecutive-failure count and returning it to
// available.
func (p *Pool) RecordSuccess(kind string, d time.Duration) error {
	return p.transition(kind, func(st *AgentState) {
		st.TotalRuns++
		st.SuccessfulRuns++
		st.TotalDuration += d
		st.ConsecutiveFailures = 0
		st.Status = StatusAvailable
	})
}

// RecordFailure records a failed run of duration d for kind. Once
// ConsecutiveFailures reaches the pool's pause threshold, the kind is
// paused instead of returned to available.
func (p *Pool) RecordFailure(kind string, d time.Duration) error {
	return p.transition(kind, func(st *AgentState) {
		st.TotalRuns++
		st.TotalDuration += d
		st.ConsecutiveFailures++
		if st.ConsecutiveFailures >= p.pauseThreshold {
			st.Status = StatusPaused
			return
		}
		st.Status = StatusAvailable
	})
}

// Resume clears a paused kind's consecutive-failure count and returns
// it to available. Used to manually reactivate a paused kind.
func (p *Pool) Resume(kind string) error {
	return p.transition(kind, func(st *AgentState) {
		st.ConsecutiveFailures = 0
		st.Status = StatusAvailable
	})
}

func (p *Pool) transition(kind string, fn func(*AgentState)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[kind]
	if !ok {
		return engerrors.NewAgentPoolError("cannot transition state", engerrors.ErrUnknownAgentKind).WithAgentKind(kind)
	}
	fn(st)
	return nil
}

// State returns a copy of the current state for kind, or nil if kind is
// unknown.
func (p *Pool) State(kind string) *AgentState {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[kind]
	if !ok {
		return nil
	}
	cp := *st
	return &cp
}

// States returns a copy of every tracked kind's state, in fallback
// order.
func (p *Pool) States() []AgentState {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]AgentState, 0, len(p.order))
	for _, kind := range p.order {
		if st, ok := p.states[kind]; ok {
			out = append(out, *st)
		}
	}
	return out
}
