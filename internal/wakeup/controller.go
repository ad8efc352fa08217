// Package wakeup implements the counter-based mid-cycle replan signal.
// Workers report a reason to trigger (a surprising result, an unplanned
// dependency, a failure worth escalating) and the controller exposes a
// one-shot, consumed-once-per-cycle notification to the orchestrator.
//
// The controller intentionally holds its state behind a mutex and a
// buffered channel rather than a package-level variable: a global
// singleton would make two orchestrator instances in the same process
// (as in tests) share wakeup state, which is not what the cycle loop
// means by "one signal per session."
package wakeup

import (
	"sync"
)

// Controller tracks trigger counts toward a threshold and emits a signal
// once that threshold is reached. It is safe for concurrent use.
type Controller struct {
	mu        sync.Mutex
	threshold int
	count     int
	enabled   bool
	signal    chan Signal
	lastSig   Signal
}

// Signal describes why a wakeup fired.
type Signal struct {
	Count  int
	Reason string
}

// New creates a Controller that fires once count reaches threshold.
// A threshold of 0 or less disables automatic firing; Trigger still
// increments the counter, but only Manual ever produces a signal.
func New(threshold int) *Controller {
	return &Controller{
		threshold: threshold,
		enabled:   true,
		signal:    make(chan Signal, 1),
	}
}

// Enable turns automatic threshold-based firing on or off. Disabling does
// not clear a signal that has already been queued.
func (c *Controller) Enable(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Trigger records one occurrence of reason. If the controller is enabled
// and the running count reaches the threshold, a signal is queued
// (non-blocking) and the counter resets so the next threshold's worth of
// triggers starts a fresh count.
func (c *Controller) Trigger(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
	if !c.enabled || c.threshold <= 0 || c.count < c.threshold {
		return
	}

	sig := Signal{Count: c.count, Reason: reason}
	c.count = 0
	c.queue(sig)
}

// Manual queues a signal regardless of the current count or threshold,
// for an explicit caller-driven wakeup request.
func (c *Controller) Manual(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue(Signal{Count: c.count, Reason: reason})
}

// queue must be called with mu held.
func (c *Controller) queue(sig Signal) {
	c.lastSig = sig
	select {
	case c.signal <- sig:
	default:
		// A signal is already pending; the existing one is consumed
		// before another can be queued, so this trigger is folded in.
	}
}

// Consume drains a pending signal, if any. It is meant to be called once
// per cycle, at the checkpoint between Worker dispatch and the Judge
// Runner. Calling it when no signal is pending returns ok=false.
func (c *Controller) Consume() (sig Signal, ok bool) {
	select {
	case sig = <-c.signal:
		return sig, true
	default:
		return Signal{}, false
	}
}

// Count returns the current trigger count toward the threshold, mostly
// useful for tests and diagnostics.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Reset clears the trigger count and drains any pending signal.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	select {
	case <-c.signal:
	default:
	}
}
