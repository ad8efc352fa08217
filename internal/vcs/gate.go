package vcs

import "sync"

// CommitGate serializes a critical section of git operations. Workers
// sharing one working tree must stage and commit under the same gate
// or risk one worker's staged changes being swept into another's
// commit message.
type CommitGate struct {
	mu sync.Mutex
}

// Do runs fn while holding the gate.
func (g *CommitGate) Do(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}
