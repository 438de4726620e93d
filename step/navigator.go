package step

import (
	"fmt"
	"sync"
)

// Navigator drives a fixed-length wizard: an integer step index, a
// monotonically growing completed-step set, and a validation error/warning
// channel that is cleared at the start of every transition attempt.
//
// Navigator owns navigation state only. Business state (credentials, device
// ids, challenge progress) belongs to the caller; Reset here never touches it.
type Navigator struct {
	mu        sync.Mutex
	current   int
	total     int
	completed map[int]struct{}
	errors    []string
	warnings  []string
	onFinal   func()
}

// New creates a Navigator over total steps, positioned at step 0. onFinal is
// invoked instead of advancing when Next is called on the terminal step; nil
// makes terminal Next a no-op.
func New(total int, onFinal func()) *Navigator {
	if total < 1 {
		total = 1
	}
	return &Navigator{
		total:     total,
		completed: make(map[int]struct{}),
		onFinal:   onFinal,
	}
}

// Current returns the current step index.
func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Total returns the number of steps.
func (n *Navigator) Total() int {
	return n.total
}

// Next advances to the following step and reports whether the index moved.
// On the terminal step the index never advances past total-1; the onFinal
// action runs instead.
func (n *Navigator) Next() bool {
	var final func()

	n.mu.Lock()
	n.clearChannelLocked()
	if n.current >= n.total-1 {
		final = n.onFinal
		n.mu.Unlock()
		if final != nil {
			final()
		}
		return false
	}
	n.current++
	n.mu.Unlock()
	return true
}

// Previous moves one step back. It is a no-op at step 0.
func (n *Navigator) Previous() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.clearChannelLocked()
	if n.current == 0 {
		return false
	}
	n.current--
	return true
}

// GoTo jumps to an arbitrary step. Intermediate steps are not implicitly
// marked complete.
func (n *Navigator) GoTo(i int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.clearChannelLocked()
	if i < 0 || i >= n.total {
		return fmt.Errorf("step index %d out of range [0,%d)", i, n.total)
	}
	n.current = i
	return nil
}

// MarkComplete records step i as completed. Callers must only mark a step
// after its own validation passed.
func (n *Navigator) MarkComplete(i int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if i < 0 || i >= n.total {
		return
	}
	n.completed[i] = struct{}{}
}

// MarkCurrentComplete records the current step as completed.
func (n *Navigator) MarkCurrentComplete() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed[n.current] = struct{}{}
}

// IsComplete reports whether step i has been completed.
func (n *Navigator) IsComplete(i int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.completed[i]
	return ok
}

// CompletedCount returns the size of the completed-step set.
func (n *Navigator) CompletedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.completed)
}

// Reset clears the completed set and validation channel and returns to step 0.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.current = 0
	n.completed = make(map[int]struct{})
	n.errors = nil
	n.warnings = nil
}

// PushError appends a validation error for the current step.
func (n *Navigator) PushError(msg string) {
	if msg == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

// PushWarning appends a validation warning for the current step.
func (n *Navigator) PushWarning(msg string) {
	if msg == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, msg)
}

// Errors returns a copy of the pending validation errors.
func (n *Navigator) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

// Warnings returns a copy of the pending validation warnings.
func (n *Navigator) Warnings() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.warnings...)
}

// ClearChannel drops all pending validation errors and warnings. Every
// transition attempt does this implicitly.
func (n *Navigator) ClearChannel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clearChannelLocked()
}

func (n *Navigator) clearChannelLocked() {
	n.errors = nil
	n.warnings = nil
}
