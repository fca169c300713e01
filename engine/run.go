package engine

import (
	"fmt"
	"sync"
	"time"
)

// RunState is the lifecycle state of a single workflow run.
type RunState string

const (
	// RunStatePending means the run was created but no step dispatched yet.
	RunStatePending RunState = "pending"
	// RunStateRunning means at least one step has been dispatched.
	RunStateRunning RunState = "running"
	// RunStateCompleted is terminal: every step succeeded.
	RunStateCompleted RunState = "completed"
	// RunStateFailed is terminal: a step failed or a dependency was unmet.
	RunStateFailed RunState = "failed"
	// RunStateCancelled is terminal: an external cancel arrived while running.
	RunStateCancelled RunState = "cancelled"
)

// Run is the handle for one workflow run. Cancellation is cooperative: the
// engine checks the flag between steps, so an agent call already in progress
// cannot be interrupted through it.
type Run struct {
	id         string
	workflowID string

	mu        sync.Mutex
	state     RunState
	startedAt time.Time
	endedAt   time.Time
}

func newRun(id, workflowID string) *Run {
	return &Run{id: id, workflowID: workflowID, state: RunStatePending, startedAt: time.Now().UTC()}
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// WorkflowID returns the correlation key the run records steps under.
func (r *Run) WorkflowID() string { return r.workflowID }

// State returns the current run state.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StartedAt returns when the run was created.
func (r *Run) StartedAt() time.Time { return r.startedAt }

// EndedAt returns when the run reached a terminal state (zero until then).
func (r *Run) EndedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endedAt
}

// Cancel requests cooperative cancellation. It succeeds only while the run is
// pending or running; terminal states are unaffected.
func (r *Run) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RunStatePending && r.state != RunStateRunning {
		return false
	}
	r.state = RunStateCancelled
	r.endedAt = time.Now().UTC()
	return true
}

// cancelled reports whether an external cancel arrived.
func (r *Run) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == RunStateCancelled
}

// start flips pending to running. No-op in any other state.
func (r *Run) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RunStatePending {
		r.state = RunStateRunning
	}
}

// finish records the terminal outcome unless the run was already cancelled.
func (r *Run) finish(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RunStateRunning && r.state != RunStatePending {
		return
	}
	if success {
		r.state = RunStateCompleted
	} else {
		r.state = RunStateFailed
	}
	r.endedAt = time.Now().UTC()
}

// trackRun registers the run for external lookup and cancellation.
func (e *Engine) trackRun(run *Run) {
	e.runsMu.Lock()
	e.runs[run.id] = run
	e.runsMu.Unlock()
}

// Run returns a tracked run handle by id.
func (e *Engine) Run(runID string) (*Run, bool) {
	e.runsMu.RLock()
	defer e.runsMu.RUnlock()
	run, ok := e.runs[runID]
	return run, ok
}

// CancelRun cancels a tracked run. It fails when the run id is unknown or the
// run already reached a terminal state.
func (e *Engine) CancelRun(runID string) error {
	run, ok := e.Run(runID)
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	if !run.Cancel() {
		return fmt.Errorf("run %s already %s", runID, run.State())
	}
	return nil
}
