package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coordmesh/coordmesh/core"
	"github.com/coordmesh/coordmesh/logging"
)

// State is the lifecycle state of an agent.
type State string

const (
	// StateUninitialized is the construction-time state.
	StateUninitialized State = "uninitialized"
	// StateInitialized means setup completed and tasks may be accepted.
	StateInitialized State = "initialized"
	// StateShuttingDown means teardown is in progress; no new tasks.
	StateShuttingDown State = "shutting-down"
	// StateShutDown is terminal; the event bus is closed.
	StateShutDown State = "shut-down"
)

// Metrics is a point-in-time snapshot of an agent's task bookkeeping.
// SuccessRate is completed / (completed + failed); AverageTaskDuration is an
// incremental mean over finished tasks.
type Metrics struct {
	Completed           int           `json:"completed"`
	Failed              int           `json:"failed"`
	Cancelled           int           `json:"cancelled"`
	SuccessRate         float64       `json:"success_rate"`
	AverageTaskDuration time.Duration `json:"average_task_duration"`
}

// Options configures a BaseAgent.
type Options struct {
	// OnInitialize runs agent-specific setup before the state flips to
	// initialized. A failure leaves the agent unhealthy and is returned to
	// the caller.
	OnInitialize func(ctx context.Context) error

	// OnShutdown runs agent-specific teardown after current tasks are
	// cancelled and before the event bus closes.
	OnShutdown func(ctx context.Context) error

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// BaseAgent bundles the shared lifecycle state machine, task bookkeeping and
// event bus so the execution engine can treat every agent identically. Embed
// it in concrete agent implementations and supply CanExecute plus Execute to
// satisfy the core.Agent contract. All exported methods are goroutine-safe.
type BaseAgent struct {
	id           string
	capabilities []core.Capability

	mu      sync.Mutex
	state   State
	healthy bool

	currentTasks map[string]time.Time // task id -> start time
	completed    int
	failed       int
	cancelled    int
	avgDuration  time.Duration

	bus    *Bus
	logger logging.Logger

	onInitialize func(ctx context.Context) error
	onShutdown   func(ctx context.Context) error
}

// NewBaseAgent constructs a BaseAgent in the uninitialized state. The
// capability slice is declared once here and must not be mutated afterwards.
func NewBaseAgent(id string, capabilities []core.Capability, optFns ...func(o *Options)) BaseAgent {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return BaseAgent{
		id:           id,
		capabilities: capabilities,
		state:        StateUninitialized,
		healthy:      true,
		currentTasks: make(map[string]time.Time),
		bus:          NewBus(),
		logger:       opts.Logger,
		onInitialize: opts.OnInitialize,
		onShutdown:   opts.OnShutdown,
	}
}

// ID returns the unique registration name of the agent.
func (b *BaseAgent) ID() string { return b.id }

// Capabilities returns the declared capability tuples.
func (b *BaseAgent) Capabilities() []core.Capability { return b.capabilities }

// State returns the current lifecycle state.
func (b *BaseAgent) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Healthy reports whether the last lifecycle transition succeeded.
func (b *BaseAgent) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.healthy
}

// Bus returns the agent's event bus for subscribing to lifecycle and task
// messages.
func (b *BaseAgent) Bus() *Bus { return b.bus }

// Initialize completes agent-specific setup and flips the state to
// initialized. It is idempotent: calling it on an initialized agent is a
// no-op. A setup failure leaves the agent unhealthy and returns the error.
func (b *BaseAgent) Initialize(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case StateInitialized:
		b.mu.Unlock()
		return nil
	case StateShuttingDown, StateShutDown:
		b.mu.Unlock()
		return fmt.Errorf("agent %s: initialize after shutdown", b.id)
	}
	b.mu.Unlock()

	if b.onInitialize != nil {
		if err := b.onInitialize(ctx); err != nil {
			b.mu.Lock()
			b.healthy = false
			b.mu.Unlock()
			b.publish(core.MessageTypeError, fmt.Sprintf("initialization failed: %v", err))
			return fmt.Errorf("agent %s: initialize: %w", b.id, err)
		}
	}

	b.mu.Lock()
	b.state = StateInitialized
	b.healthy = true
	b.mu.Unlock()

	b.publish(core.MessageTypeNotification, "initialized")
	b.logger.Debug("agent initialized", "agent", b.id)
	return nil
}

// Shutdown cancels every task still tracked as current (emitting a
// cancellation notification per task), runs agent-specific teardown, then
// closes the event bus. Subsequent bus publishes are no-ops. Shutdown is
// idempotent.
func (b *BaseAgent) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateShutDown || b.state == StateShuttingDown {
		b.mu.Unlock()
		return nil
	}
	b.state = StateShuttingDown
	pending := make([]string, 0, len(b.currentTasks))
	for taskID := range b.currentTasks {
		pending = append(pending, taskID)
	}
	b.mu.Unlock()

	for _, taskID := range pending {
		b.cancelTask(taskID)
	}

	var teardownErr error
	if b.onShutdown != nil {
		teardownErr = b.onShutdown(ctx)
	}
	if teardownErr != nil {
		b.mu.Lock()
		b.healthy = false
		b.mu.Unlock()
		b.publish(core.MessageTypeError, fmt.Sprintf("teardown failed: %v", teardownErr))
	} else {
		b.publish(core.MessageTypeNotification, "shut down")
	}

	b.mu.Lock()
	b.state = StateShutDown
	b.mu.Unlock()
	b.bus.Close()

	if teardownErr != nil {
		return fmt.Errorf("agent %s: shutdown: %w", b.id, teardownErr)
	}
	b.logger.Debug("agent shut down", "agent", b.id)
	return nil
}

// BeginTask adds the task to the current set and announces it on the bus.
// It fails when the agent is not initialized or the task id is already
// tracked.
func (b *BaseAgent) BeginTask(taskID string) error {
	b.mu.Lock()
	if b.state != StateInitialized {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("agent %s (state %s): %w", b.id, state, ErrNotInitialized)
	}
	if _, dup := b.currentTasks[taskID]; dup {
		b.mu.Unlock()
		return fmt.Errorf("agent %s: task %s already running", b.id, taskID)
	}
	b.currentTasks[taskID] = time.Now()
	b.mu.Unlock()

	msg := core.NewAgentMessage(b.id, core.MessageTypeRequest, "task started")
	msg.Metadata = map[string]any{"task_id": taskID}
	b.bus.Publish(msg)
	return nil
}

// FinishTask removes the task from the current set and folds its duration
// into the rolling metrics. Unknown task ids are ignored.
func (b *BaseAgent) FinishTask(taskID string, success bool) {
	b.mu.Lock()
	started, ok := b.currentTasks[taskID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.currentTasks, taskID)

	duration := time.Since(started)
	if success {
		b.completed++
	} else {
		b.failed++
	}
	n := b.completed + b.failed
	// Incremental mean keeps bookkeeping O(1) per task.
	b.avgDuration = time.Duration((int64(b.avgDuration)*int64(n-1) + int64(duration)) / int64(n))
	b.mu.Unlock()

	msgType := core.MessageTypeResponse
	content := "task completed"
	if !success {
		msgType = core.MessageTypeError
		content = "task failed"
	}
	msg := core.NewAgentMessage(b.id, msgType, content)
	msg.Metadata = map[string]any{"task_id": taskID, "duration_ms": duration.Milliseconds()}
	b.bus.Publish(msg)
}

// cancelTask drops a task without touching success metrics and emits a
// cancellation notification.
func (b *BaseAgent) cancelTask(taskID string) {
	b.mu.Lock()
	if _, ok := b.currentTasks[taskID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.currentTasks, taskID)
	b.cancelled++
	b.mu.Unlock()

	msg := core.NewAgentMessage(b.id, core.MessageTypeNotification, "task cancelled")
	msg.Metadata = map[string]any{"task_id": taskID}
	b.bus.Publish(msg)
}

// CurrentTasks returns the ids of tasks tracked as in flight.
func (b *BaseAgent) CurrentTasks() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.currentTasks))
	for taskID := range b.currentTasks {
		out = append(out, taskID)
	}
	return out
}

// Metrics returns a snapshot of the rolling task metrics.
func (b *BaseAgent) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := Metrics{
		Completed:           b.completed,
		Failed:              b.failed,
		Cancelled:           b.cancelled,
		AverageTaskDuration: b.avgDuration,
	}
	if total := b.completed + b.failed; total > 0 {
		m.SuccessRate = float64(b.completed) / float64(total)
	}
	return m
}

func (b *BaseAgent) publish(t core.MessageType, content string) {
	b.bus.Publish(core.NewAgentMessage(b.id, t, content))
}

// ErrNotInitialized is returned by Run helpers when work is attempted on an
// agent outside the initialized state.
var ErrNotInitialized = errors.New("agent not initialized")

// Run wraps an agent execution with task bookkeeping: it begins the task,
// invokes fn and finishes the task with fn's outcome. Concrete agents call it
// from their Execute implementations so every execution shows up in the
// metrics and on the bus.
func (b *BaseAgent) Run(ctx context.Context, taskID string, fn func(ctx context.Context) error) error {
	if err := b.BeginTask(taskID); err != nil {
		return err
	}
	err := fn(ctx)
	b.FinishTask(taskID, err == nil)
	return err
}
