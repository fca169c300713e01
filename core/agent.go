package core

import (
	"context"
	"time"
)

// Priority expresses relative urgency for requests and capabilities.
type Priority string

const (
	// PriorityLow marks background or best-effort work.
	PriorityLow Priority = "low"
	// PriorityMedium is the default request priority.
	PriorityMedium Priority = "medium"
	// PriorityHigh marks urgent, user-facing work.
	PriorityHigh Priority = "high"
)

// Request is the unit of work submitted to an agent. ID doubles as the
// correlation key under which the engine stores shared context and records
// workflow steps.
type Request struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	Priority  Priority       `json:"priority"`
}

// Response is the structured outcome of a single agent execution. Success and
// Error are mutually consistent: a failed response always carries an ErrorInfo
// with a machine-readable kind, a human-readable message and diagnostic
// details.
type Response struct {
	ID         string         `json:"id"`
	Success    bool           `json:"success"`
	Result     any            `json:"result,omitempty"`
	Error      *ErrorInfo     `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMs int64          `json:"duration_ms"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ParameterSpec documents a single declared input or output of a capability.
type ParameterSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// Capability is an immutable routing tuple declared once per agent at
// registration. Capabilities are used only for matching work to agents; they
// are never consulted or mutated during execution.
type Capability struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Inputs      []ParameterSpec `json:"inputs,omitempty"`
	Outputs     []ParameterSpec `json:"outputs,omitempty"`
	Domain      string          `json:"domain"`
	Actions     []string        `json:"actions"`
	Priority    Priority        `json:"priority"`
}

// Agent is the two-sided contract between the coordination core and agent
// implementations: declare what you can do (Capabilities, CanExecute) and do
// it (Execute). The coordinator never inspects agent internals.
//
// Implementations must:
//   - Respect context cancellation in Execute for graceful shutdown
//   - Return a Response even on failure (Success=false plus ErrorInfo), or an
//     error which the engine converts into an execution_error response
//   - Keep Capabilities stable after registration
type Agent interface {
	// ID returns the unique registration name of the agent.
	ID() string

	// Capabilities returns the declared capability tuples. The slice must be
	// treated as immutable by callers.
	Capabilities() []Capability

	// CanExecute reports whether the agent is able to handle the request.
	CanExecute(req Request) bool

	// Execute performs the unit of work described by the request.
	Execute(ctx context.Context, req Request) (*Response, error)
}

// AgentRegistry is the lookup surface the engine depends on. The concrete
// implementation lives in the registry package; the interface exists so the
// engine can be tested against fakes and to avoid a dependency cycle.
type AgentRegistry interface {
	// Get returns the registered agent handle by name.
	Get(name string) (Agent, bool)

	// FindByCapability returns the names of every registered agent sharing the
	// wanted domain and at least one action, in registration order.
	FindByCapability(want Capability) []string

	// Names returns all registered agent names in registration order.
	Names() []string
}
