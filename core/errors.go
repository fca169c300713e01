package core

import "fmt"

// ErrorType tags a failure with a machine-readable kind. Kinds are plain
// strings, not exception classes, so they survive process and serialization
// boundaries and can drive retry/fallback classification on the far side.
type ErrorType string

const (
	// ErrorTypeAgentNotFound indicates the requested agent is not registered.
	ErrorTypeAgentNotFound ErrorType = "agent_not_found"
	// ErrorTypeCapabilityMismatch indicates no registered agent matches the
	// requested capability tuple.
	ErrorTypeCapabilityMismatch ErrorType = "capability_mismatch"
	// ErrorTypeDependency indicates a sequential workflow step ran before its
	// declared dependency produced a successful result.
	ErrorTypeDependency ErrorType = "dependency_error"
	// ErrorTypeValidation indicates malformed or incomplete request input.
	ErrorTypeValidation ErrorType = "validation_error"
	// ErrorTypeTimeout indicates an agent call exceeded its allotted duration.
	ErrorTypeTimeout ErrorType = "timeout_error"
	// ErrorTypeResource indicates an unavailable external resource; recovery
	// falls back to an alternate agent immediately rather than retrying.
	ErrorTypeResource ErrorType = "resource_error"
	// ErrorTypeExecution is the catch-all kind for agent-thrown failures. The
	// engine converts every escaped agent error or panic into this kind.
	ErrorTypeExecution ErrorType = "execution_error"
)

// ErrorInfo is the structured, serializable failure record carried inside a
// Response. It implements error so agent implementations can return one
// directly and the engine can recover the kind via errors.As.
type ErrorInfo struct {
	Type    ErrorType      `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewError constructs an ErrorInfo of the given kind.
func NewError(t ErrorType, format string, args ...any) *ErrorInfo {
	return &ErrorInfo{Type: t, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a diagnostic key/value pair and returns the receiver
// for chaining. Details should carry enough context (agent name, duration,
// attempted step) to diagnose a failure without re-running it.
func (e *ErrorInfo) WithDetail(key string, value any) *ErrorInfo {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}
