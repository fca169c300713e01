package engine

import (
	"context"
	"time"

	"github.com/coordmesh/coordmesh/core"
)

// RecoveryStrategy names the action taken after a failed attempt.
type RecoveryStrategy string

const (
	// StrategyRetry re-runs the original agent after exponential backoff.
	StrategyRetry RecoveryStrategy = "retry"
	// StrategyFallback runs a capability-matched alternate agent once.
	StrategyFallback RecoveryStrategy = "fallback"
	// StrategyAbort gives up without further attempts.
	StrategyAbort RecoveryStrategy = "abort"
)

// RecoveryInfo reports what recovery did for a request: whether it was
// attempted, which strategy was last chosen, how many underlying attempts
// were made and whether execution ultimately succeeded.
type RecoveryInfo struct {
	Attempted     bool             `json:"attempted"`
	Strategy      RecoveryStrategy `json:"strategy,omitempty"`
	Attempts      int              `json:"attempts"`
	FallbackAgent string           `json:"fallback_agent,omitempty"`
	Success       bool             `json:"success"`
}

// RecoveryResult bundles the final response with its recovery report.
type RecoveryResult struct {
	Response *core.Response `json:"response"`
	Recovery RecoveryInfo   `json:"recovery"`
}

// ExecuteWorkflowWithRecovery executes the agent with automatic failure
// recovery: up to maxRetries attempts against the original agent, with the
// strategy after each failure chosen by error kind:
//
//   - validation_error: retry while attempts < 2, then abort
//   - timeout_error: retry while attempts < 3, then fall back
//   - resource_error, agent_not_found: fall back immediately
//   - anything else: retry once, then fall back
//
// Falling back searches the registry for another agent whose inferred
// capability (domain = request type, action = "execute") matches, excluding
// the original, and runs the first match once; when none exists the loop
// keeps retrying. Retries wait 2^attempt seconds through the engine's sleep
// hook so other workflows are never blocked.
func (e *Engine) ExecuteWorkflowWithRecovery(ctx context.Context, agentName string, req core.Request, maxRetries int) *RecoveryResult {
	if maxRetries < 1 {
		maxRetries = 1
	}

	info := RecoveryInfo{}
	var lastResp *core.Response

	for attempt := 1; attempt <= maxRetries; attempt++ {
		info.Attempts = attempt

		resp := e.ExecuteWorkflow(ctx, agentName, req)
		if resp.Success {
			info.Success = true
			return &RecoveryResult{Response: resp, Recovery: info}
		}
		lastResp = resp
		info.Attempted = true

		kind := core.ErrorTypeExecution
		if resp.Error != nil {
			kind = resp.Error.Type
		}

		strategy := chooseStrategy(kind, attempt)
		info.Strategy = strategy
		e.logger.Debug("recovery strategy chosen",
			"agent", agentName, "request_id", req.ID, "error_type", string(kind),
			"attempt", attempt, "strategy", string(strategy))

		switch strategy {
		case StrategyAbort:
			return &RecoveryResult{Response: lastResp, Recovery: info}

		case StrategyFallback:
			fbResp, fbName, found := e.tryFallback(ctx, agentName, req)
			if found {
				info.FallbackAgent = fbName
				info.Success = fbResp.Success
				return &RecoveryResult{Response: fbResp, Recovery: info}
			}
			// No alternate agent available; keep retrying instead.
			fallthrough

		case StrategyRetry:
			if attempt < maxRetries {
				backoff := time.Duration(1<<uint(attempt)) * time.Second
				if err := e.sleep(ctx, backoff); err != nil {
					info.Strategy = StrategyAbort
					return &RecoveryResult{Response: lastResp, Recovery: info}
				}
			}
		}
	}

	return &RecoveryResult{Response: lastResp, Recovery: info}
}

// chooseStrategy maps an error kind and attempt count to a recovery action.
func chooseStrategy(kind core.ErrorType, attempt int) RecoveryStrategy {
	switch kind {
	case core.ErrorTypeValidation:
		if attempt < 2 {
			return StrategyRetry
		}
		return StrategyAbort
	case core.ErrorTypeTimeout:
		if attempt < 3 {
			return StrategyRetry
		}
		return StrategyFallback
	case core.ErrorTypeResource, core.ErrorTypeAgentNotFound:
		return StrategyFallback
	default:
		if attempt < 2 {
			return StrategyRetry
		}
		return StrategyFallback
	}
}

// tryFallback searches for an alternate agent by inferred capability and runs
// the first match once. The original agent is excluded from the search.
func (e *Engine) tryFallback(ctx context.Context, original string, req core.Request) (*core.Response, string, bool) {
	want := core.Capability{Domain: req.Type, Actions: []string{"execute"}}

	for _, name := range e.registry.FindByCapability(want) {
		if name == original {
			continue
		}
		e.logger.Info("falling back to alternate agent",
			"original", original, "fallback", name, "request_id", req.ID)
		return e.ExecuteWorkflow(ctx, name, req), name, true
	}
	return nil, "", false
}
