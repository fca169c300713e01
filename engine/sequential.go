package engine

import (
	"context"
	"time"

	"github.com/coordmesh/coordmesh/core"
)

// SequentialStep names one step of a dependency-ordered workflow. Dependency
// is the agent that must have produced a successful result earlier in the
// same run; empty means no dependency.
type SequentialStep struct {
	Agent      string `json:"agent"`
	Dependency string `json:"dependency,omitempty"`
}

// SequentialResult is the outcome of a sequential workflow run. On failure it
// still carries the partial ExecutionOrder for diagnostics.
type SequentialResult struct {
	RunID          string                    `json:"run_id"`
	WorkflowID     string                    `json:"workflow_id"`
	State          RunState                  `json:"state"`
	Success        bool                      `json:"success"`
	ExecutionOrder []string                  `json:"execution_order"`
	Results        map[string]*core.Response `json:"results"`
	Error          *core.ErrorInfo           `json:"error,omitempty"`
}

// ExecuteSequentialWorkflow runs the steps strictly in order, folding each
// successful result into the next step's request payload (previousResults,
// lastAgent, lastResult) so later agents can read earlier output.
//
// Dependency checking is fail-fast: if a step declares a dependency whose
// agent has not produced a successful result in this run, the whole workflow
// fails immediately with a dependency_error and no earlier step is retried.
// Cancellation is checked between steps; a cancelled run stops dispatching
// but cannot interrupt the step already in flight.
func (e *Engine) ExecuteSequentialWorkflow(ctx context.Context, steps []SequentialStep, base core.Request) *SequentialResult {
	run := newRun(core.NewID(), base.ID)
	e.trackRun(run)
	run.start()

	started := time.Now()
	result := &SequentialResult{
		RunID:          run.ID(),
		WorkflowID:     base.ID,
		ExecutionOrder: []string{},
		Results:        make(map[string]*core.Response),
	}

	succeeded := make(map[string]bool)
	previous := make(map[string]any)
	var lastAgent string
	var lastResult any

	for _, step := range steps {
		if run.isCancelled() {
			result.State = RunStateCancelled
			result.Error = core.NewError(core.ErrorTypeExecution, "workflow %s cancelled", base.ID).
				WithDetail("execution_order", result.ExecutionOrder)
			e.logger.Info("sequential workflow cancelled", "workflow_id", base.ID, "completed_steps", len(result.ExecutionOrder))
			return result
		}

		if step.Dependency != "" && !succeeded[step.Dependency] {
			run.finish(false)
			result.State = run.State()
			result.Error = core.NewError(core.ErrorTypeDependency,
				"step %s requires %s which has not completed successfully", step.Agent, step.Dependency).
				WithDetail("agent", step.Agent).
				WithDetail("dependency", step.Dependency).
				WithDetail("execution_order", result.ExecutionOrder)
			return result
		}

		stepReq := core.Request{
			ID:        base.ID,
			Type:      base.Type,
			Payload:   make(map[string]any, len(base.Payload)+3),
			Timestamp: time.Now().UTC(),
			Priority:  base.Priority,
		}
		for k, v := range base.Payload {
			stepReq.Payload[k] = v
		}
		if len(previous) > 0 {
			folded := make(map[string]any, len(previous))
			for k, v := range previous {
				folded[k] = v
			}
			stepReq.Payload["previousResults"] = folded
			stepReq.Payload["lastAgent"] = lastAgent
			stepReq.Payload["lastResult"] = lastResult
		}

		resp := e.ExecuteWorkflow(ctx, step.Agent, stepReq)
		result.Results[step.Agent] = resp

		if !resp.Success {
			run.finish(false)
			result.State = run.State()
			result.Error = resp.Error
			return result
		}

		succeeded[step.Agent] = true
		result.ExecutionOrder = append(result.ExecutionOrder, step.Agent)
		previous[step.Agent] = resp.Result
		lastAgent = step.Agent
		lastResult = resp.Result
	}

	run.finish(true)
	result.State = run.State()
	result.Success = true
	e.logger.Info("sequential workflow completed",
		"workflow_id", base.ID, "steps", len(steps), "duration_ms", time.Since(started).Milliseconds())
	return result
}
