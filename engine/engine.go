package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coordmesh/coordmesh/core"
	"github.com/coordmesh/coordmesh/logging"
)

// Options configures an Engine instance.
type Options struct {
	// CallTimeout bounds each individual agent call. Expiry yields a
	// timeout_error response, which the recovery classifier already knows how
	// to handle. Zero disables the bound.
	CallTimeout time.Duration

	// Sleep is the backoff hook used between retry attempts. The default
	// sleeps on a real timer and aborts early when the context ends. Tests
	// inject an instant sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine drives agent calls and records every outcome in the memory graph.
// It is safe for concurrent use: many independent call chains may execute
// simultaneously while graph mutations stay serialized inside the store.
type Engine struct {
	registry core.AgentRegistry
	graph    core.MemoryGraph

	callTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      logging.Logger

	runs   map[string]*Run
	runsMu sync.RWMutex
}

// New constructs an Engine bound to a registry and a memory graph, with
// optional overrides.
func New(registry core.AgentRegistry, graph core.MemoryGraph, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Sleep:  sleepContext,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		registry:    registry,
		graph:       graph,
		callTimeout: opts.CallTimeout,
		sleep:       opts.Sleep,
		logger:      opts.Logger,
		runs:        make(map[string]*Run),
	}
}

// WithCallTimeout bounds each agent call to the given duration.
func WithCallTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) { o.CallTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithSleep overrides the retry backoff sleep hook.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) func(o *Options) {
	return func(o *Options) { o.Sleep = sleep }
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExecuteWorkflow performs single-step execution: it looks up the agent,
// stores the request payload as shared context under the request id, invokes
// the agent, measures wall-clock duration and unconditionally records a
// workflow step before returning. Agent errors and panics never escape; they
// are converted into a structured failure response.
func (e *Engine) ExecuteWorkflow(ctx context.Context, agentName string, req core.Request) *core.Response {
	started := time.Now()

	agent, ok := e.registry.Get(agentName)
	if !ok {
		errInfo := core.NewError(core.ErrorTypeAgentNotFound, "agent %s not registered", agentName).
			WithDetail("agent", agentName)
		return e.finishStep(agentName, req, started, nil, errInfo)
	}

	if err := e.graph.StoreContext(req.ID, req.Payload); err != nil {
		e.logger.Warn("shared context store failed", "request_id", req.ID, "error", err)
	}

	resp, err := e.callAgent(ctx, agent, req)
	if err != nil {
		return e.finishStep(agentName, req, started, nil, e.classify(err, agentName, started))
	}
	if !resp.Success && resp.Error == nil {
		resp.Error = core.NewError(core.ErrorTypeExecution, "agent %s reported failure without detail", agentName)
	}
	return e.finishStep(agentName, req, started, resp, resp.Error)
}

// callAgent wraps the raw agent call with capability checking, the optional
// per-call timeout and panic conversion.
func (e *Engine) callAgent(ctx context.Context, agent core.Agent, req core.Request) (resp *core.Response, err error) {
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = core.NewError(core.ErrorTypeExecution, "agent %s panicked: %v", agent.ID(), r)
		}
	}()

	if !agent.CanExecute(req) {
		return nil, core.NewError(core.ErrorTypeCapabilityMismatch, "agent %s cannot execute request type %s", agent.ID(), req.Type).
			WithDetail("agent", agent.ID()).
			WithDetail("request_type", req.Type)
	}

	resp, err = agent.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, core.NewError(core.ErrorTypeExecution, "agent %s returned no response", agent.ID())
	}
	return resp, nil
}

// classify converts an arbitrary agent error into a structured ErrorInfo,
// preserving an already-typed error and mapping context expiry to
// timeout_error.
func (e *Engine) classify(err error, agentName string, started time.Time) *core.ErrorInfo {
	var info *core.ErrorInfo
	if errors.As(err, &info) {
		return info
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewError(core.ErrorTypeTimeout, "agent %s call timed out", agentName).
			WithDetail("agent", agentName).
			WithDetail("duration_ms", time.Since(started).Milliseconds())
	}
	return core.NewError(core.ErrorTypeExecution, "%s", err.Error()).
		WithDetail("agent", agentName)
}

// finishStep records the workflow step for the call and assembles the final
// response. Recording happens for every execution path, success or failure.
func (e *Engine) finishStep(agentName string, req core.Request, started time.Time, resp *core.Response, errInfo *core.ErrorInfo) *core.Response {
	duration := time.Since(started)

	step := core.WorkflowStep{
		Phase:      req.Type,
		Agent:      agentName,
		Input:      req.Payload,
		StartedAt:  started.UTC(),
		DurationMs: duration.Milliseconds(),
		Success:    errInfo == nil,
	}
	if resp != nil {
		step.Output = resp.Result
	}
	if errInfo != nil {
		step.Error = errInfo.Message
	}
	if err := e.graph.RecordWorkflowStep(req.ID, step); err != nil {
		e.logger.Warn("workflow step record failed", "workflow_id", req.ID, "error", err)
	}

	e.logger.Debug("agent call finished",
		"agent", agentName, "request_id", req.ID,
		"success", errInfo == nil, "duration_ms", duration.Milliseconds())

	if errInfo == nil {
		out := *resp
		out.ID = req.ID
		out.DurationMs = duration.Milliseconds()
		if out.Timestamp.IsZero() {
			out.Timestamp = time.Now().UTC()
		}
		return &out
	}

	errInfo.WithDetail("agent", agentName).
		WithDetail("request_id", req.ID).
		WithDetail("duration_ms", duration.Milliseconds())
	return &core.Response{
		ID:         req.ID,
		Success:    false,
		Error:      errInfo,
		Timestamp:  time.Now().UTC(),
		DurationMs: duration.Milliseconds(),
	}
}

// CoordinationStats aggregates success rate and mean duration over every
// workflow node recorded in the memory graph.
type CoordinationStats struct {
	Steps             int     `json:"steps"`
	Succeeded         int     `json:"succeeded"`
	SuccessRate       float64 `json:"success_rate"`
	AverageDurationMs float64 `json:"average_duration_ms"`
}

// Stats computes coordination statistics from the graph's workflow nodes.
func (e *Engine) Stats() CoordinationStats {
	nodes := e.graph.FindNodes(core.NodeKindWorkflow)

	stats := CoordinationStats{}
	var totalMs int64
	for _, node := range nodes {
		step, ok := node.Payload.(core.WorkflowStep)
		if !ok {
			continue
		}
		stats.Steps++
		totalMs += step.DurationMs
		if step.Success {
			stats.Succeeded++
		}
	}
	if stats.Steps > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Steps)
		stats.AverageDurationMs = float64(totalMs) / float64(stats.Steps)
	}
	return stats
}
