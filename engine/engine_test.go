package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coordmesh/coordmesh/core"
	"github.com/coordmesh/coordmesh/memory"
	"github.com/coordmesh/coordmesh/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAgent is a configurable test double. Calls counts Execute invocations.
type stubAgent struct {
	id      string
	caps    []core.Capability
	canExec func(core.Request) bool
	execute func(ctx context.Context, req core.Request) (*core.Response, error)
	calls   int
}

func (a *stubAgent) ID() string                      { return a.id }
func (a *stubAgent) Capabilities() []core.Capability { return a.caps }

func (a *stubAgent) CanExecute(req core.Request) bool {
	if a.canExec != nil {
		return a.canExec(req)
	}
	return true
}

func (a *stubAgent) Execute(ctx context.Context, req core.Request) (*core.Response, error) {
	a.calls++
	if a.execute != nil {
		return a.execute(ctx, req)
	}
	return &core.Response{ID: req.ID, Success: true, Result: a.id + "-result"}, nil
}

var _ core.Agent = (*stubAgent)(nil)

// testHarness bundles an engine with its registry and graph for assertions.
type testHarness struct {
	engine   *Engine
	registry *registry.Registry
	graph    *memory.Graph
}

func newHarness(optFns ...func(o *Options)) *testHarness {
	graph := memory.NewGraph()
	reg := registry.New()
	return &testHarness{
		engine:   New(reg, graph, optFns...),
		registry: reg,
		graph:    graph,
	}
}

func instantSleep(_ context.Context, _ time.Duration) error { return nil }

func executorCapability(domain string) core.Capability {
	return core.Capability{Name: domain + "-executor", Domain: domain, Actions: []string{"execute"}}
}

func TestExecuteWorkflow_Success(t *testing.T) {
	h := newHarness()
	h.registry.Register(&stubAgent{id: "worker"})

	req := core.Request{ID: "wf-1", Type: "build", Payload: map[string]any{"target": "app"}}
	resp := h.engine.ExecuteWorkflow(context.Background(), "worker", req)

	require.True(t, resp.Success)
	assert.Equal(t, "wf-1", resp.ID)
	assert.Equal(t, "worker-result", resp.Result)
	assert.GreaterOrEqual(t, resp.DurationMs, int64(0))

	steps := h.graph.WorkflowSteps("wf-1")
	require.Len(t, steps, 1)
	assert.Equal(t, "build", steps[0].Phase)
	assert.Equal(t, "worker", steps[0].Agent)
	assert.True(t, steps[0].Success)

	// The request payload is shared as context under the request id.
	entry, ok := h.graph.GetContext("wf-1")
	require.True(t, ok)
	assert.Equal(t, "app", entry.Data["target"])
}

func TestExecuteWorkflow_AgentNotFound(t *testing.T) {
	h := newHarness()

	resp := h.engine.ExecuteWorkflow(context.Background(), "ghost", core.Request{ID: "wf-1", Type: "build"})

	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrorTypeAgentNotFound, resp.Error.Type)
	assert.Equal(t, "ghost", resp.Error.Details["agent"])

	// The failed lookup is still recorded as a step.
	steps := h.graph.WorkflowSteps("wf-1")
	require.Len(t, steps, 1)
	assert.False(t, steps[0].Success)
	assert.Equal(t, "ghost", steps[0].Agent)
}

func TestExecuteWorkflow_AgentErrorClassified(t *testing.T) {
	h := newHarness()
	h.registry.Register(&stubAgent{
		id: "worker",
		execute: func(_ context.Context, _ core.Request) (*core.Response, error) {
			return nil, errors.New("disk full")
		},
	})

	resp := h.engine.ExecuteWorkflow(context.Background(), "worker", core.Request{ID: "wf-1", Type: "build"})

	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrorTypeExecution, resp.Error.Type)
	assert.Equal(t, "disk full", resp.Error.Message)

	steps := h.graph.WorkflowSteps("wf-1")
	require.Len(t, steps, 1)
	assert.Equal(t, "disk full", steps[0].Error)
}

func TestExecuteWorkflow_TypedAgentErrorPreserved(t *testing.T) {
	h := newHarness()
	h.registry.Register(&stubAgent{
		id: "worker",
		execute: func(_ context.Context, _ core.Request) (*core.Response, error) {
			return nil, core.NewError(core.ErrorTypeValidation, "payload missing target")
		},
	})

	resp := h.engine.ExecuteWorkflow(context.Background(), "worker", core.Request{ID: "wf-1", Type: "build"})

	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrorTypeValidation, resp.Error.Type)
}

func TestExecuteWorkflow_PanicConverted(t *testing.T) {
	h := newHarness()
	h.registry.Register(&stubAgent{
		id: "worker",
		execute: func(_ context.Context, _ core.Request) (*core.Response, error) {
			panic("boom")
		},
	})

	resp := h.engine.ExecuteWorkflow(context.Background(), "worker", core.Request{ID: "wf-1", Type: "build"})

	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrorTypeExecution, resp.Error.Type)
	assert.Contains(t, resp.Error.Message, "panicked")
}

func TestExecuteWorkflow_CapabilityMismatch(t *testing.T) {
	h := newHarness()
	h.registry.Register(&stubAgent{
		id:      "worker",
		canExec: func(_ core.Request) bool { return false },
	})

	resp := h.engine.ExecuteWorkflow(context.Background(), "worker", core.Request{ID: "wf-1", Type: "deploy"})

	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrorTypeCapabilityMismatch, resp.Error.Type)
	assert.Equal(t, "deploy", resp.Error.Details["request_type"])
}

func TestExecuteWorkflow_CallTimeout(t *testing.T) {
	h := newHarness(WithCallTimeout(20 * time.Millisecond))
	h.registry.Register(&stubAgent{
		id: "slow",
		execute: func(ctx context.Context, _ core.Request) (*core.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	resp := h.engine.ExecuteWorkflow(context.Background(), "slow", core.Request{ID: "wf-1", Type: "build"})

	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrorTypeTimeout, resp.Error.Type)
}

func TestExecuteWorkflow_NilResponse(t *testing.T) {
	h := newHarness()
	h.registry.Register(&stubAgent{
		id: "worker",
		execute: func(_ context.Context, _ core.Request) (*core.Response, error) {
			return nil, nil
		},
	})

	resp := h.engine.ExecuteWorkflow(context.Background(), "worker", core.Request{ID: "wf-1", Type: "build"})

	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrorTypeExecution, resp.Error.Type)
}

func TestStats(t *testing.T) {
	h := newHarness()
	h.registry.Register(&stubAgent{id: "worker"})

	h.engine.ExecuteWorkflow(context.Background(), "worker", core.Request{ID: "wf-1", Type: "build"})
	h.engine.ExecuteWorkflow(context.Background(), "ghost", core.Request{ID: "wf-2", Type: "build"})

	stats := h.engine.Stats()
	assert.Equal(t, 2, stats.Steps)
	assert.Equal(t, 1, stats.Succeeded)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
}

func TestRun_StateMachine(t *testing.T) {
	run := newRun("run-1", "wf-1")
	assert.Equal(t, RunStatePending, run.State())
	assert.True(t, run.EndedAt().IsZero())

	run.start()
	assert.Equal(t, RunStateRunning, run.State())

	run.finish(true)
	assert.Equal(t, RunStateCompleted, run.State())
	assert.False(t, run.EndedAt().IsZero())

	// Terminal states are immutable.
	assert.False(t, run.Cancel())
	run.finish(false)
	assert.Equal(t, RunStateCompleted, run.State())
}

func TestRun_CancelWhilePending(t *testing.T) {
	run := newRun("run-1", "wf-1")
	assert.True(t, run.Cancel())
	assert.Equal(t, RunStateCancelled, run.State())

	// finish after cancel does not overwrite the terminal state.
	run.finish(true)
	assert.Equal(t, RunStateCancelled, run.State())
}

func TestCancelRun_Unknown(t *testing.T) {
	h := newHarness()
	assert.Error(t, h.engine.CancelRun("missing"))
}

func TestCancelRun_AlreadyFinished(t *testing.T) {
	h := newHarness()
	h.registry.Register(&stubAgent{id: "worker"})

	result := h.engine.ExecuteSequentialWorkflow(context.Background(),
		[]SequentialStep{{Agent: "worker"}}, core.Request{ID: "wf-1", Type: "build"})
	require.True(t, result.Success)

	err := h.engine.CancelRun(result.RunID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completed")
}
