package engine

import (
	"context"
	"testing"
	"time"

	"github.com/coordmesh/coordmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingAgent(id string, errType core.ErrorType) *stubAgent {
	return &stubAgent{
		id: id,
		execute: func(_ context.Context, _ core.Request) (*core.Response, error) {
			return nil, core.NewError(errType, "%s failed", id)
		},
	}
}

func TestExecuteWorkflowWithRecovery_FirstAttemptSucceeds(t *testing.T) {
	h := newHarness(WithSleep(instantSleep))
	h.registry.Register(&stubAgent{id: "worker"})

	result := h.engine.ExecuteWorkflowWithRecovery(context.Background(), "worker",
		core.Request{ID: "wf-1", Type: "build"}, 3)

	require.True(t, result.Response.Success)
	assert.False(t, result.Recovery.Attempted)
	assert.Equal(t, 1, result.Recovery.Attempts)
	assert.True(t, result.Recovery.Success)
}

func TestExecuteWorkflowWithRecovery_SucceedsAfterRetry(t *testing.T) {
	h := newHarness(WithSleep(instantSleep))
	attempts := 0
	h.registry.Register(&stubAgent{
		id: "flaky",
		execute: func(_ context.Context, req core.Request) (*core.Response, error) {
			attempts++
			if attempts == 1 {
				return nil, core.NewError(core.ErrorTypeExecution, "transient")
			}
			return &core.Response{ID: req.ID, Success: true, Result: "ok"}, nil
		},
	})

	result := h.engine.ExecuteWorkflowWithRecovery(context.Background(), "flaky",
		core.Request{ID: "wf-1", Type: "build"}, 3)

	require.True(t, result.Response.Success)
	assert.True(t, result.Recovery.Attempted)
	assert.Equal(t, 2, result.Recovery.Attempts)
	assert.Equal(t, StrategyRetry, result.Recovery.Strategy)
	assert.True(t, result.Recovery.Success)
	assert.Equal(t, 2, attempts)
}

func TestExecuteWorkflowWithRecovery_RetryCeiling(t *testing.T) {
	h := newHarness(WithSleep(instantSleep))
	agent := failingAgent("broken", core.ErrorTypeExecution)
	h.registry.Register(agent)

	result := h.engine.ExecuteWorkflowWithRecovery(context.Background(), "broken",
		core.Request{ID: "wf-1", Type: "build"}, 3)

	require.False(t, result.Response.Success)
	assert.True(t, result.Recovery.Attempted)
	assert.Equal(t, 3, result.Recovery.Attempts)
	assert.False(t, result.Recovery.Success)
	assert.Equal(t, 3, agent.calls)
}

func TestExecuteWorkflowWithRecovery_ValidationAborts(t *testing.T) {
	h := newHarness(WithSleep(instantSleep))
	agent := failingAgent("strict", core.ErrorTypeValidation)
	h.registry.Register(agent)

	result := h.engine.ExecuteWorkflowWithRecovery(context.Background(), "strict",
		core.Request{ID: "wf-1", Type: "build"}, 5)

	require.False(t, result.Response.Success)
	assert.Equal(t, StrategyAbort, result.Recovery.Strategy)
	assert.Equal(t, 2, result.Recovery.Attempts)
	assert.Equal(t, 2, agent.calls)
}

func TestExecuteWorkflowWithRecovery_ResourceFallsBack(t *testing.T) {
	h := newHarness(WithSleep(instantSleep))
	original := failingAgent("starved", core.ErrorTypeResource)
	h.registry.Register(original)

	fallback := &stubAgent{id: "backup", caps: []core.Capability{executorCapability("build")}}
	h.registry.Register(fallback)

	result := h.engine.ExecuteWorkflowWithRecovery(context.Background(), "starved",
		core.Request{ID: "wf-1", Type: "build"}, 3)

	require.True(t, result.Response.Success)
	assert.Equal(t, StrategyFallback, result.Recovery.Strategy)
	assert.Equal(t, "backup", result.Recovery.FallbackAgent)
	assert.True(t, result.Recovery.Success)
	assert.Equal(t, 1, result.Recovery.Attempts)
	assert.Equal(t, 1, original.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestExecuteWorkflowWithRecovery_FallbackExcludesOriginal(t *testing.T) {
	h := newHarness(WithSleep(instantSleep))

	// The original agent matches the inferred capability itself and is
	// registered first; the search must skip it.
	original := failingAgent("starved", core.ErrorTypeResource)
	original.caps = []core.Capability{executorCapability("build")}
	h.registry.Register(original)

	fallback := &stubAgent{id: "backup", caps: []core.Capability{executorCapability("build")}}
	h.registry.Register(fallback)

	result := h.engine.ExecuteWorkflowWithRecovery(context.Background(), "starved",
		core.Request{ID: "wf-1", Type: "build"}, 3)

	require.True(t, result.Response.Success)
	assert.Equal(t, "backup", result.Recovery.FallbackAgent)
	assert.Equal(t, 1, original.calls)
}

func TestExecuteWorkflowWithRecovery_NoFallbackKeepsRetrying(t *testing.T) {
	h := newHarness(WithSleep(instantSleep))
	agent := failingAgent("starved", core.ErrorTypeResource)
	h.registry.Register(agent)

	result := h.engine.ExecuteWorkflowWithRecovery(context.Background(), "starved",
		core.Request{ID: "wf-1", Type: "build"}, 2)

	require.False(t, result.Response.Success)
	assert.Empty(t, result.Recovery.FallbackAgent)
	assert.Equal(t, 2, agent.calls)
}

func TestExecuteWorkflowWithRecovery_SleepErrorAborts(t *testing.T) {
	h := newHarness(WithSleep(func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}))
	agent := failingAgent("broken", core.ErrorTypeExecution)
	h.registry.Register(agent)

	result := h.engine.ExecuteWorkflowWithRecovery(context.Background(), "broken",
		core.Request{ID: "wf-1", Type: "build"}, 3)

	require.False(t, result.Response.Success)
	assert.Equal(t, StrategyAbort, result.Recovery.Strategy)
	assert.Equal(t, 1, agent.calls)
}

func TestExecuteWorkflowWithRecovery_MinimumOneAttempt(t *testing.T) {
	h := newHarness(WithSleep(instantSleep))
	agent := failingAgent("broken", core.ErrorTypeExecution)
	h.registry.Register(agent)

	result := h.engine.ExecuteWorkflowWithRecovery(context.Background(), "broken",
		core.Request{ID: "wf-1", Type: "build"}, 0)

	require.False(t, result.Response.Success)
	assert.Equal(t, 1, result.Recovery.Attempts)
	assert.Equal(t, 1, agent.calls)
}
