// Package coordmesh provides a high-level façade over the agent registry, the
// execution engine and the graph-structured memory store, enabling rapid
// construction of coordinated multi-agent systems. Most applications interact
// with this package by:
//  1. Creating a Coordinator via New() (optionally overriding defaults)
//  2. Registering one or more agents with declared capabilities
//  3. Executing work: single-step (ExecuteWorkflow), dependency-ordered
//     (ExecuteSequentialWorkflow) or with automatic failure recovery
//     (ExecuteWorkflowWithRecovery)
//
// The façade delegates orchestration to engine.Engine and recording to
// memory.Graph while keeping setup and usage ergonomics concise. Construct
// one Coordinator per process and pass it by injection; there are no
// process-wide singletons, so tests can build isolated coordinators.
package coordmesh

import (
	"context"
	"time"

	"github.com/coordmesh/coordmesh/core"
	"github.com/coordmesh/coordmesh/engine"
	"github.com/coordmesh/coordmesh/logging"
	"github.com/coordmesh/coordmesh/memory"
	"github.com/coordmesh/coordmesh/registry"
)

// Options configures the Coordinator instance.
type Options struct {
	// CallTimeout bounds each individual agent call; expiry becomes a
	// timeout_error response. Zero disables the bound.
	CallTimeout time.Duration

	// MaxWorkflows caps retained workflow step histories in the memory
	// graph. Zero keeps history unbounded.
	MaxWorkflows int

	// Classifier overrides the technology classifier used by pattern
	// recognition. Defaults to the built-in regex classifier.
	Classifier memory.TechnologyClassifier

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Coordinator is the high-level façade aggregating the registry, the memory
// graph and the execution engine.
type Coordinator struct {
	registry *registry.Registry
	graph    *memory.Graph
	engine   *engine.Engine
}

// New creates a Coordinator with optional overrides.
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		MaxWorkflows: 1000,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	graph := memory.NewGraph(func(o *memory.Options) {
		o.MaxWorkflows = opts.MaxWorkflows
		o.Logger = opts.Logger
		if opts.Classifier != nil {
			o.Classifier = opts.Classifier
		}
	})

	reg := registry.New(func(o *registry.Options) {
		o.Recorder = graph
		o.Logger = opts.Logger
	})

	eng := engine.New(reg, graph,
		engine.WithCallTimeout(opts.CallTimeout),
		engine.WithLogger(opts.Logger),
	)

	return &Coordinator{registry: reg, graph: graph, engine: eng}
}

// RegisterAgent adds an agent to the registry and indexes its capabilities.
func (c *Coordinator) RegisterAgent(a core.Agent) { c.registry.Register(a) }

// ExecuteWorkflow runs a single agent call, recording the outcome.
func (c *Coordinator) ExecuteWorkflow(ctx context.Context, agentName string, req core.Request) *core.Response {
	return c.engine.ExecuteWorkflow(ctx, agentName, req)
}

// ExecuteSequentialWorkflow runs the steps in dependency order, folding
// earlier results into later requests.
func (c *Coordinator) ExecuteSequentialWorkflow(ctx context.Context, steps []engine.SequentialStep, base core.Request) *engine.SequentialResult {
	return c.engine.ExecuteSequentialWorkflow(ctx, steps, base)
}

// ExecuteWorkflowWithRecovery runs the agent with retry and capability-matched
// fallback.
func (c *Coordinator) ExecuteWorkflowWithRecovery(ctx context.Context, agentName string, req core.Request, maxRetries int) *engine.RecoveryResult {
	return c.engine.ExecuteWorkflowWithRecovery(ctx, agentName, req, maxRetries)
}

// FindAgentsByCapability returns agent names sharing the wanted domain and at
// least one action, in registration order.
func (c *Coordinator) FindAgentsByCapability(want core.Capability) []string {
	return c.registry.FindByCapability(want)
}

// GetAgentCapabilities returns the declared capabilities of a registered agent.
func (c *Coordinator) GetAgentCapabilities(name string) ([]core.Capability, bool) {
	return c.registry.Capabilities(name)
}

// GetRegisteredAgents returns all registered agent names in registration order.
func (c *Coordinator) GetRegisteredAgents() []string {
	return c.registry.Names()
}

// GetCoordinationStats aggregates success rate and mean duration over every
// recorded workflow node.
func (c *Coordinator) GetCoordinationStats() engine.CoordinationStats {
	return c.engine.Stats()
}

// CancelRun requests cooperative cancellation of a tracked workflow run.
func (c *Coordinator) CancelRun(runID string) error {
	return c.engine.CancelRun(runID)
}

// Memory exposes the underlying graph for context sharing, pattern queries
// and export/import.
func (c *Coordinator) Memory() *memory.Graph { return c.graph }

// IdentifyPatterns scores recorded workflows against the keyword list.
func (c *Coordinator) IdentifyPatterns(keywords []string) []memory.PatternMatch {
	return c.graph.IdentifyPatterns(keywords)
}

// ExportMemory serializes full graph state.
func (c *Coordinator) ExportMemory() core.GraphSnapshot { return c.graph.Export() }

// ImportMemory replaces graph state with the snapshot and repairs dangling
// references.
func (c *Coordinator) ImportMemory(snapshot core.GraphSnapshot) { c.graph.Import(snapshot) }
