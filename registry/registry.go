package registry

import (
	"sync"
	"time"

	"github.com/coordmesh/coordmesh/core"
	"github.com/coordmesh/coordmesh/logging"
)

// NodeRecorder is the narrow slice of the memory graph the registry needs:
// materializing a registration node per registered agent. The concrete
// *memory.Graph satisfies it; a nil recorder disables recording.
type NodeRecorder interface {
	AddNode(node core.MemoryNode)
}

// Options configures a Registry instance.
type Options struct {
	// Recorder receives a context node per registration so agent membership
	// is visible in the memory graph. Optional.
	Recorder NodeRecorder

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// indexEntry is one flattened (domain, action, priority) capability tuple.
type indexEntry struct {
	agent    string
	domain   string
	action   string
	priority core.Priority
}

// Registry knows which agents exist and what they can do, without knowing how
// they do it. It stores agent handles by name and flattens each agent's
// declared capabilities into a (domain, action, priority) index used for
// matching. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]core.Agent
	order    []string // registration order
	index    []indexEntry
	recorder NodeRecorder
	logger   logging.Logger
}

// New constructs an empty Registry with optional overrides.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		agents:   make(map[string]core.Agent),
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// Register stores the agent handle under its ID, flattens its declared
// capabilities into the index, and records a registration node in the memory
// graph. Re-registering the same name overwrites silently; the agent keeps
// its original position in registration order.
func (r *Registry) Register(agent core.Agent) {
	name := agent.ID()
	capabilities := agent.Capabilities()

	r.mu.Lock()
	if _, known := r.agents[name]; !known {
		r.order = append(r.order, name)
	} else {
		// Overwrite: drop the stale index entries before re-flattening.
		kept := r.index[:0]
		for _, entry := range r.index {
			if entry.agent != name {
				kept = append(kept, entry)
			}
		}
		r.index = kept
	}
	r.agents[name] = agent

	for _, capability := range capabilities {
		for _, action := range capability.Actions {
			r.index = append(r.index, indexEntry{
				agent:    name,
				domain:   capability.Domain,
				action:   action,
				priority: capability.Priority,
			})
		}
	}
	r.mu.Unlock()

	if r.recorder != nil {
		r.recorder.AddNode(core.MemoryNode{
			ID:        "agent-registration-" + name,
			Kind:      core.NodeKindContext,
			Payload:   map[string]any{"agent": name, "capabilities": len(capabilities)},
			CreatedAt: time.Now().UTC(),
			Metadata: core.NodeMetadata{
				Agent: name,
				Tags:  []string{"agent", "registration"},
			},
		})
	}

	r.logger.Debug("agent registered", "agent", name, "capabilities", len(capabilities))
}

// Get returns the registered agent handle by name.
func (r *Registry) Get(name string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[name]
	return agent, ok
}

// FindByCapability returns every registered agent name whose indexed
// capabilities share the wanted domain and at least one overlapping action.
// Results come back in registration order, not relevance order; callers
// needing a single best match take the first result or apply their own
// tie-break.
func (r *Registry) FindByCapability(want core.Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make(map[string]bool)
	for _, entry := range r.index {
		if entry.domain != want.Domain {
			continue
		}
		for _, action := range want.Actions {
			if entry.action == action {
				matched[entry.agent] = true
				break
			}
		}
	}

	var out []string
	for _, name := range r.order {
		if matched[name] {
			out = append(out, name)
		}
	}
	return out
}

// Capabilities returns the declared capabilities of a registered agent.
func (r *Registry) Capabilities(name string) ([]core.Capability, bool) {
	r.mu.RLock()
	agent, ok := r.agents[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return agent.Capabilities(), true
}

// Names returns all registered agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

var _ core.AgentRegistry = (*Registry)(nil)
