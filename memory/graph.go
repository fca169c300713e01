package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/coordmesh/coordmesh/core"
	"github.com/coordmesh/coordmesh/logging"
)

// Options configures a Graph instance.
type Options struct {
	// Classifier extracts technology keywords from workflow step payloads
	// during pattern recognition. Defaults to the built-in regex classifier.
	Classifier TechnologyClassifier

	// MaxWorkflows caps retained workflow step histories. Recording a step
	// for a new workflow id beyond the cap evicts the oldest workflow's step
	// list (its nodes remain in the graph). Set to 0 for unbounded retention.
	MaxWorkflows int

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Graph is the in-process graph store recording everything that happened:
// workflow step history, shared context bags and derived similarity patterns.
// All methods are safe for concurrent use; mutations from concurrent call
// chains are serialized by an internal mutex.
//
// The graph never raises consistency errors to callers. After any mutation a
// repair pass silently drops dangling relationship references and removes
// edges whose endpoints vanished.
type Graph struct {
	mu sync.RWMutex

	nodes map[string]*core.MemoryNode
	edges map[string]*core.MemoryEdge

	workflows     map[string][]core.WorkflowStep
	workflowOrder []string          // arrival order, drives eviction
	lastStepNode  map[string]string // workflow id -> node id of latest step

	contexts map[string]*core.ContextEntry

	patternCache map[string][]PatternMatch

	classifier   TechnologyClassifier
	maxWorkflows int
	logger       logging.Logger
}

// NewGraph constructs an empty Graph with optional overrides.
func NewGraph(optFns ...func(o *Options)) *Graph {
	opts := Options{
		Classifier:   NewRegexClassifier(),
		MaxWorkflows: 1000,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Graph{
		nodes:        make(map[string]*core.MemoryNode),
		edges:        make(map[string]*core.MemoryEdge),
		workflows:    make(map[string][]core.WorkflowStep),
		lastStepNode: make(map[string]string),
		contexts:     make(map[string]*core.ContextEntry),
		patternCache: make(map[string][]PatternMatch),
		classifier:   opts.Classifier,
		maxWorkflows: opts.MaxWorkflows,
		logger:       opts.Logger,
	}
}

// AddNode inserts or overwrites a node by id. The operation is an idempotent
// upsert with no error conditions; integrity is recomputed afterwards.
func (g *Graph) AddNode(node core.MemoryNode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now().UTC()
	}
	g.nodes[node.ID] = &node
	g.repairLocked()
}

// RemoveNode deletes a node by id. Edges touching the node and relationship
// references to it are pruned by the repair pass rather than surfaced as
// errors. Removing an unknown id is a no-op.
func (g *Graph) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.nodes, id)
	g.repairLocked()
}

// GetNode returns a copy of the node with the given id.
func (g *Graph) GetNode(id string) (core.MemoryNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return core.MemoryNode{}, false
	}
	return cloneNode(node), true
}

// AddEdge inserts a weighted edge between two existing nodes. It fails with
// ErrNodeNotFound when either endpoint is absent. On success the link is
// appended to From's relationship list, and to To's as well when the edge is
// flagged bidirectional.
func (g *Graph) AddEdge(edge core.MemoryEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.addEdgeLocked(edge)
}

func (g *Graph) addEdgeLocked(edge core.MemoryEdge) error {
	from, ok := g.nodes[edge.From]
	if !ok {
		return fmt.Errorf("edge %s -> %s: from endpoint: %w", edge.From, edge.To, ErrNodeNotFound)
	}
	to, ok := g.nodes[edge.To]
	if !ok {
		return fmt.Errorf("edge %s -> %s: to endpoint: %w", edge.From, edge.To, ErrNodeNotFound)
	}

	if edge.ID == "" {
		edge.ID = core.NewID()
	}
	g.edges[edge.ID] = &edge

	from.Relationships = append(from.Relationships, edge.To)
	if edge.Metadata.Bidirectional {
		to.Relationships = append(to.Relationships, edge.From)
	}

	g.repairLocked()
	return nil
}

// RecordWorkflowStep appends a step to the workflow's ordered history,
// materializes a workflow node for it, and links it to the previous step of
// the same workflow with a sequence edge of weight 1.0. The node id is derived
// from workflow id, phase, step index and timestamp so repeated phases stay
// unique.
func (g *Graph) RecordWorkflowStep(workflowID string, step core.WorkflowStep) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now().UTC()
	}

	steps, known := g.workflows[workflowID]
	if !known {
		g.workflowOrder = append(g.workflowOrder, workflowID)
		g.evictLocked()
	}
	g.workflows[workflowID] = append(steps, step)

	nodeID := fmt.Sprintf("%s-%s-%d-%d", workflowID, step.Phase, len(steps), step.StartedAt.UnixNano())
	node := core.MemoryNode{
		ID:        nodeID,
		Kind:      core.NodeKindWorkflow,
		Payload:   step,
		CreatedAt: time.Now().UTC(),
		Metadata: core.NodeMetadata{
			Agent: step.Agent,
			Phase: step.Phase,
			Tags:  []string{"workflow", workflowID},
		},
	}
	g.nodes[nodeID] = &node

	if prev, ok := g.lastStepNode[workflowID]; ok {
		if err := g.addEdgeLocked(core.MemoryEdge{
			From:   prev,
			To:     nodeID,
			Kind:   core.EdgeKindSequence,
			Weight: 1.0,
		}); err != nil {
			// Previous node may have been removed; sequence chain restarts here.
			g.logger.Warn("sequence link skipped", "workflow_id", workflowID, "error", err)
		}
	}
	g.lastStepNode[workflowID] = nodeID

	// Recorded history changed, cached pattern results are stale.
	g.patternCache = make(map[string][]PatternMatch)

	g.repairLocked()
	return nil
}

// evictLocked drops the oldest workflow's step history when the retention cap
// is exceeded. Graph nodes created for the evicted steps are retained.
func (g *Graph) evictLocked() {
	if g.maxWorkflows <= 0 {
		return
	}
	for len(g.workflowOrder) > g.maxWorkflows {
		oldest := g.workflowOrder[0]
		g.workflowOrder = g.workflowOrder[1:]
		delete(g.workflows, oldest)
		delete(g.lastStepNode, oldest)
		g.logger.Debug("workflow history evicted", "workflow_id", oldest)
	}
}

// WorkflowSteps returns a copy of the ordered steps recorded under the
// workflow id.
func (g *Graph) WorkflowSteps(workflowID string) []core.WorkflowStep {
	g.mu.RLock()
	defer g.mu.RUnlock()

	steps := g.workflows[workflowID]
	out := make([]core.WorkflowStep, len(steps))
	copy(out, steps)
	return out
}

// WorkflowIDs returns the retained workflow ids in arrival order.
func (g *Graph) WorkflowIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, len(g.workflowOrder))
	copy(out, g.workflowOrder)
	return out
}

// StoreContext upserts a named context bag and materializes a context node
// tagged {context, shared} so the bag participates in graph traversal and
// search.
func (g *Graph) StoreContext(contextID string, data map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry := &core.ContextEntry{
		ID:        contextID,
		Data:      make(map[string]any, len(data)),
		UpdatedAt: time.Now().UTC(),
	}
	for k, v := range data {
		entry.Data[k] = v
	}
	g.contexts[contextID] = entry

	nodeID := "context-" + contextID
	g.nodes[nodeID] = &core.MemoryNode{
		ID:        nodeID,
		Kind:      core.NodeKindContext,
		Payload:   entry.Data,
		CreatedAt: time.Now().UTC(),
		Metadata:  core.NodeMetadata{Tags: []string{"context", "shared"}},
	}

	g.repairLocked()
	return nil
}

// GetContext returns a copy of the context bag stored under the id.
func (g *Graph) GetContext(contextID string) (*core.ContextEntry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := g.contexts[contextID]
	if !ok {
		return nil, false
	}
	out := &core.ContextEntry{ID: entry.ID, Data: make(map[string]any, len(entry.Data)), UpdatedAt: entry.UpdatedAt}
	for k, v := range entry.Data {
		out.Data[k] = v
	}
	return out, true
}

// FindNodes returns copies of every node matching the kind and carrying all of
// the given tags. An empty kind matches any kind; empty tags match any node.
func (g *Graph) FindNodes(kind core.NodeKind, tags ...string) []core.MemoryNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []core.MemoryNode
	for _, node := range g.nodes {
		if kind != "" && node.Kind != kind {
			continue
		}
		if !hasAllTags(node.Metadata.Tags, tags) {
			continue
		}
		out = append(out, cloneNode(node))
	}
	return out
}

// Neighbors resolves a node's outgoing relationships to node copies,
// preserving relationship order. Unknown source ids yield nil.
func (g *Graph) Neighbors(id string) []core.MemoryNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	out := make([]core.MemoryNode, 0, len(node.Relationships))
	for _, ref := range node.Relationships {
		if target, ok := g.nodes[ref]; ok {
			out = append(out, cloneNode(target))
		}
	}
	return out
}

// SystemState reports integrity (fraction of nodes with at least one outgoing
// relationship, 1.0 when empty), consistency (every edge endpoint and
// relationship reference resolves) and size counters.
func (g *Graph) SystemState() core.SystemState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	state := core.SystemState{
		Integrity:   1.0,
		Consistency: true,
		NodeCount:   len(g.nodes),
		EdgeCount:   len(g.edges),
	}

	if len(g.nodes) > 0 {
		connected := 0
		for _, node := range g.nodes {
			if len(node.Relationships) > 0 {
				connected++
			}
			for _, ref := range node.Relationships {
				if _, ok := g.nodes[ref]; !ok {
					state.Consistency = false
				}
			}
		}
		state.Integrity = float64(connected) / float64(len(g.nodes))
	}

	for _, edge := range g.edges {
		if _, ok := g.nodes[edge.From]; !ok {
			state.Consistency = false
		}
		if _, ok := g.nodes[edge.To]; !ok {
			state.Consistency = false
		}
	}

	return state
}

// Export serializes full graph state for persistence across the process
// boundary. Nodes and edges are deep-copied; mutating the snapshot does not
// affect the graph.
func (g *Graph) Export() core.GraphSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snapshot := core.GraphSnapshot{
		Nodes: make([]core.MemoryNode, 0, len(g.nodes)),
		Edges: make([]core.MemoryEdge, 0, len(g.edges)),
		Metadata: map[string]any{
			"exported_at": time.Now().UTC(),
			"node_count":  len(g.nodes),
			"edge_count":  len(g.edges),
		},
	}
	for _, node := range g.nodes {
		snapshot.Nodes = append(snapshot.Nodes, cloneNode(node))
	}
	for _, edge := range g.edges {
		snapshot.Edges = append(snapshot.Edges, *edge)
	}
	return snapshot
}

// Import replaces existing graph state with the snapshot, then runs the same
// dangling-reference repair pass as any other mutation. Workflow step history
// and context bags are not part of the snapshot and are cleared.
func (g *Graph) Import(snapshot core.GraphSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*core.MemoryNode, len(snapshot.Nodes))
	g.edges = make(map[string]*core.MemoryEdge, len(snapshot.Edges))
	g.workflows = make(map[string][]core.WorkflowStep)
	g.workflowOrder = nil
	g.lastStepNode = make(map[string]string)
	g.contexts = make(map[string]*core.ContextEntry)
	g.patternCache = make(map[string][]PatternMatch)

	for _, node := range snapshot.Nodes {
		n := cloneNode(&node)
		g.nodes[node.ID] = &n
	}
	for _, edge := range snapshot.Edges {
		e := edge
		if e.ID == "" {
			e.ID = core.NewID()
		}
		g.edges[e.ID] = &e
	}

	g.repairLocked()
}

// repairLocked is the self-healing pass run after every mutation: dangling
// relationship references are silently dropped and edges whose endpoints
// vanished are removed. Caller must hold the write lock.
func (g *Graph) repairLocked() {
	for _, node := range g.nodes {
		kept := node.Relationships[:0]
		for _, ref := range node.Relationships {
			if _, ok := g.nodes[ref]; ok {
				kept = append(kept, ref)
			}
		}
		node.Relationships = kept
	}

	for id, edge := range g.edges {
		_, fromOK := g.nodes[edge.From]
		_, toOK := g.nodes[edge.To]
		if !fromOK || !toOK {
			delete(g.edges, id)
		}
	}
}

func cloneNode(node *core.MemoryNode) core.MemoryNode {
	out := *node
	out.Relationships = append([]string(nil), node.Relationships...)
	out.Metadata.Tags = append([]string(nil), node.Metadata.Tags...)
	return out
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
