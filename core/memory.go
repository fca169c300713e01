package core

import "time"

// NodeKind classifies memory graph nodes.
type NodeKind string

const (
	// NodeKindWorkflow records one executed workflow step.
	NodeKindWorkflow NodeKind = "workflow"
	// NodeKindContext records a shared context bag or registration event.
	NodeKindContext NodeKind = "context"
	// NodeKindArtifact records a produced artifact reference.
	NodeKindArtifact NodeKind = "artifact"
	// NodeKindPattern records a derived similarity pattern.
	NodeKindPattern NodeKind = "pattern"
	// NodeKindDecision records an explicit coordination decision.
	NodeKindDecision NodeKind = "decision"
)

// EdgeKind classifies memory graph edges.
type EdgeKind string

const (
	// EdgeKindDependency links a step to a prerequisite.
	EdgeKindDependency EdgeKind = "dependency"
	// EdgeKindSequence links consecutive steps within one workflow.
	EdgeKindSequence EdgeKind = "sequence"
	// EdgeKindReference links a node to supporting material.
	EdgeKindReference EdgeKind = "reference"
	// EdgeKindSimilarity links nodes judged alike by pattern analysis.
	EdgeKindSimilarity EdgeKind = "similarity"
	// EdgeKindCausation links a cause node to its effect.
	EdgeKindCausation EdgeKind = "causation"
)

// NodeMetadata carries optional routing and search attributes of a node.
type NodeMetadata struct {
	Agent    string   `json:"agent,omitempty"`
	Phase    string   `json:"phase,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// MemoryNode is a typed graph node. Relationships is the ordered list of
// outgoing node ids; duplicates are allowed (a bidirectional edge recorded
// twice, repeated references). Every id in Relationships must resolve to an
// existing node whenever integrity is checked; the graph prunes dangling
// references instead of tolerating them.
type MemoryNode struct {
	ID            string       `json:"id"`
	Kind          NodeKind     `json:"kind"`
	Payload       any          `json:"payload,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	Relationships []string     `json:"relationships,omitempty"`
	Metadata      NodeMetadata `json:"metadata"`
}

// EdgeMetadata carries optional qualitative attributes of an edge.
type EdgeMetadata struct {
	Strength      float64 `json:"strength,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Bidirectional bool    `json:"bidirectional,omitempty"`
}

// MemoryEdge is a weighted, typed link between two existing nodes. Creation
// fails when either endpoint is absent. A bidirectional edge appends the link
// to both endpoints' relationship lists; otherwise only to From's.
type MemoryEdge struct {
	ID       string       `json:"id"`
	From     string       `json:"from"`
	To       string       `json:"to"`
	Kind     EdgeKind     `json:"kind"`
	Weight   float64      `json:"weight"`
	Metadata EdgeMetadata `json:"metadata"`
}

// WorkflowStep is one recorded execution within a workflow. Steps accumulate
// per workflow id in arrival order; consecutive steps are linked by a
// sequence edge in the graph.
type WorkflowStep struct {
	Phase      string    `json:"phase"`
	Agent      string    `json:"agent"`
	Input      any       `json:"input,omitempty"`
	Output     any       `json:"output,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// ContextEntry is a named bag of shared key/value data agents use to exchange
// state outside the request/response path.
type ContextEntry struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SystemState is a coarse health report over the graph. Integrity is the
// fraction of nodes with at least one outgoing relationship (1.0 when empty);
// Consistency is true iff every edge endpoint and relationship reference
// resolves to an existing node.
type SystemState struct {
	Integrity   float64 `json:"integrity"`
	Consistency bool    `json:"consistency"`
	NodeCount   int     `json:"node_count"`
	EdgeCount   int     `json:"edge_count"`
}

// GraphSnapshot is the serializable export of full graph state.
type GraphSnapshot struct {
	Nodes    []MemoryNode   `json:"nodes"`
	Edges    []MemoryEdge   `json:"edges"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MemoryGraph is the recording surface the engine depends on. The concrete
// store lives in the memory package; the interface keeps the engine testable
// and the packages cycle-free, matching the store contracts pattern used for
// AgentRegistry.
type MemoryGraph interface {
	// RecordWorkflowStep appends a step under the workflow id, materializes a
	// workflow node for it and links it to the previous step of the same
	// workflow with a sequence edge.
	RecordWorkflowStep(workflowID string, step WorkflowStep) error

	// StoreContext upserts a shared context bag and materializes a context
	// node so the bag participates in traversal and search.
	StoreContext(contextID string, data map[string]any) error

	// GetContext returns the context bag stored under the id.
	GetContext(contextID string) (*ContextEntry, bool)

	// WorkflowSteps returns the ordered steps recorded under the workflow id.
	WorkflowSteps(workflowID string) []WorkflowStep

	// FindNodes returns nodes matching the kind and carrying all given tags.
	FindNodes(kind NodeKind, tags ...string) []MemoryNode

	// SystemState reports integrity, consistency and size counters.
	SystemState() SystemState
}
