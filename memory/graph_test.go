package memory

import (
	"testing"

	"github.com/coordmesh/coordmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time assertion that Graph satisfies the engine-facing contract.
var _ core.MemoryGraph = (*Graph)(nil)

func TestGraph_AddNode_Upsert(t *testing.T) {
	g := NewGraph()

	g.AddNode(core.MemoryNode{ID: "n1", Kind: core.NodeKindDecision, Payload: "first"})
	g.AddNode(core.MemoryNode{ID: "n1", Kind: core.NodeKindDecision, Payload: "second"})

	node, ok := g.GetNode("n1")
	require.True(t, ok)
	assert.Equal(t, "second", node.Payload)
	assert.Equal(t, 1, g.SystemState().NodeCount)
}

func TestGraph_AddEdge_MissingEndpoint(t *testing.T) {
	g := NewGraph()
	g.AddNode(core.MemoryNode{ID: "a", Kind: core.NodeKindContext})

	err := g.AddEdge(core.MemoryEdge{From: "a", To: "missing", Kind: core.EdgeKindReference, Weight: 0.5})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	err = g.AddEdge(core.MemoryEdge{From: "missing", To: "a", Kind: core.EdgeKindReference, Weight: 0.5})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	assert.Equal(t, 0, g.SystemState().EdgeCount)
}

func TestGraph_AddEdge_RelationshipLinks(t *testing.T) {
	g := NewGraph()
	g.AddNode(core.MemoryNode{ID: "a", Kind: core.NodeKindContext})
	g.AddNode(core.MemoryNode{ID: "b", Kind: core.NodeKindContext})

	require.NoError(t, g.AddEdge(core.MemoryEdge{From: "a", To: "b", Kind: core.EdgeKindReference, Weight: 1.0}))

	a, _ := g.GetNode("a")
	b, _ := g.GetNode("b")
	assert.Equal(t, []string{"b"}, a.Relationships)
	assert.Empty(t, b.Relationships)
}

func TestGraph_AddEdge_Bidirectional(t *testing.T) {
	g := NewGraph()
	g.AddNode(core.MemoryNode{ID: "a", Kind: core.NodeKindContext})
	g.AddNode(core.MemoryNode{ID: "b", Kind: core.NodeKindContext})

	require.NoError(t, g.AddEdge(core.MemoryEdge{
		From: "a", To: "b", Kind: core.EdgeKindSimilarity, Weight: 0.9,
		Metadata: core.EdgeMetadata{Bidirectional: true},
	}))

	a, _ := g.GetNode("a")
	b, _ := g.GetNode("b")
	assert.Equal(t, []string{"b"}, a.Relationships)
	assert.Equal(t, []string{"a"}, b.Relationships)
}

func TestGraph_RecordWorkflowStep_SequenceLink(t *testing.T) {
	g := NewGraph()

	require.NoError(t, g.RecordWorkflowStep("wf-1", core.WorkflowStep{Phase: "plan", Agent: "planner", Success: true}))
	require.NoError(t, g.RecordWorkflowStep("wf-1", core.WorkflowStep{Phase: "build", Agent: "builder", Success: true}))

	steps := g.WorkflowSteps("wf-1")
	require.Len(t, steps, 2)
	assert.Equal(t, "plan", steps[0].Phase)
	assert.Equal(t, "build", steps[1].Phase)

	snapshot := g.Export()
	var sequences []core.MemoryEdge
	for _, edge := range snapshot.Edges {
		if edge.Kind == core.EdgeKindSequence {
			sequences = append(sequences, edge)
		}
	}
	require.Len(t, sequences, 1)
	assert.Equal(t, 1.0, sequences[0].Weight)

	from, ok := g.GetNode(sequences[0].From)
	require.True(t, ok)
	to, ok := g.GetNode(sequences[0].To)
	require.True(t, ok)
	assert.Equal(t, "plan", from.Metadata.Phase)
	assert.Equal(t, "build", to.Metadata.Phase)
}

func TestGraph_RecordWorkflowStep_RepeatedPhaseUnique(t *testing.T) {
	g := NewGraph()

	require.NoError(t, g.RecordWorkflowStep("wf-1", core.WorkflowStep{Phase: "build", Agent: "builder", Success: true}))
	require.NoError(t, g.RecordWorkflowStep("wf-1", core.WorkflowStep{Phase: "build", Agent: "builder", Success: false}))

	nodes := g.FindNodes(core.NodeKindWorkflow, "wf-1")
	assert.Len(t, nodes, 2)
}

func TestGraph_RemoveNode_RepairsDanglingReferences(t *testing.T) {
	g := NewGraph()
	g.AddNode(core.MemoryNode{ID: "a", Kind: core.NodeKindContext})
	g.AddNode(core.MemoryNode{ID: "b", Kind: core.NodeKindContext})
	require.NoError(t, g.AddEdge(core.MemoryEdge{From: "a", To: "b", Kind: core.EdgeKindDependency, Weight: 1.0}))

	g.RemoveNode("b")

	state := g.SystemState()
	assert.True(t, state.Consistency)
	assert.Equal(t, 1, state.NodeCount)
	assert.Equal(t, 0, state.EdgeCount)

	a, _ := g.GetNode("a")
	assert.Empty(t, a.Relationships)
}

func TestGraph_StoreContext_RoundTrip(t *testing.T) {
	g := NewGraph()

	require.NoError(t, g.StoreContext("proj-1", map[string]any{"framework": "react", "language": "typescript"}))

	entry, ok := g.GetContext("proj-1")
	require.True(t, ok)
	assert.Equal(t, "react", entry.Data["framework"])

	// Storing materializes a shared context node for graph traversal.
	nodes := g.FindNodes(core.NodeKindContext, "context", "shared")
	require.Len(t, nodes, 1)

	// Upsert replaces the bag.
	require.NoError(t, g.StoreContext("proj-1", map[string]any{"framework": "vue"}))
	entry, _ = g.GetContext("proj-1")
	assert.Equal(t, "vue", entry.Data["framework"])
	_, hasLanguage := entry.Data["language"]
	assert.False(t, hasLanguage)
}

func TestGraph_SystemState_Integrity(t *testing.T) {
	g := NewGraph()
	assert.Equal(t, 1.0, g.SystemState().Integrity)

	g.AddNode(core.MemoryNode{ID: "a", Kind: core.NodeKindContext})
	g.AddNode(core.MemoryNode{ID: "b", Kind: core.NodeKindContext})
	require.NoError(t, g.AddEdge(core.MemoryEdge{From: "a", To: "b", Kind: core.EdgeKindReference, Weight: 1.0}))

	state := g.SystemState()
	assert.InDelta(t, 0.5, state.Integrity, 1e-9)
	assert.True(t, state.Consistency)
}

func TestGraph_Neighbors(t *testing.T) {
	g := NewGraph()
	g.AddNode(core.MemoryNode{ID: "a", Kind: core.NodeKindContext})
	g.AddNode(core.MemoryNode{ID: "b", Kind: core.NodeKindContext})
	g.AddNode(core.MemoryNode{ID: "c", Kind: core.NodeKindContext})
	require.NoError(t, g.AddEdge(core.MemoryEdge{From: "a", To: "b", Kind: core.EdgeKindReference, Weight: 1.0}))
	require.NoError(t, g.AddEdge(core.MemoryEdge{From: "a", To: "c", Kind: core.EdgeKindReference, Weight: 1.0}))

	neighbors := g.Neighbors("a")
	require.Len(t, neighbors, 2)
	assert.Equal(t, "b", neighbors[0].ID)
	assert.Equal(t, "c", neighbors[1].ID)

	assert.Nil(t, g.Neighbors("missing"))
}

func TestGraph_ExportImport_RoundTrip(t *testing.T) {
	g := NewGraph()
	g.AddNode(core.MemoryNode{ID: "a", Kind: core.NodeKindContext})
	g.AddNode(core.MemoryNode{ID: "b", Kind: core.NodeKindContext})
	require.NoError(t, g.AddEdge(core.MemoryEdge{From: "a", To: "b", Kind: core.EdgeKindCausation, Weight: 0.8}))

	snapshot := g.Export()

	restored := NewGraph()
	restored.Import(snapshot)

	state := restored.SystemState()
	assert.Equal(t, 2, state.NodeCount)
	assert.Equal(t, 1, state.EdgeCount)
	assert.True(t, state.Consistency)
}

func TestGraph_Import_RepairsDanglingState(t *testing.T) {
	g := NewGraph()
	g.Import(core.GraphSnapshot{
		Nodes: []core.MemoryNode{
			{ID: "a", Kind: core.NodeKindContext, Relationships: []string{"gone", "b"}},
			{ID: "b", Kind: core.NodeKindContext},
		},
		Edges: []core.MemoryEdge{
			{ID: "e1", From: "a", To: "b", Kind: core.EdgeKindReference, Weight: 1.0},
			{ID: "e2", From: "a", To: "gone", Kind: core.EdgeKindReference, Weight: 1.0},
		},
	})

	state := g.SystemState()
	assert.True(t, state.Consistency)
	assert.Equal(t, 2, state.NodeCount)
	assert.Equal(t, 1, state.EdgeCount)

	a, _ := g.GetNode("a")
	assert.Equal(t, []string{"b"}, a.Relationships)
}

func TestGraph_WorkflowEviction(t *testing.T) {
	g := NewGraph(func(o *Options) { o.MaxWorkflows = 2 })

	require.NoError(t, g.RecordWorkflowStep("wf-1", core.WorkflowStep{Phase: "plan", Agent: "planner", Success: true}))
	require.NoError(t, g.RecordWorkflowStep("wf-2", core.WorkflowStep{Phase: "plan", Agent: "planner", Success: true}))
	require.NoError(t, g.RecordWorkflowStep("wf-3", core.WorkflowStep{Phase: "plan", Agent: "planner", Success: true}))

	assert.Empty(t, g.WorkflowSteps("wf-1"))
	assert.Len(t, g.WorkflowSteps("wf-2"), 1)
	assert.Len(t, g.WorkflowSteps("wf-3"), 1)
	assert.Equal(t, []string{"wf-2", "wf-3"}, g.WorkflowIDs())
}
