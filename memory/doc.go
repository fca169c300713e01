// Package memory contains the graph-structured memory store. The graph
// primitives (MemoryNode, MemoryEdge, WorkflowStep) and the MemoryGraph
// recording contract reside in the core package; depend on core.MemoryGraph in
// engine-facing code and select the concrete Graph at wiring time.
//
// The store is append-mostly: nodes and edges are created by the graph's own
// API and never mutated in place, except for the silent repair pass that
// prunes dangling relationship references and orphaned edges after every
// mutation. The store repairs instead of rejecting so analytics never crash
// on partial data.
//
// Pattern recognition (IdentifyPatterns) is a heuristic built on a pluggable
// TechnologyClassifier; swap the classifier without touching the
// similarity/ranking algorithm.
package memory
