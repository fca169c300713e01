// Package core provides the foundational domain types and interfaces used by
// CoordMesh. It defines the core abstractions for:
//
//   - Agents (capability-declaring units of autonomous work)
//   - Requests / Responses (the narrow execution contract between the
//     coordination engine and agent implementations)
//   - Capabilities (immutable routing tuples used for matching, never execution)
//   - Memory graph primitives (typed nodes, weighted edges, workflow steps,
//     shared context entries)
//   - Agent lifecycle messages (the per-agent event bus payload)
//   - The string-tagged error taxonomy that crosses serialization boundaries
//
// The package intentionally keeps implementation concerns (graph storage,
// engine orchestration, concrete agents) out of scope, exposing small
// interfaces so the registry, memory and engine packages can evolve without
// cyclic dependencies.
package core
