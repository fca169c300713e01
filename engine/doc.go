// Package engine implements the execution engine of CoordMesh: it drives one
// or more agent calls and guarantees every call is recorded in the memory
// graph, regardless of outcome.
//
// Three execution modes are provided:
//
//   - ExecuteWorkflow: single-step execution of one named agent
//   - ExecuteSequentialWorkflow: dependency-ordered sequential execution with
//     fail-fast dependency checking and result folding between steps
//   - ExecuteWorkflowWithRecovery: retry with exponential backoff and
//     capability-matched fallback agent selection, classified by error kind
//
// Error handling policy: the engine never lets an agent-thrown error or panic
// escape to its caller. Every failure is converted into a structured response
// carrying a machine-readable error kind, a human-readable message and a
// diagnostic details bag.
//
// Concurrency model: the engine itself holds no workflow state beyond the run
// registry; many independent call chains may be in flight simultaneously.
// Within one sequential workflow, steps run strictly one at a time.
// Cancellation is cooperative: cancelling a run stops future step dispatch
// but cannot interrupt an agent call already in progress.
package engine
