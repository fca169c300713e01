// Package agent contains the shared lifecycle base embedded by concrete agent
// implementations. The package focuses on three concerns:
//
//  1. The per-agent runtime state machine
//     (uninitialized -> initialized -> shutting-down -> shut-down)
//  2. Task bookkeeping with rolling success-rate and duration metrics
//  3. A per-agent broadcast event bus for status, notification and error
//     messages
//
// Design principles:
//   - Minimal hidden global state: explicit wiring via constructor options
//   - Uniformity: the execution engine treats every agent identically through
//     the core.Agent contract; BaseAgent supplies everything but the
//     capability check and the work itself
//   - Observability: every lifecycle and task transition emits a bus message
//
// Concrete agents embed BaseAgent and implement CanExecute plus Execute. The
// per-agent business logic (what to build, how to classify a task) stays out
// of this package.
package agent
