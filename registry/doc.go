// Package registry implements the agent registry and capability index. It
// maps agent identifiers to executable handles and to flattened
// (domain, action, priority) tuples built from each agent's declared
// capabilities. Matching is routing only: the registry never inspects agent
// internals and never consults capabilities during execution.
package registry
