// Package registry provides the shared-function registry that lets pipeline
// modules call each other by name without compile-time coupling.
//
// A module publishes a capability ("provision", "evaluate_rules") once its
// execute step has finished; any module running later in the same pipeline
// attempt can then resolve and call it. The registry maps every capability
// name to exactly one owner at a time: registering a name that is already
// taken silently replaces the previous owner, and removing a name that is not
// registered is a no-op.
//
// Capabilities can be used untyped through Call, which dispatches with
// reflection, or typed through Capability and Lookup, which give callers a
// function value of a known signature.
//
// A Registry is owned by one pipeline attempt. It is never a process-wide
// singleton; the runner creates a fresh one for every attempt.
package registry
