// Package module defines what a pipeline module is and drives a module
// instance through its lifecycle.
//
// A module is described by a Descriptor: its name, the options it accepts,
// the shared functions it publishes and the ones it expects other modules to
// provide. Descriptors are collected in a Catalog when the process starts.
//
// For every pipeline attempt the runner turns descriptors into Instances and
// moves each one through these states, strictly in order:
//
//	Constructed -> OptionsLoaded -> ArgsParsed -> SanityChecked ->
//	RequiredOptionsChecked -> Executing -> Executed
//
// Destroyed can be reached from any state and is final. Option values are
// layered: compiled-in defaults, then the persisted configuration of the
// module, then its command-line arguments.
package module
