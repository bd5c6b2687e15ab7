// Package provider supplies registry.Provider implementations.
//
// Static serves models registered in process, which is how deployments
// embed their own scorers and how tests inject stubs. Builtin returns a
// Static preloaded with the reference stroke-risk scorer in two versions.
package provider
