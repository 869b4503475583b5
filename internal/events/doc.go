// Package events decouples the API layer from the dispatch machinery.
//
// The API emits a DispatchRequestEvent when a caller asks for a task to be
// published; the dispatch handler (registered at startup) claims and enqueues
// the execution. The API never imports the dispatcher directly, which keeps
// the dependency graph acyclic.
package events
