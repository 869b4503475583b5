// Package task runs the execution queue: a bounded worker pool that takes
// claimed executions from the dispatch layer, drives them through the
// orchestrator, and requeues them with exponential backoff when persistence
// fails transiently. It also hosts the event handler that turns dispatch
// request events into dispatch calls.
package task
