// Package api provides the HTTP surface of the publishing engine: handlers
// for dispatching tasks and inspecting their attempt and error history,
// plus shared error mapping that keeps internal details out of responses.
package api
