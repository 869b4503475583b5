// Package service contains the publishing engine's use cases: claiming tasks
// for execution (dispatch), executing them against platform adapters
// (orchestrator), and scanning for due scheduled tasks (scheduler).
//
// Services coordinate domain entities and store interfaces inside
// transactional boundaries; they never touch infrastructure implementations
// directly. The API layer maps the sentinel errors defined here to HTTP
// status codes.
package service
