// Package store defines the persistence interfaces of the publishing engine
// and the transaction helper shared by all implementations. The concrete
// PostgreSQL implementations live in internal/platform/postgres; services
// depend only on the interfaces defined here.
//
// Attempt and error-log stores are append-only by contract: rows are created,
// never updated or deleted. Task and selection rows are created by the
// external scheduling API and mutated exclusively by the execution
// orchestrator through these interfaces.
package store
