// Package mocks provides hand-written test doubles shared across packages:
// a fake clock, an in-memory adapter, and in-memory store implementations.
// Mocks used by a single package live next to that package's tests instead.
package mocks
