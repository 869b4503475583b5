// Package domain contains the core entities of the publishing engine:
// tasks, platform selections, post attempts, error logs, platforms, and the
// generated content attached to a task. Entities validate themselves and
// enforce their own state-transition rules; persistence concerns live in the
// store and platform/postgres packages.
package domain
