// Package postgres provides the PostgreSQL implementations of the store
// interfaces, built on database/sql with the pgx stdlib driver. All
// implementations accept a store.DBTX so they can run against either a
// connection pool or an open transaction.
package postgres
