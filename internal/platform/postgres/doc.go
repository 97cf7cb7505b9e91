// Package postgres provides the PostgreSQL implementation of store.JobStore
// together with the embedded goose migrations that create its schema.
//
// Connections are opened through the pgx database/sql driver. Store methods
// accept a store.DBTX so they run unchanged inside a transaction.
package postgres
