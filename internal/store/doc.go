// Package store defines interfaces for job persistence. Implementations live
// in internal/job (in-memory) and internal/platform/postgres.
package store
