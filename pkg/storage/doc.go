// Package storage provides durable persistence for Flowdeck's resource
// rows: users, groups, projects and flows.
//
// Each store is a thin typed layer over database/sql with no business
// logic. Lookups that miss return ErrNotFound; permission decisions are
// made one layer up, in pkg/access and pkg/lifecycle.
//
// Stores bind to a DBTX, which is satisfied by both *sql.DB and
// *sql.Tx, so the lifecycle coordinator can rebind a store into an open
// transaction with WithTx and keep multi-row writes atomic.
package storage
