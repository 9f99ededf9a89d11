// Package db abstracts relational storage behind the small surface the
// submission repository exercises, so the store stays independent of
// the concrete driver.
package db

import "context"

// Querier is the read/write surface shared by the pooled handle and an
// in-flight transaction.
type Querier interface {
	// Query executes a statement returning rows.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// QueryRow executes a statement returning at most one row.
	QueryRow(ctx context.Context, query string, args ...interface{}) Row

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Database is a pooled database handle.
type Database interface {
	Querier

	// Transaction runs fn inside a transaction, committing on nil error
	// and rolling back otherwise.
	Transaction(ctx context.Context, fn func(tx Querier) error) error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases the pool.
	Close() error
}

// Rows iterates a query result set.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is a single-row query result.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result reports the outcome of a write.
type Result interface {
	RowsAffected() (int64, error)
}
