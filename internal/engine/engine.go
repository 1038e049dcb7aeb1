// Package engine defines the SQL engine driver contract spec.md §6.4 treats
// as an external collaborator — "initialize(dbName) -> ok|err", "exec(sql,
// params?) -> resultString|errorString" — and the only implementation this
// module carries: a real SQLite engine, because the coordination core (the
// subject of this spec) needs something concrete to dispatch to even though
// the SQL dialect and persistence format are explicitly out of scope.
package engine

import "context"

// Engine is the contract the DB worker (internal/dbworker) drives. It must
// be safe to call serially from a single goroutine; it is never called
// concurrently by this module (spec.md §4.5, §5: "the SQL engine is owned
// exclusively by the DB worker").
type Engine interface {
	// Initialize opens or creates the database identified by path.
	Initialize(ctx context.Context, path string) error

	// Exec runs a single SQL statement and returns its JSON-encoded result
	// string, or an error. Multi-statement batching, planning and
	// authorization are the engine's own concern (spec.md non-goals).
	Exec(ctx context.Context, sql string, params []any) (string, error)

	// Close releases the engine's resources.
	Close() error
}
