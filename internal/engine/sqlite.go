package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is an Engine backed by github.com/mattn/go-sqlite3, the same
// driver lxd/db uses for its node-local database. Only one statement runs
// at a time (internal/dbworker already enforces this at the queue level;
// the mutex here is a second, cheap guarantee for any other caller).
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite returns an unopened SQLite engine; call Initialize before Exec.
func NewSQLite() *SQLite {
	return &SQLite{}
}

// Initialize opens the database file at path, creating it if absent.
func (e *SQLite) Initialize(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return errors.Wrapf(err, "engine: open %s", path)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Wrapf(err, "engine: ping %s", path)
	}

	db.SetMaxOpenConns(1)
	e.db = db

	return nil
}

// Exec runs sql with the given positional parameters and returns a
// JSON-encoded result string: a row-object array for statements that
// produce rows, or a {"rowsAffected", "lastInsertId"} object otherwise.
func (e *SQLite) Exec(ctx context.Context, query string, params []any) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return "", errors.New("engine: not initialized")
	}

	if looksLikeSelect(query) {
		return e.execQuery(ctx, query, params)
	}

	return e.execStatement(ctx, query, params)
}

func (e *SQLite) execQuery(ctx context.Context, query string, params []any) (string, error) {
	rows, err := e.db.QueryContext(ctx, query, params...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		scanTargets := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return "", err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return "", err
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

func (e *SQLite) execStatement(ctx context.Context, query string, params []any) (string, error) {
	res, err := e.db.ExecContext(ctx, query, params...)
	if err != nil {
		return "", err
	}

	rowsAffected, _ := res.RowsAffected()
	lastInsertID, _ := res.LastInsertId()

	encoded, err := json.Marshal(map[string]int64{
		"rowsAffected": rowsAffected,
		"lastInsertId": lastInsertID,
	})
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// Close closes the underlying database handle.
func (e *SQLite) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return nil
	}

	err := e.db.Close()
	e.db = nil

	return err
}

func looksLikeSelect(query string) bool {
	trimmed := strings.TrimSpace(query)
	return len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "select") ||
		strings.HasPrefix(strings.ToUpper(trimmed), "PRAGMA") ||
		strings.HasPrefix(strings.ToUpper(trimmed), "WITH")
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}
