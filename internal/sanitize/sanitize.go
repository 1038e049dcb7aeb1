// Package sanitize derives filesystem- and bus-safe identifiers from a
// database name, the sole external collaborator spec.md §6.4 names for this
// purpose.
package sanitize

import "strings"

// Name trims name and replaces every rune outside [A-Za-z0-9._-] with '_'.
// An empty result (including an originally-empty input) becomes "db".
func Name(name string) string {
	trimmed := strings.TrimSpace(name)

	var b strings.Builder
	b.Grow(len(trimmed))

	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out == "" {
		return "db"
	}

	return out
}

// Filename appends the ".db" suffix to the sanitized name, unless it is
// already present.
func Filename(name string) string {
	sanitized := Name(name)
	if strings.HasSuffix(sanitized, ".db") {
		return sanitized
	}

	return sanitized + ".db"
}

// BusName derives the deterministic broadcast-bus name for a database, per
// spec.md §6.2.
func BusName(dbName string) string {
	return "sqlite-queries-" + Name(dbName)
}

// LockName derives the deterministic exclusive-lock name for a database,
// per spec.md §4.1.
func LockName(dbName string) string {
	return "sqlite-database-" + Name(dbName)
}
