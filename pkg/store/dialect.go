// Package store implements the relational persistence layer behind
// threads, turns, messages, checkpoints, tool invocations, and the audit
// log (spec.md §3, §6), shared by pkg/session, pkg/checkpoint, and
// pkg/audit. One *Store runs against postgres, mysql, or sqlite through
// database/sql, following the same dialect-switch pattern the teacher uses
// for its rate-limit store: queries are written with `?` placeholders and
// rewritten per-dialect at prepare time.
package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the SQL backend a Store talks to.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite3"
)

// rebind rewrites a query written with `?` placeholders into the dialect's
// native placeholder syntax: Postgres wants `$1, $2, ...`, MySQL and SQLite
// both accept `?` as-is.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// autoIncrementPrimaryKey returns the dialect-specific column definition for
// a bigint auto-increment primary key, used by the schema bootstrap below.
func autoIncrementPrimaryKey(dialect Dialect) string {
	switch dialect {
	case DialectPostgres:
		return "BIGSERIAL PRIMARY KEY"
	case DialectMySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default: // sqlite3
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// jsonColumnType returns the dialect's preferred type for an opaque
// JSON-serialized blob column (state snapshots, tool args/results).
func jsonColumnType(dialect Dialect) string {
	switch dialect {
	case DialectPostgres:
		return "JSONB"
	case DialectMySQL:
		return "JSON"
	default:
		return "TEXT"
	}
}

func unknownDialectError(d Dialect) error {
	return fmt.Errorf("store: unknown dialect %q (want postgres, mysql, or sqlite3)", d)
}
