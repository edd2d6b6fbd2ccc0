package persistence

import (
	"database/sql"

	"go.chromium.org/luci/common/errors"

	// modernc.org/sqlite is a cgo-free driver, suitable for tests and
	// single-host deployments where the extra MySQL process isn't
	// warranted.
	_ "modernc.org/sqlite"
)

// NewSQLiteBridge opens (creating if absent) a SQLite database at path and
// applies the core's schema. path may be ":memory:" for tests.
func NewSQLiteBridge(path string) (*SQLBridge, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Annotate(err, "opening sqlite database %s", path).Err()
	}
	// SQLite serializes writers at the file level; a single connection
	// avoids SQLITE_BUSY from concurrent writers stepping on each other.
	db.SetMaxOpenConns(1)
	return newSQLBridge(db, schemaSQLite, dialectSQLite)
}
