package persistence

import (
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.chromium.org/luci/common/errors"
)

// NewMySQLBridge opens a MySQL database using the given DSN (the
// go-sql-driver/mysql format, e.g. "user:pass@tcp(host:3306)/cms?parseTime=true")
// and applies the core's schema. Callers must include parseTime=true so
// DATETIME columns scan into time.Time.
func NewMySQLBridge(dsn string) (*SQLBridge, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Annotate(err, "opening mysql database").Err()
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		return nil, errors.Annotate(err, "pinging mysql database").Err()
	}
	return newSQLBridge(db, schemaMySQL, dialectMySQL)
}
