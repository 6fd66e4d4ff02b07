package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// NewSQLXSQLiteDB opens the SQLite database at path via sqlx.
// Foreign-key enforcement is off by default in SQLite and must be switched
// on per connection for cascade deletes to work; the _pragma DSN parameter
// applies it to every connection the pool hands out.
func NewSQLXSQLiteDB(path string) (*sqlx.DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?%s", url.PathEscape(path),
		"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return db, nil
}
