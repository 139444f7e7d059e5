package persist

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteDB is a single-file store for local runs and tests.
type SQLiteDB struct {
	SQL *sql.DB
	log *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// migrations.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLiteDB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db, "sqlite3", "migrations/sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store ready", zap.String("path", path))
	return &SQLiteDB{SQL: db, log: log}, nil
}

func (db *SQLiteDB) Close() error {
	return db.SQL.Close()
}
