// Package missioncontrol implements spec.md §6's SQLite task database and
// §4.10/§4.11's task-creation-from-incidents and maintenance routines.
//
// Schema migrations are grounded on the teacher's cmd/migrate.go
// (golang-migrate driven, file-based migrations) adapted from Postgres to
// the embedded, pure-Go modernc.org/sqlite driver the spec calls for —
// the teacher never retrieved a SQLite-backed store, so the WAL pragmas
// and single-cached-handle pattern are this package's own translation of
// spec.md §5's "shared resource policy" into sqlite-specific settings.
package missioncontrol

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB wraps a cached *sql.DB handle for one mission-control SQLite file.
type DB struct {
	path string
	conn *sql.DB
	mu   sync.Mutex
}

// Open opens (creating if absent) the mission-control database at path,
// sets WAL/synchronous/busy_timeout pragmas per spec.md §5, and applies
// pending schema migrations.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mission-control db: %w", err)
	}
	conn.SetMaxOpenConns(1) // single cached handle, matching spec.md §5

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	db := &DB{path: path, conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) migrate() error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	target, err := sqlite3.WithInstance(d.conn, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("attach migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", target)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn exposes the underlying handle for callers building their own
// prepared statements (task creation, rollup, prune all use this).
func (d *DB) Conn() *sql.DB {
	return d.conn
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func execCtx(ctx context.Context, conn *sql.DB, query string, args ...any) (sql.Result, error) {
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	return stmt.ExecContext(ctx, args...)
}
