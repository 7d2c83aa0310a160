// Package localcache keeps a local SQLite mirror of the last successfully
// pushed collections.
//
// The mirror is written after every sync push and read by the status and
// export commands when the remote store is unreachable. It is a convenience
// snapshot, never an authority: the running session trusts only its
// in-memory state, and bootstrap reads only the remote store.
package localcache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ebenezer-ucz/ebz/internal/remote"
)

// Cache wraps the mirror database.
type Cache struct {
	conn *sql.DB
	path string
}

// Open creates or opens the mirror database at path, with WAL enabled for
// concurrent readers.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	c := &Cache{conn: conn, path: path}
	if err := c.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Close checkpoints and closes the mirror.
func (c *Cache) Close() error {
	if c.conn == nil {
		return nil
	}
	if _, err := c.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint cache WAL: %v\n", err)
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Cache) initSchema() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS mirror (
		tbl     TEXT NOT NULL,
		id      TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (tbl, id)
	);
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := c.conn.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}
	return nil
}

// ReplaceTable swaps the mirrored rows for one table in a single
// transaction.
func (c *Cache) ReplaceTable(table string, rows []remote.Row) error {
	tx, err := c.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin mirror transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM mirror WHERE tbl = ?", table); err != nil {
		return fmt.Errorf("failed to clear mirror table %s: %w", table, err)
	}
	for _, r := range rows {
		if _, err := tx.Exec(
			"INSERT INTO mirror (tbl, id, payload) VALUES (?, ?, ?)",
			table, r.ID, string(r.Payload)); err != nil {
			return fmt.Errorf("failed to mirror row %s/%s: %w", table, r.ID, err)
		}
	}
	return tx.Commit()
}

// Dump returns the mirrored rows for one table.
func (c *Cache) Dump(table string) ([]remote.Row, error) {
	rows, err := c.conn.Query("SELECT id, payload FROM mirror WHERE tbl = ? ORDER BY rowid", table)
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror table %s: %w", table, err)
	}
	defer rows.Close()

	var out []remote.Row
	for rows.Next() {
		var r remote.Row
		var payload string
		if err := rows.Scan(&r.ID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan mirror row: %w", err)
		}
		r.Payload = []byte(payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetLastSync records the time of the most recent successful push.
func (c *Cache) SetLastSync(t time.Time) error {
	_, err := c.conn.Exec(
		"INSERT INTO meta (key, value) VALUES ('last_sync', ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		t.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record sync time: %w", err)
	}
	return nil
}

// LastSync returns the time of the most recent successful push, or the zero
// time when the mirror has never been written.
func (c *Cache) LastSync() (time.Time, error) {
	var value string
	err := c.conn.QueryRow("SELECT value FROM meta WHERE key = 'last_sync'").Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync time: %w", err)
	}
	return time.Parse(time.RFC3339, value)
}
