// Package remote provides the row-store adapter for the Ebenezer backend.
//
// The remote store is a hosted relational table service holding one table per
// record collection, each row keyed by a client-assigned string id with the
// full record as a JSON payload. Two backends are supported through
// database/sql: Postgres (Supabase-style hosting, via pgx) and libSQL
// (Turso, embedded or remote).
//
// Every operation is best effort: failures are logged, counted, and
// swallowed so a flaky store never crashes the application. The one
// exception is the "relation does not exist" condition, which is translated
// into a distinguished *SchemaMissingError so the bootstrap loader can put
// the whole application into setup mode.
package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx as a database/sql driver
)

// Dialect identifies the SQL flavor of the connected store.
type Dialect int

const (
	// DialectPostgres targets a hosted Postgres service.
	DialectPostgres Dialect = iota
	// DialectSQLite targets libSQL/SQLite (Turso or an embedded file).
	DialectSQLite
)

// Row is one stored record: its primary key and the JSON-encoded record.
type Row struct {
	ID      string
	Payload []byte
}

// SchemaMissingError reports that a table does not exist in the remote
// store. It is fatal for the session at bootstrap time and ignored during
// later sync pushes.
type SchemaMissingError struct {
	Table string
}

func (e *SchemaMissingError) Error() string {
	return fmt.Sprintf("remote schema missing: table %q does not exist", e.Table)
}

// IsSchemaMissing reports whether err wraps a SchemaMissingError.
func IsSchemaMissing(err error) bool {
	var sm *SchemaMissingError
	return errors.As(err, &sm)
}

// Adapter wraps a database/sql connection with the fetch/upsert/delete
// contract used by every collection.
type Adapter struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

// Open connects to the store described by dsn. The driver is chosen from
// the DSN scheme: postgres:// selects pgx, anything else selects libsql
// (which accepts libsql://, file: and plain paths).
func Open(dsn string, logger *log.Logger) (*Adapter, error) {
	driver, dialect := "libsql", DialectSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, dialect = "pgx", DialectPostgres
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach remote store: %w", err)
	}
	return New(db, dialect, logger), nil
}

// New wraps an existing connection. Tests use this with an in-memory SQLite
// database.
func New(db *sql.DB, dialect Dialect, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Adapter{db: db, dialect: dialect, logger: logger}
}

// Close closes the underlying connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// DB exposes the underlying connection for integration hooks.
func (a *Adapter) DB() *sql.DB { return a.db }

// FetchAll returns every row in table. A missing table yields a
// *SchemaMissingError; any other failure is logged and yields an empty
// result so one unavailable table does not break loading the others.
func (a *Adapter) FetchAll(ctx context.Context, table string) ([]Row, error) {
	query := fmt.Sprintf("SELECT id, payload FROM %s", table)
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		if a.schemaMissing(err) {
			return nil, &SchemaMissingError{Table: table}
		}
		a.logger.Printf("fetch failed [%s]: %v", table, err)
		fetchErrors.WithLabelValues(table).Inc()
		return nil, nil
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Payload); err != nil {
			a.logger.Printf("fetch scan failed [%s]: %v", table, err)
			fetchErrors.WithLabelValues(table).Inc()
			return nil, nil
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		a.logger.Printf("fetch failed [%s]: %v", table, err)
		fetchErrors.WithLabelValues(table).Inc()
		return nil, nil
	}
	return out, nil
}

// UpsertMany inserts or updates every row by primary key in one statement.
// An empty batch is a no-op. A missing table propagates as
// *SchemaMissingError (callers during sync ignore it; bootstrap already
// handled the setup case); any other failure is logged, counted, and
// dropped.
func (a *Adapter) UpsertMany(ctx context.Context, table string, records []Row) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(records)*2)
	fmt.Fprintf(&sb, "INSERT INTO %s (id, payload) VALUES ", table)
	for i, r := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "(%s, %s)", a.placeholder(i*2+1), a.placeholder(i*2+2))
		args = append(args, r.ID, string(r.Payload))
	}
	sb.WriteString(" ON CONFLICT (id) DO UPDATE SET payload = excluded.payload")

	if _, err := a.db.ExecContext(ctx, sb.String(), args...); err != nil {
		if a.schemaMissing(err) {
			return &SchemaMissingError{Table: table}
		}
		a.logger.Printf("upsert dropped [%s] (%d records): %v", table, len(records), err)
		droppedWrites.WithLabelValues(table, "upsert").Inc()
		return nil
	}
	return nil
}

// DeleteByID removes the row with the given id. Failures are logged,
// counted, and swallowed.
func (a *Adapter) DeleteByID(ctx context.Context, table, id string) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", table, a.placeholder(1))
	if _, err := a.db.ExecContext(ctx, query, id); err != nil {
		a.logger.Printf("delete dropped [%s] id=%s: %v", table, id, err)
		droppedWrites.WithLabelValues(table, "delete").Inc()
	}
}

// EnsureSchema creates the table for every record collection if absent.
// Used by `ebz setup` to initialize a fresh deployment; idempotent.
func (a *Adapter) EnsureSchema(ctx context.Context, tables []string) error {
	for _, table := range tables {
		ddl := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, payload TEXT NOT NULL)", table)
		if _, err := a.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}
	return nil
}

func (a *Adapter) placeholder(n int) string {
	if a.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// schemaMissing reports whether err is the backend's "relation does not
// exist" condition.
func (a *Adapter) schemaMissing(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// SQLSTATE 42P01: undefined_table
		return pgErr.Code == "42P01"
	}
	// libSQL/SQLite reports missing tables as a plain message.
	return strings.Contains(err.Error(), "no such table")
}
