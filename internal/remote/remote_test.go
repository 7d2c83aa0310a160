package remote

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// setupAdapter opens a file-backed SQLite database in a temp directory and
// wraps it in an adapter. File-backed rather than :memory: so every pooled
// connection sees the same data.
func setupAdapter(t *testing.T) *Adapter {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return New(db, DialectSQLite, log.New(io.Discard, "", 0))
}

func TestFetchAllSchemaMissing(t *testing.T) {
	a := setupAdapter(t)

	_, err := a.FetchAll(context.Background(), "members")
	if err == nil {
		t.Fatal("Expected error for missing table, got nil")
	}
	if !IsSchemaMissing(err) {
		t.Errorf("Expected schema-missing error, got %v", err)
	}

	var sm *SchemaMissingError
	if !errors.As(err, &sm) {
		t.Fatalf("Expected *SchemaMissingError, got %T", err)
	}
	if sm.Table != "members" {
		t.Errorf("Expected table %q in error, got %q", "members", sm.Table)
	}
}

func TestUpsertManySchemaMissing(t *testing.T) {
	a := setupAdapter(t)

	err := a.UpsertMany(context.Background(), "songs", []Row{
		{ID: "s1", Payload: []byte(`{"id":"s1"}`)},
	})
	if !IsSchemaMissing(err) {
		t.Errorf("Expected schema-missing error, got %v", err)
	}
}

func TestUpsertManyEmptyBatch(t *testing.T) {
	a := setupAdapter(t)

	// No table exists, but an empty batch must not touch the store at all.
	if err := a.UpsertMany(context.Background(), "songs", nil); err != nil {
		t.Errorf("Expected nil for empty batch, got %v", err)
	}
}

func TestUpsertAndFetchRoundTrip(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	if err := a.EnsureSchema(ctx, []string{"members"}); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	rows := []Row{
		{ID: "m1", Payload: []byte(`{"id":"m1","name":"Chanda"}`)},
		{ID: "m2", Payload: []byte(`{"id":"m2","name":"Mutale"}`)},
	}
	if err := a.UpsertMany(ctx, "members", rows); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	got, err := a.FetchAll(ctx, "members")
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(got))
	}

	// Upserting the same id again must replace, not duplicate.
	if err := a.UpsertMany(ctx, "members", []Row{
		{ID: "m1", Payload: []byte(`{"id":"m1","name":"Chanda M."}`)},
	}); err != nil {
		t.Fatalf("Failed to upsert update: %v", err)
	}
	got, err = a.FetchAll(ctx, "members")
	if err != nil {
		t.Fatalf("Failed to fetch after update: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rows after conflict update, got %d", len(got))
	}
	found := false
	for _, r := range got {
		if r.ID == "m1" && string(r.Payload) == `{"id":"m1","name":"Chanda M."}` {
			found = true
		}
	}
	if !found {
		t.Error("Expected m1 payload to be replaced by conflict update")
	}
}

func TestDeleteByID(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	if err := a.EnsureSchema(ctx, []string{"songs"}); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	if err := a.UpsertMany(ctx, "songs", []Row{
		{ID: "s1", Payload: []byte(`{"id":"s1"}`)},
		{ID: "s2", Payload: []byte(`{"id":"s2"}`)},
	}); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	a.DeleteByID(ctx, "songs", "s1")

	got, err := a.FetchAll(ctx, "songs")
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s2" {
		t.Errorf("Expected only s2 to remain, got %+v", got)
	}

	// Deleting against a missing table must not panic; the drop is counted.
	a.DeleteByID(ctx, "nonexistent", "x")
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	tables := []string{"members", "songs"}
	if err := a.EnsureSchema(ctx, tables); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	if err := a.EnsureSchema(ctx, tables); err != nil {
		t.Errorf("Expected idempotent schema creation, got %v", err)
	}
}

func TestPlaceholderByDialect(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		n       int
		want    string
	}{
		{"postgres first", DialectPostgres, 1, "$1"},
		{"postgres tenth", DialectPostgres, 10, "$10"},
		{"sqlite", DialectSQLite, 1, "?"},
		{"sqlite later", DialectSQLite, 7, "?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Adapter{dialect: tt.dialect}
			if got := a.placeholder(tt.n); got != tt.want {
				t.Errorf("placeholder(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestSchemaMissingDetection(t *testing.T) {
	pg := &Adapter{dialect: DialectPostgres}
	if !pg.schemaMissing(&pgconn.PgError{Code: "42P01"}) {
		t.Error("Expected undefined_table to be detected as schema missing")
	}
	if pg.schemaMissing(&pgconn.PgError{Code: "23505"}) {
		t.Error("Expected unique_violation not to be schema missing")
	}

	lite := &Adapter{dialect: DialectSQLite}
	if !lite.schemaMissing(errString("sqlite3: SQL logic error: no such table: members")) {
		t.Error("Expected 'no such table' to be detected as schema missing")
	}
	if lite.schemaMissing(errString("database is locked")) {
		t.Error("Expected lock error not to be schema missing")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
