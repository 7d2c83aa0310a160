package localcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ebenezer-ucz/ebz/internal/remote"
)

func setupCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirror.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestReplaceAndDump(t *testing.T) {
	c, _ := setupCache(t)

	rows := []remote.Row{
		{ID: "s1", Payload: []byte(`{"id":"s1","title":"Ebenezer"}`)},
		{ID: "s2", Payload: []byte(`{"id":"s2","title":"Ubushiku"}`)},
	}
	if err := c.ReplaceTable("songs", rows); err != nil {
		t.Fatalf("Failed to replace table: %v", err)
	}

	got, err := c.Dump("songs")
	if err != nil {
		t.Fatalf("Failed to dump: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(got))
	}
	if got[0].ID != "s1" || string(got[0].Payload) != `{"id":"s1","title":"Ebenezer"}` {
		t.Errorf("Unexpected first row: %+v", got[0])
	}

	// Replacing swaps the whole table, leaving others untouched.
	if err := c.ReplaceTable("members", []remote.Row{
		{ID: "m1", Payload: []byte(`{"id":"m1"}`)},
	}); err != nil {
		t.Fatalf("Failed to replace members: %v", err)
	}
	if err := c.ReplaceTable("songs", []remote.Row{
		{ID: "s3", Payload: []byte(`{"id":"s3"}`)},
	}); err != nil {
		t.Fatalf("Failed to re-replace songs: %v", err)
	}

	got, err = c.Dump("songs")
	if err != nil {
		t.Fatalf("Failed to dump: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s3" {
		t.Errorf("Expected songs replaced with s3 only, got %+v", got)
	}
	members, err := c.Dump("members")
	if err != nil {
		t.Fatalf("Failed to dump members: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("Expected members untouched, got %+v", members)
	}
}

func TestDumpEmptyTable(t *testing.T) {
	c, _ := setupCache(t)
	got, err := c.Dump("nothing_here")
	if err != nil {
		t.Fatalf("Failed to dump: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no rows, got %d", len(got))
	}
}

func TestLastSync(t *testing.T) {
	c, _ := setupCache(t)

	last, err := c.LastSync()
	if err != nil {
		t.Fatalf("Failed to read sync time: %v", err)
	}
	if !last.IsZero() {
		t.Errorf("Expected zero time before first sync, got %v", last)
	}

	now := time.Date(2026, 8, 27, 10, 30, 0, 0, time.UTC)
	if err := c.SetLastSync(now); err != nil {
		t.Fatalf("Failed to set sync time: %v", err)
	}
	last, err = c.LastSync()
	if err != nil {
		t.Fatalf("Failed to read sync time: %v", err)
	}
	if !last.Equal(now) {
		t.Errorf("Expected %v, got %v", now, last)
	}

	// Overwrites rather than appends.
	later := now.Add(time.Hour)
	if err := c.SetLastSync(later); err != nil {
		t.Fatalf("Failed to update sync time: %v", err)
	}
	last, err = c.LastSync()
	if err != nil {
		t.Fatalf("Failed to read sync time: %v", err)
	}
	if !last.Equal(later) {
		t.Errorf("Expected %v, got %v", later, last)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	if err := c.ReplaceTable("songs", []remote.Row{
		{ID: "s1", Payload: []byte(`{"id":"s1"}`)},
	}); err != nil {
		t.Fatalf("Failed to replace table: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Failed to close cache: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Dump("songs")
	if err != nil {
		t.Fatalf("Failed to dump after reopen: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("Expected persisted row, got %+v", got)
	}
}
