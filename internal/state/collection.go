package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ebenezer-ucz/ebz/internal/remote"
)

// Collection is one insertion-ordered record list. New records are
// prepended so the most recent entry displays first; no downstream
// computation depends on order.
type Collection[T Record] struct {
	st    *State
	table string
	items []T
}

// Table returns the remote table this collection mirrors to.
func (c *Collection[T]) Table() string { return c.table }

// Create prepends a fully-formed record. The caller assigns the id; an
// empty or duplicate id is rejected. No remote call is made here; the sync
// scheduler picks the change up on the next quiet period.
func (c *Collection[T]) Create(rec T) error {
	id := rec.RecordID()
	if id == "" {
		return fmt.Errorf("%s: record id must not be empty", c.table)
	}
	c.st.mu.Lock()
	for _, it := range c.items {
		if it.RecordID() == id {
			c.st.mu.Unlock()
			return fmt.Errorf("%s: duplicate record id %q", c.table, id)
		}
	}
	c.items = append([]T{rec}, c.items...)
	c.st.markDirtyLocked(c.table)
	c.st.mu.Unlock()

	c.st.signal()
	c.st.emit(c.table, "created", id)
	return nil
}

// Update replaces the record with the matching id in place.
func (c *Collection[T]) Update(rec T) error {
	id := rec.RecordID()
	c.st.mu.Lock()
	found := false
	for i, it := range c.items {
		if it.RecordID() == id {
			c.items[i] = rec
			found = true
			break
		}
	}
	if !found {
		c.st.mu.Unlock()
		return fmt.Errorf("%s: update %q: %w", c.table, id, ErrNotFound)
	}
	c.st.markDirtyLocked(c.table)
	c.st.mu.Unlock()

	c.st.signal()
	c.st.emit(c.table, "updated", id)
	return nil
}

// Delete removes the record locally and issues the remote delete
// immediately, not debounced, unless the session is degraded, in which
// case only the local removal happens. Returns false when the id was not
// present.
func (c *Collection[T]) Delete(ctx context.Context, id string) bool {
	c.st.mu.Lock()
	kept := c.items[:0]
	found := false
	for _, it := range c.items {
		if it.RecordID() == id {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		c.st.mu.Unlock()
		return false
	}
	c.items = kept
	c.st.markDirtyLocked(c.table)
	degraded := c.st.degraded
	deleter := c.st.deleter
	c.st.mu.Unlock()

	if !degraded && deleter != nil {
		deleter.DeleteByID(ctx, c.table, id)
	}
	c.st.signal()
	c.st.emit(c.table, "deleted", id)
	return true
}

// Get returns the record with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	for _, it := range c.items {
		if it.RecordID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// List returns a copy of the collection in display order.
func (c *Collection[T]) List() []T {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	return len(c.items)
}

// Replace swaps the whole collection, used by the bootstrap loader when a
// fetch returned data. It does not touch the dirty set: freshly loaded data
// must not be echoed back to the store.
func (c *Collection[T]) Replace(items []T) {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	c.items = make([]T, len(items))
	copy(c.items, items)
}

// rowsLocked marshals every record; callers hold st.mu.
func (c *Collection[T]) rowsLocked() []remote.Row {
	rows := make([]remote.Row, 0, len(c.items))
	for _, it := range c.items {
		payload, err := json.Marshal(it)
		if err != nil {
			// Flat struct types cannot fail to marshal; guard anyway.
			continue
		}
		rows = append(rows, remote.Row{ID: it.RecordID(), Payload: payload})
	}
	return rows
}

// listAnyLocked exposes the items for generic export; callers hold st.mu.
func (c *Collection[T]) listAnyLocked() any {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// DecodeRows decodes fetched rows into typed records, preserving store
// order. Rows that fail to decode are skipped with the returned count of
// failures; a single corrupt row should not block loading the rest.
func DecodeRows[T Record](rows []remote.Row) ([]T, int) {
	out := make([]T, 0, len(rows))
	bad := 0
	for _, r := range rows {
		var rec T
		if err := json.Unmarshal(r.Payload, &rec); err != nil {
			bad++
			continue
		}
		out = append(out, rec)
	}
	return out, bad
}
