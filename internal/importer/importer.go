// Package importer merges record files from a drop-in directory into the
// in-memory collections.
//
// The drop directory contains one subdirectory per table (members/,
// songs/, ...), each holding one JSON record per file. A one-shot import
// walks the tree; watch mode monitors it with fsnotify and applies changes
// after a short debounce so editors that write in bursts are batched.
// Imported records flow through the normal mutation surface, so the sync
// scheduler mirrors them like any other edit.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/state"
)

// DefaultDebounce batches rapid file updates together.
const DefaultDebounce = 250 * time.Millisecond

// Importer applies record files to the state container.
type Importer struct {
	st     *state.State
	logger *log.Logger
	apply  map[string]func([]byte) error

	debounce time.Duration
	mu       sync.Mutex
	queue    map[string]time.Time // path -> last event time
}

// New creates an importer bound to a state container.
func New(st *state.State, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(os.Stderr, "[import] ", log.LstdFlags)
	}
	imp := &Importer{
		st:       st,
		logger:   logger,
		debounce: DefaultDebounce,
		queue:    make(map[string]time.Time),
	}
	imp.apply = map[string]func([]byte) error{
		schema.TableMembers:             applier(st.Members),
		schema.TableFinanceRecords:      applier(st.FinanceRecords),
		schema.TableSubscriptions:       applier(st.Subscriptions),
		schema.TableHarvestRecords:      applier(st.HarvestRecords),
		schema.TableMemberContributions: applier(st.Contributions),
		schema.TableDisciplinaryCases:   applier(st.DisciplinaryCases),
		schema.TableGroupRules:          applier(st.GroupRules),
		schema.TableMeetingMinutes:      applier(st.MeetingMinutes),
		schema.TableAttendanceRecords:   applier(st.AttendanceRecords),
		schema.TableSongs:               applier(st.Songs),
		schema.TableTeamEvents:          applier(st.TeamEvents),
		schema.TableAnnouncements:       applier(st.Announcements),
		schema.TableCommitteeMembers:    applier(st.CommitteeMembers),
		schema.TableTeamProjects:        applier(st.TeamProjects),
		schema.TableProjectTransactions: applier(st.ProjectTransactions),
		schema.TableConcertFinances:     applier(st.ConcertFinances),
	}
	return imp
}

// applier decodes a record file and creates or replaces it in place.
func applier[T state.Record](c *state.Collection[T]) func([]byte) error {
	return func(data []byte) error {
		var rec T
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to decode record: %w", err)
		}
		if rec.RecordID() == "" {
			return fmt.Errorf("record has no id")
		}
		if err := c.Update(rec); err != nil {
			if errors.Is(err, state.ErrNotFound) {
				return c.Create(rec)
			}
			return err
		}
		return nil
	}
}

// ImportDir walks dir once and applies every table/*.json file found.
// Returns the number of records applied.
func (imp *Importer) ImportDir(dir string) (int, error) {
	applied := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if err := imp.importFile(dir, path); err != nil {
			imp.logger.Printf("skipped %s: %v", path, err)
			return nil
		}
		applied++
		return nil
	})
	if err != nil {
		return applied, fmt.Errorf("failed to walk import directory: %w", err)
	}
	return applied, nil
}

func (imp *Importer) importFile(root, path string) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	table := filepath.Dir(rel)
	apply, ok := imp.apply[table]
	if !ok {
		return fmt.Errorf("unknown table directory %q", table)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read record file: %w", err)
	}
	return apply(data)
}

// Watch monitors dir until ctx is cancelled, applying changed files after
// the debounce interval.
func (imp *Importer) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	for table := range imp.apply {
		sub := filepath.Join(dir, table)
		if _, err := os.Stat(sub); err == nil {
			if err := watcher.Add(sub); err != nil {
				return fmt.Errorf("failed to watch %s: %w", sub, err)
			}
		}
	}
	imp.logger.Printf("watching %s", dir)

	ticker := time.NewTicker(imp.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// A new table subdirectory appearing gets watched too.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if imp.st.KnownTable(filepath.Base(event.Name)) {
					_ = watcher.Add(event.Name)
				}
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			imp.mu.Lock()
			imp.queue[event.Name] = time.Now()
			imp.mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			imp.logger.Printf("watch error: %v", err)

		case <-ticker.C:
			imp.drainQueue(dir)
		}
	}
}

// drainQueue applies every queued file whose debounce window has elapsed.
func (imp *Importer) drainQueue(root string) {
	now := time.Now()
	var ready []string

	imp.mu.Lock()
	for path, at := range imp.queue {
		if now.Sub(at) >= imp.debounce {
			ready = append(ready, path)
			delete(imp.queue, path)
		}
	}
	imp.mu.Unlock()

	for _, path := range ready {
		if err := imp.importFile(root, path); err != nil {
			imp.logger.Printf("skipped %s: %v", path, err)
			continue
		}
		imp.logger.Printf("imported %s", path)
	}
}
