// Package state holds the in-memory record collections for a running
// session and exposes the mutation surface used by every feature view.
//
// Local state is the single source of truth while the process runs; the
// remote store is a mirror. Creates and updates are purely local and are
// picked up later by the sync scheduler through the dirty set; deletes are
// mirrored to the remote store eagerly. All collections live in one explicit
// container passed to the modules that need it, with typed mutation methods
// per collection.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ebenezer-ucz/ebz/internal/remote"
	"github.com/ebenezer-ucz/ebz/internal/schema"
)

// ErrNotFound is returned by Update when no record carries the given id.
var ErrNotFound = errors.New("record not found")

// Record is any schema type keyed by a string id.
type Record interface {
	RecordID() string
}

// Deleter receives the eager remote deletion issued by Collection.Delete.
// *remote.Adapter satisfies it.
type Deleter interface {
	DeleteByID(ctx context.Context, table, id string)
}

// EventSink observes record mutations, for the live dashboard feed.
type EventSink interface {
	RecordChanged(table, action, id string)
}

// State is the application-state container: sixteen insertion-ordered
// collections, the dirty set consumed by the sync scheduler, and the
// process-wide degraded flag.
type State struct {
	mu       sync.Mutex
	degraded bool
	dirty    map[string]bool
	changed  chan struct{}
	deleter  Deleter
	sink     EventSink

	registry map[string]registered

	Members             *Collection[schema.Member]
	FinanceRecords      *Collection[schema.FinanceRecord]
	Subscriptions       *Collection[schema.SubscriptionRecord]
	HarvestRecords      *Collection[schema.HarvestRecord]
	Contributions       *Collection[schema.MemberContribution]
	DisciplinaryCases   *Collection[schema.DisciplinaryCase]
	GroupRules          *Collection[schema.GroupRule]
	MeetingMinutes      *Collection[schema.MeetingMinutes]
	AttendanceRecords   *Collection[schema.AttendanceRecord]
	Songs               *Collection[schema.Song]
	TeamEvents          *Collection[schema.TeamEvent]
	Announcements       *Collection[schema.Announcement]
	CommitteeMembers    *Collection[schema.CommitteeMember]
	TeamProjects        *Collection[schema.TeamProject]
	ProjectTransactions *Collection[schema.ProjectTransaction]
	ConcertFinances     *Collection[schema.ConcertFinance]
}

// registered lets the container walk its collections generically (export,
// dirty-row collection) without reflection.
type registered struct {
	rows  func() []remote.Row
	list  func() any
	count func() int
}

// New creates an empty state container. The deleter receives eager remote
// deletions and may be nil (deletes then stay local, as in degraded mode).
func New(deleter Deleter) *State {
	s := &State{
		dirty:    make(map[string]bool),
		changed:  make(chan struct{}, 1),
		deleter:  deleter,
		registry: make(map[string]registered),
	}
	s.Members = attach[schema.Member](s, schema.TableMembers)
	s.FinanceRecords = attach[schema.FinanceRecord](s, schema.TableFinanceRecords)
	s.Subscriptions = attach[schema.SubscriptionRecord](s, schema.TableSubscriptions)
	s.HarvestRecords = attach[schema.HarvestRecord](s, schema.TableHarvestRecords)
	s.Contributions = attach[schema.MemberContribution](s, schema.TableMemberContributions)
	s.DisciplinaryCases = attach[schema.DisciplinaryCase](s, schema.TableDisciplinaryCases)
	s.GroupRules = attach[schema.GroupRule](s, schema.TableGroupRules)
	s.MeetingMinutes = attach[schema.MeetingMinutes](s, schema.TableMeetingMinutes)
	s.AttendanceRecords = attach[schema.AttendanceRecord](s, schema.TableAttendanceRecords)
	s.Songs = attach[schema.Song](s, schema.TableSongs)
	s.TeamEvents = attach[schema.TeamEvent](s, schema.TableTeamEvents)
	s.Announcements = attach[schema.Announcement](s, schema.TableAnnouncements)
	s.CommitteeMembers = attach[schema.CommitteeMember](s, schema.TableCommitteeMembers)
	s.TeamProjects = attach[schema.TeamProject](s, schema.TableTeamProjects)
	s.ProjectTransactions = attach[schema.ProjectTransaction](s, schema.TableProjectTransactions)
	s.ConcertFinances = attach[schema.ConcertFinance](s, schema.TableConcertFinances)
	return s
}

func attach[T Record](s *State, table string) *Collection[T] {
	c := &Collection[T]{st: s, table: table}
	s.registry[table] = registered{
		rows:  c.rowsLocked,
		list:  c.listAnyLocked,
		count: func() int { return len(c.items) },
	}
	return c
}

// SetEventSink installs the observer for record mutations. Call before the
// state is shared across goroutines.
func (s *State) SetEventSink(sink EventSink) { s.sink = sink }

// SetDegraded flips the process-wide setup/degraded flag. Once entered the
// mode is sticky until restart; nothing in this package leaves it.
func (s *State) SetDegraded(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degraded = v
}

// Degraded reports whether the session runs in setup/degraded mode.
func (s *State) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Changes is the coalescing change signal consumed by the sync scheduler.
// It fires at most once per pending observation.
func (s *State) Changes() <-chan struct{} { return s.changed }

// NotifyBootstrap fires one change signal after the bootstrap loader has
// populated the collections, without marking anything dirty. The sync
// scheduler absorbs this first observation so the freshly loaded data is not
// immediately echoed back to the store.
func (s *State) NotifyBootstrap() {
	s.signal()
}

// TakeDirty returns the JSON rows of every collection touched since the last
// call and resets the dirty set.
func (s *State) TakeDirty() map[string][]remote.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		return nil
	}
	out := make(map[string][]remote.Row, len(s.dirty))
	for table := range s.dirty {
		out[table] = s.registry[table].rows()
	}
	s.dirty = make(map[string]bool)
	return out
}

// AllRows snapshots every non-empty collection, for a manual full push.
func (s *State) AllRows() map[string][]remote.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]remote.Row)
	for table, reg := range s.registry {
		if rows := reg.rows(); len(rows) > 0 {
			out[table] = rows
		}
	}
	return out
}

// RequeueDirty re-marks tables as dirty, used when a push is abandoned
// before reaching the adapter (for example on shutdown).
func (s *State) RequeueDirty(tables []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tables {
		s.dirty[t] = true
	}
}

// ExportTable marshals a collection for the export command and the HTTP
// list endpoints.
func (s *State) ExportTable(table string) ([]byte, error) {
	s.mu.Lock()
	reg, ok := s.registry[table]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("unknown table %q", table)
	}
	list := reg.list()
	s.mu.Unlock()
	return json.Marshal(list)
}

// CountTable returns the number of records in a collection, or -1 for an
// unknown table.
func (s *State) CountTable(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registry[table]
	if !ok {
		return -1
	}
	return reg.count()
}

// KnownTable reports whether table names one of the sixteen collections.
func (s *State) KnownTable(table string) bool {
	_, ok := s.registry[table]
	return ok
}

func (s *State) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// markDirtyLocked records a mutation; callers hold s.mu.
func (s *State) markDirtyLocked(table string) {
	s.dirty[table] = true
}

func (s *State) emit(table, action, id string) {
	if s.sink != nil {
		s.sink.RecordChanged(table, action, id)
	}
}
