// Package syncd runs the debounced synchronization loop between the
// in-memory collections and the remote row store.
//
// The scheduler observes the state container's change signal. The very
// first observation after startup is absorbed: it is the bootstrap
// population and must not be echoed back to the store. Every later change
// (re)starts a quiet-period timer; when the timer elapses without further
// changes, the collections touched since the last push are upserted in
// full. There is no retry and no backoff: a failed push is counted and
// dropped, and the next edit anywhere will push the collection again.
package syncd

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/ebenezer-ucz/ebz/internal/remote"
	"github.com/ebenezer-ucz/ebz/internal/state"
)

// DefaultDebounce is the quiet period between the last observed change and
// the push.
const DefaultDebounce = time.Second

// Pusher receives the debounced upserts. *remote.Adapter satisfies it.
type Pusher interface {
	UpsertMany(ctx context.Context, table string, records []remote.Row) error
}

// Mirror receives a copy of every successful push, keeping a local snapshot
// readable when the remote is unreachable. Optional.
type Mirror interface {
	ReplaceTable(table string, rows []remote.Row) error
	SetLastSync(t time.Time) error
}

// Config holds scheduler configuration.
type Config struct {
	// DebounceInterval is the quiet period before a push (default 1s).
	DebounceInterval time.Duration

	// Logger for scheduler activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: DefaultDebounce,
		Logger:           log.New(os.Stderr, "[syncd] ", log.LstdFlags),
	}
}

// Scheduler debounces state changes into remote pushes.
type Scheduler struct {
	st     *state.State
	pusher Pusher
	mirror Mirror
	config *Config
}

// New creates a scheduler. mirror may be nil.
func New(st *state.State, pusher Pusher, mirror Mirror, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultDebounce
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[syncd] ", log.LstdFlags)
	}
	return &Scheduler{st: st, pusher: pusher, mirror: mirror, config: config}
}

// Run blocks until ctx is cancelled, pushing dirty collections after each
// quiet period. Changes observed while the session is degraded are ignored.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(s.config.DebounceInterval)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false
	first := true

	for {
		select {
		case <-ctx.Done():
			if armed && !timer.Stop() {
				<-timer.C
			}
			// A pending push is abandoned; the dirty set survives for
			// the next session's manual sync.
			return nil

		case <-s.st.Changes():
			if s.st.Degraded() {
				continue
			}
			if first {
				// Bootstrap population: observe and do nothing.
				first = false
				continue
			}
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.config.DebounceInterval)
			armed = true

		case <-timer.C:
			armed = false
			s.Push(ctx)
		}
	}
}

// Push upserts every collection touched since the last push. SchemaMissing
// responses are ignored here; bootstrap already decided what a missing
// schema means for this session. Exposed for the manual `ebz sync` path.
func (s *Scheduler) Push(ctx context.Context) {
	if s.st.Degraded() {
		return
	}
	batches := s.st.TakeDirty()
	if len(batches) == 0 {
		return
	}

	pushed := 0
	for table, rows := range batches {
		if err := s.pusher.UpsertMany(ctx, table, rows); err != nil {
			if remote.IsSchemaMissing(err) {
				continue
			}
			s.config.Logger.Printf("push failed [%s]: %v", table, err)
			continue
		}
		pushed++
		if s.mirror != nil {
			if err := s.mirror.ReplaceTable(table, rows); err != nil {
				s.config.Logger.Printf("mirror update failed [%s]: %v", table, err)
			}
		}
	}

	if pushed > 0 {
		remote.SyncPushes.WithLabelValues("ok").Inc()
		if s.mirror != nil {
			if err := s.mirror.SetLastSync(time.Now()); err != nil {
				s.config.Logger.Printf("mirror timestamp failed: %v", err)
			}
		}
	} else {
		remote.SyncPushes.WithLabelValues("dropped").Inc()
	}
	s.config.Logger.Printf("pushed %d/%d collections", pushed, len(batches))
}

// PushAll forces a full push of every non-empty collection, regardless of
// the dirty set. Used by the manual `ebz sync` command after an outage.
func (s *Scheduler) PushAll(ctx context.Context) error {
	for table, rows := range s.st.AllRows() {
		if err := s.pusher.UpsertMany(ctx, table, rows); err != nil && !remote.IsSchemaMissing(err) {
			return err
		}
		if s.mirror != nil {
			if err := s.mirror.ReplaceTable(table, rows); err != nil {
				s.config.Logger.Printf("mirror update failed [%s]: %v", table, err)
			}
		}
	}
	if s.mirror != nil {
		if err := s.mirror.SetLastSync(time.Now()); err != nil {
			s.config.Logger.Printf("mirror timestamp failed: %v", err)
		}
	}
	return nil
}
