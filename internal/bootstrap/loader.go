// Package bootstrap performs the one-shot startup load: every collection is
// fetched from the remote store concurrently and, where data exists,
// replaces the in-memory default.
//
// A single SchemaMissing signal aborts the whole load: the partial results
// of the other fetches are discarded and the session runs in setup/degraded
// mode until restart. The application never attempts partial operation with
// some collections loaded and others not.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ebenezer-ucz/ebz/internal/remote"
	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/state"
)

// Loader runs the startup fetch.
type Loader struct {
	adapter *remote.Adapter
	st      *state.State
	logger  *log.Logger
}

// New creates a loader. If logger is nil a stderr logger is used.
func New(adapter *remote.Adapter, st *state.State, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(os.Stderr, "[bootstrap] ", log.LstdFlags)
	}
	return &Loader{adapter: adapter, st: st, logger: logger}
}

// staging collects fetch results before any of them touch the state
// container, so a failed load leaves every collection at its default.
type staging struct {
	members       []schema.Member
	finance       []schema.FinanceRecord
	subscriptions []schema.SubscriptionRecord
	harvests      []schema.HarvestRecord
	contributions []schema.MemberContribution
	cases         []schema.DisciplinaryCase
	rules         []schema.GroupRule
	minutes       []schema.MeetingMinutes
	attendance    []schema.AttendanceRecord
	songs         []schema.Song
	events        []schema.TeamEvent
	announcements []schema.Announcement
	committee     []schema.CommitteeMember
	projects      []schema.TeamProject
	transactions  []schema.ProjectTransaction
	concerts      []schema.ConcertFinance
}

// Load fetches all sixteen tables concurrently and applies the results.
// On any SchemaMissing condition the state is flipped to degraded mode and
// the error is returned; the caller handles it exactly once at the top
// level. Transient fetch failures were already swallowed by the adapter and
// simply leave that collection at its default.
func (l *Loader) Load(ctx context.Context) error {
	var stg staging
	g, gctx := errgroup.WithContext(ctx)

	fetch(gctx, g, l, schema.TableMembers, &stg.members)
	fetch(gctx, g, l, schema.TableFinanceRecords, &stg.finance)
	fetch(gctx, g, l, schema.TableSubscriptions, &stg.subscriptions)
	fetch(gctx, g, l, schema.TableHarvestRecords, &stg.harvests)
	fetch(gctx, g, l, schema.TableMemberContributions, &stg.contributions)
	fetch(gctx, g, l, schema.TableDisciplinaryCases, &stg.cases)
	fetch(gctx, g, l, schema.TableGroupRules, &stg.rules)
	fetch(gctx, g, l, schema.TableMeetingMinutes, &stg.minutes)
	fetch(gctx, g, l, schema.TableAttendanceRecords, &stg.attendance)
	fetch(gctx, g, l, schema.TableSongs, &stg.songs)
	fetch(gctx, g, l, schema.TableTeamEvents, &stg.events)
	fetch(gctx, g, l, schema.TableAnnouncements, &stg.announcements)
	fetch(gctx, g, l, schema.TableCommitteeMembers, &stg.committee)
	fetch(gctx, g, l, schema.TableTeamProjects, &stg.projects)
	fetch(gctx, g, l, schema.TableProjectTransactions, &stg.transactions)
	fetch(gctx, g, l, schema.TableConcertFinances, &stg.concerts)

	if err := g.Wait(); err != nil {
		if remote.IsSchemaMissing(err) {
			l.logger.Printf("remote schema absent, entering setup mode: %v", err)
			l.st.SetDegraded(true)
			return fmt.Errorf("bootstrap aborted: %w", err)
		}
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	apply(l.st.Members, stg.members)
	apply(l.st.FinanceRecords, stg.finance)
	apply(l.st.Subscriptions, stg.subscriptions)
	apply(l.st.HarvestRecords, stg.harvests)
	apply(l.st.Contributions, stg.contributions)
	apply(l.st.DisciplinaryCases, stg.cases)
	apply(l.st.GroupRules, stg.rules)
	apply(l.st.MeetingMinutes, stg.minutes)
	apply(l.st.AttendanceRecords, stg.attendance)
	apply(l.st.Songs, stg.songs)
	apply(l.st.TeamEvents, stg.events)
	apply(l.st.Announcements, stg.announcements)
	apply(l.st.CommitteeMembers, stg.committee)
	apply(l.st.TeamProjects, stg.projects)
	apply(l.st.ProjectTransactions, stg.transactions)
	apply(l.st.ConcertFinances, stg.concerts)

	// One change signal for the population above; the sync scheduler
	// absorbs it so the load is not echoed straight back to the store.
	l.st.NotifyBootstrap()
	return nil
}

// fetch schedules one table load into its staging slot. Each goroutine
// writes a distinct field, so no staging lock is needed.
func fetch[T state.Record](ctx context.Context, g *errgroup.Group, l *Loader, table string, dst *[]T) {
	g.Go(func() error {
		rows, err := l.adapter.FetchAll(ctx, table)
		if err != nil {
			return err
		}
		recs, bad := state.DecodeRows[T](rows)
		if bad > 0 {
			l.logger.Printf("skipped %d undecodable rows in %s", bad, table)
		}
		*dst = recs
		return nil
	})
}

// apply replaces the in-memory default only when the fetch returned data;
// an empty result (including after a swallowed transient error) keeps the
// default.
func apply[T state.Record](c *state.Collection[T], items []T) {
	if len(items) > 0 {
		c.Replace(items)
	}
}
