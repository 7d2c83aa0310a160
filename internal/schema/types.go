// Package schema defines the record types for the Ebenezer praise team
// administration system.
//
// Every record kind maps to one table in the remote row store. Records are
// flat, JSON-serializable structures with a client-assigned string id as the
// primary key. A few kinds carry a soft reference to a record in another
// collection (for example a contribution references a member by id); no
// referential integrity is enforced in memory.
package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Table names in the remote row store. One table per record kind.
const (
	TableMembers             = "members"
	TableFinanceRecords      = "finance_records"
	TableSubscriptions       = "subscriptions"
	TableHarvestRecords      = "harvest_records"
	TableMemberContributions = "member_contributions"
	TableDisciplinaryCases   = "disciplinary_cases"
	TableGroupRules          = "group_rules"
	TableMeetingMinutes      = "meeting_minutes"
	TableAttendanceRecords   = "attendance_records"
	TableSongs               = "songs"
	TableTeamEvents          = "team_events"
	TableAnnouncements       = "announcements"
	TableCommitteeMembers    = "committee_members"
	TableTeamProjects        = "team_projects"
	TableProjectTransactions = "project_transactions"
	TableConcertFinances     = "concert_finances"
)

// Tables returns all table names in a stable order.
func Tables() []string {
	return []string{
		TableMembers,
		TableFinanceRecords,
		TableSubscriptions,
		TableHarvestRecords,
		TableMemberContributions,
		TableDisciplinaryCases,
		TableGroupRules,
		TableMeetingMinutes,
		TableAttendanceRecords,
		TableSongs,
		TableTeamEvents,
		TableAnnouncements,
		TableCommitteeMembers,
		TableTeamProjects,
		TableProjectTransactions,
		TableConcertFinances,
	}
}

// NewID generates a fresh record id. IDs are client-assigned and never
// reused; collision probability across processes is treated as negligible.
func NewID() string {
	return uuid.NewString()
}

// Today returns the current date in the YYYY-MM-DD form used by date fields.
func Today() string {
	return time.Now().Format("2006-01-02")
}

// Member is a personnel roster entry. The Username/secret fields double as
// the login credential for the portal.
type Member struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"` // free text, e.g. "Team Leader", "Media/Sound Technician"
	VoicePart   string `json:"voicePart,omitempty"`
	CellGroup   string `json:"cellGroup,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Status      string `json:"status"` // Active, Inactive, Suspended
	JoinedDate  string `json:"joinedDate,omitempty"`
	Photo       string `json:"photo,omitempty"`
	Username    string `json:"username,omitempty"`

	// Password holds a legacy cleartext secret from older deployments.
	// PasswordHash is the bcrypt hash used for all new and upgraded
	// credentials; when set it takes precedence.
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

// FinanceRecord is one general-fund ledger line.
type FinanceRecord struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Type        string  `json:"type"` // Income or Expense
	Amount      float64 `json:"amount"`
}

// SubscriptionRecord tracks one member's monthly subscription payment.
type SubscriptionRecord struct {
	ID         string  `json:"id"`
	MemberID   string  `json:"memberId"`
	MemberName string  `json:"memberName"`
	Month      string  `json:"month"` // YYYY-MM
	AmountPaid float64 `json:"amountPaid"`
	Status     string  `json:"status"` // Paid, Partial, Unpaid
}

// HarvestRecord is a member's harvest assessment and what they have paid
// against it.
type HarvestRecord struct {
	ID               string  `json:"id"`
	MemberID         string  `json:"memberId"`
	MemberName       string  `json:"memberName"`
	AssessmentAmount float64 `json:"assessmentAmount"`
	AmountPaid       float64 `json:"amountPaid"`
	Status           string  `json:"status"` // Met or Pending
}

// MemberContribution is an individual giving record (tithe, offering, pledge).
type MemberContribution struct {
	ID       string  `json:"id"`
	MemberID string  `json:"memberId"`
	Amount   float64 `json:"amount"`
	Type     string  `json:"type"` // Tithe, Offering, Pledge, Special
	Date     string  `json:"date"`
}

// DisciplinaryCase is an incident raised against a member, optionally with a
// fine attached.
type DisciplinaryCase struct {
	ID          string  `json:"id"`
	MemberID    string  `json:"memberId"`
	MemberName  string  `json:"memberName"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Status      string  `json:"status"` // Open or Closed
	FineAmount  float64 `json:"fineAmount"`
	FinePaid    float64 `json:"finePaid"`
}

// GroupRule is one entry in the team's code of conduct.
type GroupRule struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// MeetingMinutes is the recorded minutes of one meeting.
type MeetingMinutes struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	Category  string   `json:"category"` // General, Executive, Disciplinary, ...
	Content   string   `json:"content"`
	Attendees []string `json:"attendees,omitempty"`
}

// AttendanceRecord captures who was present at one service or rehearsal.
type AttendanceRecord struct {
	ID         string   `json:"id"`
	Date       string   `json:"date"`
	EventName  string   `json:"eventName"`
	PresentIDs []string `json:"presentIds,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Song is one entry in the music library.
type Song struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Key       string `json:"key,omitempty"`
	Composer  string `json:"composer,omitempty"`
	Category  string `json:"category,omitempty"`
	DateAdded string `json:"dateAdded,omitempty"`
}

// TeamEvent is a scheduled team activity (rehearsal, service, outreach).
type TeamEvent struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time,omitempty"`
	Location string `json:"location,omitempty"`
	Type     string `json:"type"` // Rehearsal, Service, Concert, Outreach
	Author   string `json:"author,omitempty"`
}

// Announcement is a dated notice posted to the team.
type Announcement struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Date    string `json:"date"`
	Author  string `json:"author,omitempty"`
}

// CommitteeMember is a seat on the disciplinary panel.
type CommitteeMember struct {
	ID       string `json:"id"`
	MemberID string `json:"memberId"`
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
}

// TeamProject is a small income-generating venture run by the team.
type TeamProject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"` // Munkoyo, Poultry, Gardening, ...
	Status      string `json:"status"`   // Active, Paused, Completed
	Description string `json:"description,omitempty"`
	LastUpdate  string `json:"lastUpdate,omitempty"`
}

// ProjectTransaction is one revenue or expense line against a project.
type ProjectTransaction struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"projectId"`
	Date        string  `json:"date"`
	Type        string  `json:"type"` // Revenue or Expense
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

// ConcertFinance tracks the budget and running totals for one concert.
type ConcertFinance struct {
	ID            string  `json:"id"`
	ConcertName   string  `json:"concertName"`
	Type          string  `json:"type"` // Main Ebe, Mini Concert, Joint
	Date          string  `json:"date"`
	Budget        float64 `json:"budget"`
	Status        string  `json:"status"` // Planning, Confirmed, Done
	TotalIncome   float64 `json:"totalIncome"`
	TotalExpenses float64 `json:"totalExpenses"`
}

// RecordID implementations satisfy state.Record.

func (m Member) RecordID() string             { return m.ID }
func (r FinanceRecord) RecordID() string      { return r.ID }
func (r SubscriptionRecord) RecordID() string { return r.ID }
func (r HarvestRecord) RecordID() string      { return r.ID }
func (r MemberContribution) RecordID() string { return r.ID }
func (r DisciplinaryCase) RecordID() string   { return r.ID }
func (r GroupRule) RecordID() string          { return r.ID }
func (r MeetingMinutes) RecordID() string     { return r.ID }
func (r AttendanceRecord) RecordID() string   { return r.ID }
func (s Song) RecordID() string               { return s.ID }
func (e TeamEvent) RecordID() string          { return e.ID }
func (a Announcement) RecordID() string       { return a.ID }
func (c CommitteeMember) RecordID() string    { return c.ID }
func (p TeamProject) RecordID() string        { return p.ID }
func (t ProjectTransaction) RecordID() string { return t.ID }
func (c ConcertFinance) RecordID() string     { return c.ID }

// Validate checks the fields required of every roster entry.
func (m Member) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// Validate checks that a ledger line is well formed.
func (r FinanceRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Type != "Income" && r.Type != "Expense" {
		return fmt.Errorf("type must be Income or Expense (got %q)", r.Type)
	}
	if r.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	return nil
}

// Validate checks that an event has the fields the calendar needs.
func (e TeamEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if e.Date == "" {
		return fmt.Errorf("date is required")
	}
	return nil
}
