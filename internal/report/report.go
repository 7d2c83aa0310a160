// Package report computes the rollups the dashboard and the AI summary
// consume: finance balances, contribution totals, subscription status,
// attendance rate and project profitability.
//
// All computations are plain linear passes over collection copies; nothing
// here depends on record order.
package report

import (
	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/state"
)

// Summary is the team-health snapshot.
type Summary struct {
	MemberCount   int     `json:"memberCount"`
	ActiveMembers int     `json:"activeMembers"`
	TotalIncome   float64 `json:"totalIncome"`
	TotalExpenses float64 `json:"totalExpenses"`
	Balance       float64 `json:"balance"`
	SongCount     int     `json:"songCount"`
	OpenCases     int     `json:"openCases"`
	EventCount    int     `json:"eventCount"`
	ProjectProfit float64 `json:"projectProfit"`
	// AttendanceRate is the mean fraction of active members present across
	// recorded services, in [0,1]. Zero when nothing has been recorded.
	AttendanceRate float64 `json:"attendanceRate"`
}

// Summarize computes the snapshot from current state.
func Summarize(st *state.State) Summary {
	var s Summary

	members := st.Members.List()
	s.MemberCount = len(members)
	for _, m := range members {
		if m.Status == "Active" {
			s.ActiveMembers++
		}
	}

	for _, r := range st.FinanceRecords.List() {
		switch r.Type {
		case "Income":
			s.TotalIncome += r.Amount
		case "Expense":
			s.TotalExpenses += r.Amount
		}
	}
	s.Balance = s.TotalIncome - s.TotalExpenses

	s.SongCount = st.Songs.Len()
	s.EventCount = st.TeamEvents.Len()

	for _, c := range st.DisciplinaryCases.List() {
		if c.Status == "Open" {
			s.OpenCases++
		}
	}

	for _, t := range st.ProjectTransactions.List() {
		switch t.Type {
		case "Revenue":
			s.ProjectProfit += t.Amount
		case "Expense":
			s.ProjectProfit -= t.Amount
		}
	}

	s.AttendanceRate = attendanceRate(st.AttendanceRecords.List(), s.ActiveMembers)
	return s
}

func attendanceRate(records []schema.AttendanceRecord, activeMembers int) float64 {
	if len(records) == 0 || activeMembers == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		rate := float64(len(r.PresentIDs)) / float64(activeMembers)
		if rate > 1 {
			rate = 1
		}
		sum += rate
	}
	return sum / float64(len(records))
}

// ContributionTotals sums each member's recorded giving by member id.
func ContributionTotals(st *state.State) map[string]float64 {
	totals := make(map[string]float64)
	for _, c := range st.Contributions.List() {
		totals[c.MemberID] += c.Amount
	}
	return totals
}

// SubscriptionStatus derives Paid/Partial/Unpaid from the amount paid
// against the standard fee.
func SubscriptionStatus(amountPaid, standardFee float64) string {
	switch {
	case amountPaid >= standardFee:
		return "Paid"
	case amountPaid > 0:
		return "Partial"
	default:
		return "Unpaid"
	}
}

// ProjectBalance nets the transactions recorded against one project.
func ProjectBalance(st *state.State, projectID string) float64 {
	var balance float64
	for _, t := range st.ProjectTransactions.List() {
		if t.ProjectID != projectID {
			continue
		}
		switch t.Type {
		case "Revenue":
			balance += t.Amount
		case "Expense":
			balance -= t.Amount
		}
	}
	return balance
}
