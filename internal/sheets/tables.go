package sheets

import (
	"strconv"
	"strings"
	"time"

	"hisab/internal/core"
)

// Tab names, one per collection plus a metadata tab.
const (
	TabRooms         = "Rooms"
	TabRenters       = "Renters"
	TabRentPayments  = "RentPayments"
	TabFamilyMembers = "FamilyMembers"
	TabPayouts       = "Payouts"
	TabUtilityBills  = "UtilityBills"
	TabExpenses      = "OtherExpenses"
	TabMeta          = "Meta"
)

// Table is one tab's content: a header row followed by data rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Values returns header and rows as the matrix the Sheets API expects.
func (t Table) Values() [][]any {
	out := make([][]any, 0, len(t.Rows)+1)
	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	out = append(out, header)
	return append(out, t.Rows...)
}

// Tables renders ds as one table per collection, in dataset order, followed
// by the metadata tab.
func Tables(ds core.Dataset, revision int64, generated time.Time) []Table {
	rooms := Table{Name: TabRooms, Header: []string{"ID", "Number", "Rent History"}}
	for _, r := range ds.Rooms {
		rooms.Rows = append(rooms.Rows, []any{r.ID, r.Number, formatHistory(r.RentHistory)})
	}

	renters := Table{Name: TabRenters, Header: []string{"ID", "Name", "Status", "Occupancy History"}}
	for _, r := range ds.Renters {
		renters.Rows = append(renters.Rows, []any{r.ID, r.Name, string(r.Status), formatOccupancy(r.OccupancyHistory)})
	}

	payments := Table{Name: TabRentPayments, Header: []string{"ID", "Date", "Renter ID", "Renter", "Room", "Amount"}}
	for _, p := range ds.RentPayments {
		payments.Rows = append(payments.Rows, []any{p.ID, p.Date.String(), p.RenterID, p.RenterName, p.RoomNumber, p.Amount})
	}

	members := Table{Name: TabFamilyMembers, Header: []string{"ID", "Name", "Expected History"}}
	for _, m := range ds.FamilyMembers {
		members.Rows = append(members.Rows, []any{m.ID, m.Name, formatHistory(m.ExpectedHistory)})
	}

	payouts := Table{Name: TabPayouts, Header: []string{"ID", "Date", "Family Member ID", "Family Member", "Amount", "Details"}}
	for _, p := range ds.Payouts {
		payouts.Rows = append(payouts.Rows, []any{p.ID, p.Date.String(), p.FamilyMemberID, p.FamilyMemberName, p.Amount, p.Details})
	}

	bills := Table{Name: TabUtilityBills, Header: []string{"ID", "Date", "Type", "Amount", "Notes"}}
	for _, b := range ds.UtilityBills {
		bills.Rows = append(bills.Rows, []any{b.ID, b.Date.String(), string(b.Type), b.Amount, b.Notes})
	}

	expenses := Table{Name: TabExpenses, Header: []string{"ID", "Date", "Category", "Amount", "Details"}}
	for _, e := range ds.Expenses {
		expenses.Rows = append(expenses.Rows, []any{e.ID, e.Date.String(), string(e.Category), e.Amount, e.Details})
	}

	meta := Table{Name: TabMeta, Header: []string{"Key", "Value"}, Rows: [][]any{
		{"revision", strconv.FormatInt(revision, 10)},
		{"initiationDate", ds.InitiationDate.String()},
		{"generatedAt", generated.UTC().Format(time.RFC3339)},
	}}

	return []Table{rooms, renters, payments, members, payouts, bills, expenses, meta}
}

// formatHistory renders "8000 from 2024-01-01; 8500 from 2024-06-01".
func formatHistory(h []core.TimeValue) string {
	parts := make([]string, len(h))
	for i, tv := range h {
		parts[i] = strconv.FormatFloat(tv.Amount, 'f', -1, 64) + " from " + tv.EffectiveDate.String()
	}
	return strings.Join(parts, "; ")
}

func formatOccupancy(h []core.OccupancyEntry) string {
	parts := make([]string, len(h))
	for i, e := range h {
		room := "vacant"
		if e.RoomID != nil {
			room = *e.RoomID
		}
		parts[i] = room + " from " + e.EffectiveDate.String()
	}
	return strings.Join(parts, "; ")
}
