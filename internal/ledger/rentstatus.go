package ledger

import (
	"slices"
	"strconv"
	"strings"

	"hisab/internal/core"
)

// RoomStatus is one row of the monthly rent status. Room is nil for an active
// renter without a room who still falls inside the month.
type RoomStatus struct {
	Room              *core.Room   `json:"room"`
	Occupant          *core.Renter `json:"occupant"`
	RentDue           float64      `json:"rentDue"`
	PaidThisMonth     float64      `json:"paidThisMonth"`
	PayableThisMonth  float64      `json:"payableThisMonth"`
	CumulativePayable float64      `json:"cumulativePayable"`
}

// RentStatus lists every room (ordered by room number) with the occupant
// resolved at the month's reference date, archived renters included, followed
// by active renters whose tenancy touches the month but who hold no room at
// the reference date. Row payables are not floored so overpayments show.
func RentStatus(month, today core.Date, ds core.Dataset) []RoomStatus {
	ref := ReferenceDate(month, today)
	balances := ComputeBalances(ds, month)

	paid := make(map[string]float64)
	for _, p := range ds.RentPayments {
		if p.Date.SameMonth(month) {
			paid[p.RenterID] += p.Amount
		}
	}

	rows := make([]RoomStatus, 0, len(ds.Rooms))
	assigned := make(map[string]bool)
	for _, room := range SortRooms(ds.Rooms) {
		room := room
		row := RoomStatus{Room: &room}
		if occ, ok := OccupantOfRoom(room.ID, ref, ds.Renters, false); ok {
			occ.CumulativePayable = balances.Renters[occ.ID]
			row.Occupant = &occ
			row.RentDue = EffectiveValue(room.RentHistory, ref)
			row.PaidThisMonth = paid[occ.ID]
			row.PayableThisMonth = row.RentDue - row.PaidThisMonth
			row.CumulativePayable = occ.CumulativePayable
			assigned[occ.ID] = true
		}
		rows = append(rows, row)
	}

	for _, r := range ds.Renters {
		if assigned[r.ID] || r.Status != core.RenterActive || !TenancyActiveInMonth(r, month) {
			continue
		}
		if _, hasRoom := RoomForRenter(r, ref); hasRoom {
			continue
		}
		r := r
		r.CumulativePayable = balances.Renters[r.ID]
		rows = append(rows, RoomStatus{
			Occupant:          &r,
			PaidThisMonth:     paid[r.ID],
			PayableThisMonth:  -paid[r.ID],
			CumulativePayable: r.CumulativePayable,
		})
	}
	return rows
}

// RentStatusTotals sums the rows of RentStatus.
func RentStatusTotals(rows []RoomStatus) RoomStatus {
	var t RoomStatus
	for _, r := range rows {
		t.RentDue += r.RentDue
		t.PaidThisMonth += r.PaidThisMonth
		t.PayableThisMonth += r.PayableThisMonth
		t.CumulativePayable += r.CumulativePayable
	}
	return t
}

// SortRooms orders rooms by their number read as an integer; non-numeric
// numbers sort after numeric ones, alphabetically.
func SortRooms(rooms []core.Room) []core.Room {
	out := slices.Clone(rooms)
	slices.SortStableFunc(out, func(a, b core.Room) int {
		na, errA := strconv.Atoi(strings.TrimSpace(a.Number))
		nb, errB := strconv.Atoi(strings.TrimSpace(b.Number))
		switch {
		case errA == nil && errB == nil:
			return na - nb
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		default:
			return strings.Compare(a.Number, b.Number)
		}
	})
	return out
}

// EligibleForPayment reports whether a rent payment may be recorded for the
// renter in month.
func EligibleForPayment(renter core.Renter, month core.Date) bool {
	return TenancyActiveInMonth(renter, month)
}
