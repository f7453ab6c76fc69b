package ledger

import "hisab/internal/core"

// WalkMonths calls fn with the first day of every month from the initiation
// month through the selected month, inclusive. Nothing is visited when the
// initiation month is after the selected month.
func WalkMonths(initiation, selected core.Date, fn func(month core.Date)) {
	for m := initiation.StartOfMonth(); !selected.MonthBefore(m); m = m.AddMonths(1) {
		fn(m)
	}
}

// MonthCount returns how many months WalkMonths visits.
func MonthCount(initiation, selected core.Date) int {
	n := (selected.Year()-initiation.Year())*12 + selected.Month() - initiation.Month() + 1
	if n < 0 {
		return 0
	}
	return n
}

// RenterCumulativePayable sums, over every walked month, the rent of the room
// the renter occupied at month end minus the renter's payments that month.
// The running total is floored at zero once, after the last month.
func RenterCumulativePayable(renter core.Renter, rooms []core.Room, payments []core.RentPayment, initiation, selected core.Date) float64 {
	paid := make(map[string]float64)
	for _, p := range payments {
		if p.RenterID == renter.ID {
			paid[p.Date.MonthKey()] += p.Amount
		}
	}

	var running float64
	WalkMonths(initiation, selected, func(month core.Date) {
		ref := month.EndOfMonth()
		if roomID, ok := RoomForRenter(renter, ref); ok {
			if room, found := findRoom(rooms, roomID); found {
				running += EffectiveValue(room.RentHistory, ref)
			}
		}
		running -= paid[month.MonthKey()]
	})
	return floorZero(running)
}

// MemberCumulativePayable sums, over every walked month, the member's expected
// payout at month end minus what was paid out that month, floored at zero once.
func MemberCumulativePayable(member core.FamilyMember, payouts []core.Payout, initiation, selected core.Date) float64 {
	paid := make(map[string]float64)
	for _, p := range payouts {
		if p.FamilyMemberID == member.ID {
			paid[p.Date.MonthKey()] += p.Amount
		}
	}

	var running float64
	WalkMonths(initiation, selected, func(month core.Date) {
		running += EffectiveValue(member.ExpectedHistory, month.EndOfMonth())
		running -= paid[month.MonthKey()]
	})
	return floorZero(running)
}

// Balances maps entity ids to their cumulative payable for a selected month.
type Balances struct {
	Selected      core.Date          `json:"selected"`
	Initiation    core.Date          `json:"initiation"`
	Renters       map[string]float64 `json:"renters"`
	FamilyMembers map[string]float64 `json:"familyMembers"`
}

// ComputeBalances evaluates every renter and family member of the dataset
// from its initiation date through selected.
func ComputeBalances(ds core.Dataset, selected core.Date) Balances {
	b := Balances{
		Selected:      selected.StartOfMonth(),
		Initiation:    ds.InitiationDate,
		Renters:       make(map[string]float64, len(ds.Renters)),
		FamilyMembers: make(map[string]float64, len(ds.FamilyMembers)),
	}
	for _, r := range ds.Renters {
		b.Renters[r.ID] = RenterCumulativePayable(r, ds.Rooms, ds.RentPayments, ds.InitiationDate, selected)
	}
	for _, m := range ds.FamilyMembers {
		b.FamilyMembers[m.ID] = MemberCumulativePayable(m, ds.Payouts, ds.InitiationDate, selected)
	}
	return b
}

// Apply returns a copy of ds whose renters and family members carry their
// cumulative payable. ds itself is left untouched.
func (b Balances) Apply(ds core.Dataset) core.Dataset {
	out := ds
	out.Renters = make([]core.Renter, len(ds.Renters))
	for i, r := range ds.Renters {
		r.CumulativePayable = b.Renters[r.ID]
		out.Renters[i] = r
	}
	out.FamilyMembers = make([]core.FamilyMember, len(ds.FamilyMembers))
	for i, m := range ds.FamilyMembers {
		m.CumulativePayable = b.FamilyMembers[m.ID]
		out.FamilyMembers[i] = m
	}
	return out
}

func findRoom(rooms []core.Room, id string) (core.Room, bool) {
	for _, r := range rooms {
		if r.ID == id {
			return r, true
		}
	}
	return core.Room{}, false
}
