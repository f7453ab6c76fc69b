package ledger

import "hisab/internal/core"

// RentTotals are the rent figures of a period. Payable is floored at zero.
type RentTotals struct {
	Collected float64 `json:"collected"`
	Expected  float64 `json:"expected"`
	Payable   float64 `json:"payable"`
}

// PayoutTotals are the family payout figures of a period. Payable is floored
// at zero.
type PayoutTotals struct {
	Paid     float64 `json:"paid"`
	Expected float64 `json:"expected"`
	Payable  float64 `json:"payable"`
}

// Summary is the snapshot of one calendar month.
type Summary struct {
	Month         core.Date    `json:"month"`
	ReferenceDate core.Date    `json:"referenceDate"`
	Rent          RentTotals   `json:"rent"`
	Payouts       PayoutTotals `json:"payouts"`
	Bills         float64      `json:"bills"`
	Expenses      float64      `json:"expenses"`
	TotalIncome   float64      `json:"totalIncome"`
	TotalOutgoing float64      `json:"totalOutgoing"`
	Balance       float64      `json:"balance"`
}

// ReferenceDate is the day used to resolve rates for a monthly view: today
// while the month is still running, its last day otherwise.
func ReferenceDate(month, today core.Date) core.Date {
	if month.SameMonth(today) {
		return today.StartOfDay()
	}
	return month.EndOfMonth()
}

// MonthlySummary computes the snapshot of month. Rates are resolved at
// ReferenceDate(month, today); realized amounts are matched by calendar month.
func MonthlySummary(month, today core.Date, ds core.Dataset) Summary {
	ref := ReferenceDate(month, today)
	realized := realizedInMonth(month, ds)

	rentExpected := expectedRent(ds.Rooms, ds.Renters, ref)
	payoutsExpected := expectedPayouts(ds.FamilyMembers, ref)

	s := Summary{
		Month:         month.StartOfMonth(),
		ReferenceDate: ref,
		Rent: RentTotals{
			Collected: realized.rent,
			Expected:  rentExpected,
			Payable:   floorZero(rentExpected - realized.rent),
		},
		Payouts: PayoutTotals{
			Paid:     realized.payouts,
			Expected: payoutsExpected,
			Payable:  floorZero(payoutsExpected - realized.payouts),
		},
		Bills:    realized.bills,
		Expenses: realized.expenses,
	}
	s.TotalIncome = s.Rent.Collected
	s.TotalOutgoing = s.Payouts.Paid + s.Bills + s.Expenses
	s.Balance = s.TotalIncome - s.TotalOutgoing
	return s
}

type realized struct {
	rent     float64
	payouts  float64
	bills    float64
	expenses float64
}

func realizedInMonth(month core.Date, ds core.Dataset) realized {
	var out realized
	for _, p := range ds.RentPayments {
		if p.Date.SameMonth(month) {
			out.rent += p.Amount
		}
	}
	for _, p := range ds.Payouts {
		if p.Date.SameMonth(month) {
			out.payouts += p.Amount
		}
	}
	for _, b := range ds.UtilityBills {
		if b.Date.SameMonth(month) {
			out.bills += b.Amount
		}
	}
	for _, e := range ds.Expenses {
		if e.Date.SameMonth(month) {
			out.expenses += e.Amount
		}
	}
	return out
}

// expectedRent sums the rent in force at ref for rooms with an active
// occupant at ref. Vacant rooms contribute nothing.
func expectedRent(rooms []core.Room, renters []core.Renter, ref core.Date) float64 {
	var sum float64
	for _, room := range rooms {
		if _, occupied := OccupantOfRoom(room.ID, ref, renters, true); occupied {
			sum += EffectiveValue(room.RentHistory, ref)
		}
	}
	return sum
}

func expectedPayouts(members []core.FamilyMember, ref core.Date) float64 {
	var sum float64
	for _, m := range members {
		sum += EffectiveValue(m.ExpectedHistory, ref)
	}
	return sum
}

func floorZero(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}
