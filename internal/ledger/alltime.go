package ledger

import "hisab/internal/core"

// AllTime aggregates building-wide figures from the initiation month through
// the selected month.
type AllTime struct {
	From          core.Date    `json:"from"`
	Through       core.Date    `json:"through"`
	Months        int          `json:"months"`
	Rent          RentTotals   `json:"rent"`
	Payouts       PayoutTotals `json:"payouts"`
	Bills         float64      `json:"bills"`
	Expenses      float64      `json:"expenses"`
	TotalIncome   float64      `json:"totalIncome"`
	TotalOutgoing float64      `json:"totalOutgoing"`
	Balance       float64      `json:"balance"`
}

// AllTimeSummary walks the same months as the cumulative accumulator, always
// resolving rates at each month's last day, and floors the payables once at
// the end.
func AllTimeSummary(ds core.Dataset, selected core.Date) AllTime {
	out := AllTime{
		From:    ds.InitiationDate.StartOfMonth(),
		Through: selected.StartOfMonth(),
	}

	WalkMonths(ds.InitiationDate, selected, func(month core.Date) {
		ref := month.EndOfMonth()
		r := realizedInMonth(month, ds)

		out.Months++
		out.Rent.Collected += r.rent
		out.Rent.Expected += expectedRent(ds.Rooms, ds.Renters, ref)
		out.Payouts.Paid += r.payouts
		out.Payouts.Expected += expectedPayouts(ds.FamilyMembers, ref)
		out.Bills += r.bills
		out.Expenses += r.expenses
	})

	out.Rent.Payable = floorZero(out.Rent.Expected - out.Rent.Collected)
	out.Payouts.Payable = floorZero(out.Payouts.Expected - out.Payouts.Paid)
	out.TotalIncome = out.Rent.Collected
	out.TotalOutgoing = out.Payouts.Paid + out.Bills + out.Expenses
	out.Balance = out.TotalIncome - out.TotalOutgoing
	return out
}
