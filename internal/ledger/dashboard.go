package ledger

import "hisab/internal/core"

// Dashboard is the monthly overview: the month's snapshot, the previous
// month's balance carried over, and the latest movements.
type Dashboard struct {
	Summary      Summary    `json:"summary"`
	CarryOver    float64    `json:"carryOver"`
	FinalBalance float64    `json:"finalBalance"`
	Activity     []Activity `json:"activity"`
}

func BuildDashboard(month, today core.Date, ds core.Dataset) Dashboard {
	current := MonthlySummary(month, today, ds)
	previous := MonthlySummary(month.AddMonths(-1), today, ds)
	return Dashboard{
		Summary:      current,
		CarryOver:    previous.Balance,
		FinalBalance: previous.Balance + current.Balance,
		Activity:     RecentActivity(month, ds, DefaultActivityLimit),
	}
}
