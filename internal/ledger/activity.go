package ledger

import (
	"cmp"
	"slices"

	"hisab/internal/core"
)

type ActivityKind string

const (
	ActivityRent    ActivityKind = "rent"
	ActivityPayout  ActivityKind = "payout"
	ActivityBill    ActivityKind = "bill"
	ActivityExpense ActivityKind = "expense"
)

// DefaultActivityLimit is the number of items shown on the dashboard.
const DefaultActivityLimit = 10

// Activity is one realized money movement of a month.
type Activity struct {
	Kind        ActivityKind `json:"kind"`
	ID          string       `json:"id"`
	Date        core.Date    `json:"date"`
	Description string       `json:"description"`
	Amount      float64      `json:"amount"`
	Incoming    bool         `json:"incoming"`
}

// RecentActivity merges the month's rent payments, payouts, bills and
// expenses, newest first, keeping at most limit items (all when limit <= 0).
func RecentActivity(month core.Date, ds core.Dataset, limit int) []Activity {
	var items []Activity
	for _, p := range ds.RentPayments {
		if p.Date.SameMonth(month) {
			items = append(items, Activity{Kind: ActivityRent, ID: p.ID, Date: p.Date, Amount: p.Amount, Incoming: true,
				Description: p.RenterName + " (" + p.RoomNumber + ")"})
		}
	}
	for _, p := range ds.Payouts {
		if p.Date.SameMonth(month) {
			items = append(items, Activity{Kind: ActivityPayout, ID: p.ID, Date: p.Date, Amount: p.Amount,
				Description: p.FamilyMemberName})
		}
	}
	for _, b := range ds.UtilityBills {
		if b.Date.SameMonth(month) {
			items = append(items, Activity{Kind: ActivityBill, ID: b.ID, Date: b.Date, Amount: b.Amount,
				Description: string(b.Type)})
		}
	}
	for _, e := range ds.Expenses {
		if e.Date.SameMonth(month) {
			desc := string(e.Category)
			if e.Details != "" {
				desc = e.Details
			}
			items = append(items, Activity{Kind: ActivityExpense, ID: e.ID, Date: e.Date, Amount: e.Amount,
				Description: desc})
		}
	}

	slices.SortStableFunc(items, func(a, b Activity) int {
		return cmp.Compare(b.Date.Unix(), a.Date.Unix())
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
