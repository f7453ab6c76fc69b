// Package ledger holds the temporal valuation and balance engine. Every
// function here is pure: it reads the collections it is given, never mutates
// them, and takes the selected month, initiation date and "today" as explicit
// parameters.
package ledger

import (
	"slices"

	"hisab/internal/core"
)

// latestOnOrBefore returns the entry with the latest effective day that is on
// or before target. Entries sharing a day keep their input order, so the first
// one listed wins.
func latestOnOrBefore[T any](entries []T, effective func(T) core.Date, target core.Date) (T, bool) {
	var zero T
	if len(entries) == 0 {
		return zero, false
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return effective(b).StartOfDay().Time.Compare(effective(a).StartOfDay().Time)
	})

	for _, e := range sorted {
		if effective(e).OnOrBefore(target) {
			return e, true
		}
	}
	return zero, false
}

func timeValueDate(tv core.TimeValue) core.Date { return tv.EffectiveDate }

// EffectiveValue returns the amount in force on target, or 0 when the history
// is empty or starts after target.
func EffectiveValue(history []core.TimeValue, target core.Date) float64 {
	tv, ok := latestOnOrBefore(history, timeValueDate, target)
	if !ok {
		return 0
	}
	return tv.Amount
}

// UpsertEffectiveEntry records amount as effective from today and returns the
// new history. The input slice is never modified.
//
// Setting the amount already in force is a no-op. If an entry already exists
// for today its amount is replaced; otherwise a new entry is appended.
func UpsertEffectiveEntry(history []core.TimeValue, amount float64, today core.Date) []core.TimeValue {
	out := slices.Clone(history)
	if EffectiveValue(history, today) == amount {
		return out
	}

	for i := range out {
		if out[i].EffectiveDate.SameDay(today) {
			out[i].Amount = amount
			return out
		}
	}
	return append(out, core.TimeValue{Amount: amount, EffectiveDate: today.StartOfDay()})
}
