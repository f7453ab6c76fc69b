package ledger

import (
	"slices"

	"hisab/internal/core"
)

func occupancyDate(e core.OccupancyEntry) core.Date { return e.EffectiveDate }

// RoomForRenter resolves the room the renter occupied on target. ok is false
// when the renter was vacant or had not moved in yet.
func RoomForRenter(renter core.Renter, target core.Date) (roomID string, ok bool) {
	entry, found := latestOnOrBefore(renter.OccupancyHistory, occupancyDate, target)
	if !found || entry.RoomID == nil {
		return "", false
	}
	return *entry.RoomID, true
}

// OccupantOfRoom returns the first renter whose resolved room on target is
// roomID. Archived renters are skipped when restrictToActive is set.
func OccupantOfRoom(roomID string, target core.Date, renters []core.Renter, restrictToActive bool) (core.Renter, bool) {
	for _, r := range renters {
		if restrictToActive && r.Status != core.RenterActive {
			continue
		}
		if id, ok := RoomForRenter(r, target); ok && id == roomID {
			return r, true
		}
	}
	return core.Renter{}, false
}

// TenancyActiveInMonth reports whether the renter held a tenancy touching the
// month: the first occupancy entry is not after the month's last day and the
// first move-out is not before the month's first day.
func TenancyActiveInMonth(renter core.Renter, month core.Date) bool {
	if len(renter.OccupancyHistory) == 0 {
		return false
	}

	sorted := slices.Clone(renter.OccupancyHistory)
	slices.SortStableFunc(sorted, func(a, b core.OccupancyEntry) int {
		return a.EffectiveDate.StartOfDay().Time.Compare(b.EffectiveDate.StartOfDay().Time)
	})

	if !sorted[0].EffectiveDate.OnOrBefore(month.EndOfMonth()) {
		return false
	}
	for _, e := range sorted {
		if e.RoomID == nil {
			return !e.EffectiveDate.MonthBefore(month)
		}
	}
	return true
}
