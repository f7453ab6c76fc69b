package ledger

import (
	"errors"
	"fmt"
	"slices"

	"hisab/internal/core"
)

// Precondition failures surfaced to users before a mutation is applied.
var (
	ErrRoomOccupied      = errors.New("room is already occupied by another active renter")
	ErrRoomHasOccupant   = errors.New("room has an active occupant")
	ErrMemberHasPayouts  = errors.New("family member has payouts")
	ErrRenterHasPayments = errors.New("renter has rent payments, archive instead")
	ErrRenterNotEligible = errors.New("renter has no tenancy in the selected month")
)

// CheckRoomAssignment rejects moving renterID into roomID when a different
// active renter occupies it today. A nil room (vacant) is always allowed.
func CheckRoomAssignment(roomID *string, renterID string, today core.Date, renters []core.Renter) error {
	if roomID == nil {
		return nil
	}
	if occ, ok := OccupantOfRoom(*roomID, today, renters, true); ok && occ.ID != renterID {
		return fmt.Errorf("%w: %s", ErrRoomOccupied, occ.Name)
	}
	return nil
}

// CheckRoomDeletion rejects deleting a room with an active occupant today.
func CheckRoomDeletion(roomID string, today core.Date, renters []core.Renter) error {
	if occ, ok := OccupantOfRoom(roomID, today, renters, true); ok {
		return fmt.Errorf("%w: %s", ErrRoomHasOccupant, occ.Name)
	}
	return nil
}

// CheckMemberDeletion rejects deleting a family member that has payouts.
func CheckMemberDeletion(memberID string, payouts []core.Payout) error {
	if slices.ContainsFunc(payouts, func(p core.Payout) bool { return p.FamilyMemberID == memberID }) {
		return ErrMemberHasPayouts
	}
	return nil
}

// CheckRenterDeletion rejects deleting a renter that has rent payments.
func CheckRenterDeletion(renterID string, payments []core.RentPayment) error {
	if slices.ContainsFunc(payments, func(p core.RentPayment) bool { return p.RenterID == renterID }) {
		return ErrRenterHasPayments
	}
	return nil
}

// NewRenter creates an active renter whose tenancy starts today.
func NewRenter(id, name string, roomID *string, today core.Date) core.Renter {
	return core.Renter{
		ID:               id,
		Name:             name,
		Status:           core.RenterActive,
		OccupancyHistory: []core.OccupancyEntry{{RoomID: cloneRoomID(roomID), EffectiveDate: today.StartOfDay()}},
	}
}

// AssignRoom returns the renter with roomID effective today. An entry is only
// appended when the room differs from the last recorded one. The renter is
// always returned active, which is how archived renters are reactivated.
func AssignRoom(renter core.Renter, roomID *string, today core.Date) core.Renter {
	out := renter
	out.OccupancyHistory = slices.Clone(renter.OccupancyHistory)
	out.Status = core.RenterActive

	last, ok := renter.LastOccupancy()
	if !ok || !sameRoom(last.RoomID, roomID) {
		out.OccupancyHistory = append(out.OccupancyHistory, core.OccupancyEntry{
			RoomID:        cloneRoomID(roomID),
			EffectiveDate: today.StartOfDay(),
		})
	}
	return out
}

// Archive moves the renter out as of the last day of the month before today
// and marks them archived. When the latest occupancy entry falls on or after
// that day, the move-out is dated today instead and replaces any entry on the
// same day, so the vacancy is always the entry in force afterwards.
func Archive(renter core.Renter, today core.Date) core.Renter {
	moveOut := today.AddMonths(-1).EndOfMonth()
	if latest, ok := latestOccupancyDate(renter.OccupancyHistory); ok && !latest.OnOrBefore(moveOut) {
		moveOut = today.StartOfDay()
		if !latest.OnOrBefore(moveOut) {
			moveOut = latest
		}
	}

	out := renter
	out.OccupancyHistory = slices.DeleteFunc(slices.Clone(renter.OccupancyHistory), func(e core.OccupancyEntry) bool {
		return e.EffectiveDate.SameDay(moveOut)
	})
	out.OccupancyHistory = append(out.OccupancyHistory, core.OccupancyEntry{
		RoomID:        nil,
		EffectiveDate: moveOut,
	})
	out.Status = core.RenterArchived
	return out
}

// EntryDate is the date given to a payment recorded while viewing month:
// today for the running month, the month's last day otherwise.
func EntryDate(month, today core.Date) core.Date {
	if month.SameMonth(today) {
		return today.StartOfDay()
	}
	return month.EndOfMonth()
}

// RoomNumberAt returns the number of the room the renter held on date, or
// core.UnknownRoomNumber.
func RoomNumberAt(renter core.Renter, rooms []core.Room, date core.Date) string {
	roomID, ok := RoomForRenter(renter, date)
	if !ok {
		return core.UnknownRoomNumber
	}
	room, found := findRoom(rooms, roomID)
	if !found {
		return core.UnknownRoomNumber
	}
	return room.Number
}

func latestOccupancyDate(history []core.OccupancyEntry) (core.Date, bool) {
	var latest core.Date
	for i, e := range history {
		if i == 0 || !e.EffectiveDate.OnOrBefore(latest) {
			latest = e.EffectiveDate.StartOfDay()
		}
	}
	return latest, len(history) > 0
}

func sameRoom(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneRoomID(id *string) *string {
	if id == nil {
		return nil
	}
	return core.StrPtr(*id)
}
