package storage

import (
	"context"
	"errors"
	"slices"

	"hisab/internal/core"
)

var ErrNotFound = errors.New("record not found")

// Collection names one entity collection of the dataset.
type Collection string

const (
	Rooms         Collection = "rooms"
	Renters       Collection = "renters"
	RentPayments  Collection = "rentPayments"
	FamilyMembers Collection = "familyMembers"
	Payouts       Collection = "payouts"
	UtilityBills  Collection = "utilityBills"
	Expenses      Collection = "otherExpenses"
)

// Collections lists every collection in dataset order.
var Collections = []Collection{Rooms, Renters, RentPayments, FamilyMembers, Payouts, UtilityBills, Expenses}

func (c Collection) IsValid() bool {
	return slices.Contains(Collections, c)
}

// Ports implemented by the memory and SQLite stores.
type (
	// Store persists the dataset. Save methods insert or replace by id and
	// keep the original insertion order. Every successful mutation bumps
	// the dataset revision.
	Store interface {
		Load(ctx context.Context) (core.Dataset, error)
		Revision(ctx context.Context) (int64, error)

		SaveRoom(ctx context.Context, r core.Room) error
		SaveRenter(ctx context.Context, r core.Renter) error
		SaveRentPayment(ctx context.Context, p core.RentPayment) error
		SaveFamilyMember(ctx context.Context, m core.FamilyMember) error
		SavePayout(ctx context.Context, p core.Payout) error
		SaveUtilityBill(ctx context.Context, b core.UtilityBill) error
		SaveExpense(ctx context.Context, e core.Expense) error

		// Delete removes id from c, returning ErrNotFound when absent.
		Delete(ctx context.Context, c Collection, id string) error

		SetInitiationDate(ctx context.Context, d core.Date) error
		// Replace swaps the whole dataset, as used by seeding.
		Replace(ctx context.Context, ds core.Dataset) error
		// Clear empties every collection and resets the initiation date.
		Clear(ctx context.Context, initiation core.Date) error

		Close() error
	}

	// SyncTracker remembers which revision was last mirrored externally.
	SyncTracker interface {
		SyncedRevision(ctx context.Context) (int64, error)
		MarkSynced(ctx context.Context, revision int64) error
	}

	// Backend is a store that also tracks mirror progress.
	Backend interface {
		Store
		SyncTracker
	}
)
