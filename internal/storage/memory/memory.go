package memory

import (
	"context"
	"fmt"
	"sync"

	"hisab/internal/core"
	"hisab/internal/storage"
)

// Store keeps the dataset in process memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	ds       core.Dataset
	revision int64
	synced   int64
}

// New returns a store holding a copy of ds. A zero initiation date is
// replaced by core.DefaultInitiationDate.
func New(ds core.Dataset) *Store {
	ds = ds.Clone()
	if ds.InitiationDate.IsZero() {
		ds.InitiationDate = core.DefaultInitiationDate
	}
	return &Store{ds: ds}
}

func (s *Store) Load(_ context.Context) (core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds.Clone(), nil
}

func (s *Store) Revision(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision, nil
}

func (s *Store) SaveRoom(_ context.Context, r core.Room) error {
	return s.mutate(func(ds *core.Dataset) error {
		ds.Rooms = upsert(ds.Rooms, r, func(x core.Room) string { return x.ID })
		return nil
	})
}

func (s *Store) SaveRenter(_ context.Context, r core.Renter) error {
	r.CumulativePayable = 0
	return s.mutate(func(ds *core.Dataset) error {
		ds.Renters = upsert(ds.Renters, r, func(x core.Renter) string { return x.ID })
		return nil
	})
}

func (s *Store) SaveRentPayment(_ context.Context, p core.RentPayment) error {
	return s.mutate(func(ds *core.Dataset) error {
		ds.RentPayments = upsert(ds.RentPayments, p, func(x core.RentPayment) string { return x.ID })
		return nil
	})
}

func (s *Store) SaveFamilyMember(_ context.Context, m core.FamilyMember) error {
	m.CumulativePayable = 0
	return s.mutate(func(ds *core.Dataset) error {
		ds.FamilyMembers = upsert(ds.FamilyMembers, m, func(x core.FamilyMember) string { return x.ID })
		return nil
	})
}

func (s *Store) SavePayout(_ context.Context, p core.Payout) error {
	return s.mutate(func(ds *core.Dataset) error {
		ds.Payouts = upsert(ds.Payouts, p, func(x core.Payout) string { return x.ID })
		return nil
	})
}

func (s *Store) SaveUtilityBill(_ context.Context, b core.UtilityBill) error {
	return s.mutate(func(ds *core.Dataset) error {
		ds.UtilityBills = upsert(ds.UtilityBills, b, func(x core.UtilityBill) string { return x.ID })
		return nil
	})
}

func (s *Store) SaveExpense(_ context.Context, e core.Expense) error {
	return s.mutate(func(ds *core.Dataset) error {
		ds.Expenses = upsert(ds.Expenses, e, func(x core.Expense) string { return x.ID })
		return nil
	})
}

func (s *Store) Delete(_ context.Context, c storage.Collection, id string) error {
	return s.mutate(func(ds *core.Dataset) error {
		var ok bool
		switch c {
		case storage.Rooms:
			ds.Rooms, ok = remove(ds.Rooms, id, func(x core.Room) string { return x.ID })
		case storage.Renters:
			ds.Renters, ok = remove(ds.Renters, id, func(x core.Renter) string { return x.ID })
		case storage.RentPayments:
			ds.RentPayments, ok = remove(ds.RentPayments, id, func(x core.RentPayment) string { return x.ID })
		case storage.FamilyMembers:
			ds.FamilyMembers, ok = remove(ds.FamilyMembers, id, func(x core.FamilyMember) string { return x.ID })
		case storage.Payouts:
			ds.Payouts, ok = remove(ds.Payouts, id, func(x core.Payout) string { return x.ID })
		case storage.UtilityBills:
			ds.UtilityBills, ok = remove(ds.UtilityBills, id, func(x core.UtilityBill) string { return x.ID })
		case storage.Expenses:
			ds.Expenses, ok = remove(ds.Expenses, id, func(x core.Expense) string { return x.ID })
		default:
			return fmt.Errorf("unknown collection %q", c)
		}
		if !ok {
			return fmt.Errorf("%s %s: %w", c, id, storage.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) SetInitiationDate(_ context.Context, d core.Date) error {
	return s.mutate(func(ds *core.Dataset) error {
		ds.InitiationDate = d.StartOfDay()
		return nil
	})
}

func (s *Store) Replace(_ context.Context, next core.Dataset) error {
	return s.mutate(func(ds *core.Dataset) error {
		*ds = next.Clone()
		if ds.InitiationDate.IsZero() {
			ds.InitiationDate = core.DefaultInitiationDate
		}
		return nil
	})
}

func (s *Store) Clear(_ context.Context, initiation core.Date) error {
	return s.mutate(func(ds *core.Dataset) error {
		*ds = core.Dataset{InitiationDate: initiation.StartOfDay()}.Clone()
		return nil
	})
}

func (s *Store) SyncedRevision(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced, nil
}

func (s *Store) MarkSynced(_ context.Context, revision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if revision > s.synced {
		s.synced = revision
	}
	return nil
}

func (s *Store) Close() error { return nil }

// mutate applies fn to a working copy and commits it with a new revision only
// when fn succeeds.
func (s *Store) mutate(fn func(ds *core.Dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.ds.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.ds = next
	s.revision++
	return nil
}

func upsert[T any](items []T, item T, id func(T) string) []T {
	for i := range items {
		if id(items[i]) == id(item) {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func remove[T any](items []T, target string, id func(T) string) ([]T, bool) {
	for i := range items {
		if id(items[i]) == target {
			return append(items[:i], items[i+1:]...), true
		}
	}
	return items, false
}

var _ storage.Backend = (*Store)(nil)
