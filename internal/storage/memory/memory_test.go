package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hisab/internal/core"
	"hisab/internal/storage"
)

func TestNewDefaultsInitiationDate(t *testing.T) {
	s := New(core.Dataset{})
	ds, _ := s.Load(context.Background())
	if !ds.InitiationDate.SameDay(core.DefaultInitiationDate) {
		t.Errorf("initiation = %s", ds.InitiationDate)
	}
	if ds.Renters == nil {
		t.Error("renters should be an empty slice")
	}
}

func TestStoreSaveLoadIsolation(t *testing.T) {
	ctx := context.Background()
	s := New(core.Dataset{})

	room := core.Room{ID: "r1", Number: "1", RentHistory: []core.TimeValue{{Amount: 100, EffectiveDate: core.NewDate(2024, 1, 1)}}}
	if err := s.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}
	room.RentHistory[0].Amount = 999

	ds, _ := s.Load(ctx)
	if ds.Rooms[0].RentHistory[0].Amount != 100 {
		t.Error("store aliased the caller's history")
	}

	ds.Rooms[0].Number = "changed"
	again, _ := s.Load(ctx)
	if again.Rooms[0].Number != "1" {
		t.Error("Load returned shared state")
	}
}

func TestStoreUpsertDeleteAndRevision(t *testing.T) {
	ctx := context.Background()
	s := New(core.Dataset{})

	for _, id := range []string{"a", "b", "c"} {
		if err := s.SaveExpense(ctx, core.Expense{ID: id, Category: core.CategoryOther, Amount: 1, Date: core.NewDate(2024, 1, 1)}); err != nil {
			t.Fatalf("SaveExpense: %v", err)
		}
	}
	if err := s.SaveExpense(ctx, core.Expense{ID: "a", Category: core.CategoryOther, Amount: 2, Date: core.NewDate(2024, 1, 1)}); err != nil {
		t.Fatalf("SaveExpense: %v", err)
	}
	if err := s.Delete(ctx, storage.Expenses, "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	ds, _ := s.Load(ctx)
	if len(ds.Expenses) != 2 || ds.Expenses[0].ID != "a" || ds.Expenses[0].Amount != 2 || ds.Expenses[1].ID != "c" {
		t.Errorf("expenses = %+v", ds.Expenses)
	}
	if rev, _ := s.Revision(ctx); rev != 5 {
		t.Errorf("revision = %d, want 5", rev)
	}

	if err := s.Delete(ctx, storage.Expenses, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if rev, _ := s.Revision(ctx); rev != 5 {
		t.Errorf("failed delete bumped revision to %d", rev)
	}
}

func TestStoreDropsDerivedFields(t *testing.T) {
	ctx := context.Background()
	s := New(core.Dataset{})
	_ = s.SaveRenter(ctx, core.Renter{ID: "t1", Name: "A", Status: core.RenterActive, CumulativePayable: 500})

	ds, _ := s.Load(ctx)
	if ds.Renters[0].CumulativePayable != 0 {
		t.Error("cumulative payable should never be stored")
	}
}

func TestStoreClearAndReplace(t *testing.T) {
	ctx := context.Background()
	s := New(core.Dataset{Rooms: []core.Room{{ID: "r1", Number: "1"}}})

	if err := s.Clear(ctx, core.NewDate(2025, 1, 1)); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	ds, _ := s.Load(ctx)
	if len(ds.Rooms) != 0 || !ds.InitiationDate.SameDay(core.NewDate(2025, 1, 1)) {
		t.Errorf("after clear = %+v", ds)
	}

	if err := s.Replace(ctx, core.Dataset{Rooms: []core.Room{{ID: "r2", Number: "2"}}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	ds, _ = s.Load(ctx)
	if len(ds.Rooms) != 1 || ds.Rooms[0].ID != "r2" || !ds.InitiationDate.SameDay(core.DefaultInitiationDate) {
		t.Errorf("after replace = %+v", ds)
	}
}

func TestStoreMarkSynced(t *testing.T) {
	ctx := context.Background()
	s := New(core.Dataset{})
	_ = s.MarkSynced(ctx, 4)
	_ = s.MarkSynced(ctx, 2)
	if rev, _ := s.SyncedRevision(ctx); rev != 4 {
		t.Errorf("synced = %d, want 4", rev)
	}
}

func TestStoreConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := New(core.Dataset{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.SavePayout(ctx, core.Payout{ID: core.NewID(core.PrefixPayout), FamilyMemberID: "fm1", Amount: float64(i + 1), Date: core.NewDate(2024, 1, 1)})
		}(i)
	}
	wg.Wait()

	ds, _ := s.Load(ctx)
	if len(ds.Payouts) != 50 {
		t.Errorf("payouts = %d, want 50", len(ds.Payouts))
	}
	if rev, _ := s.Revision(ctx); rev != 50 {
		t.Errorf("revision = %d, want 50", rev)
	}
}
