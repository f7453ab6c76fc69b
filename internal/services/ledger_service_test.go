package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/storage"
	"hisab/internal/storage/memory"
)

type fakePublisher struct {
	mu        sync.Mutex
	revisions []int64
	actions   []string
	err       error
}

func (p *fakePublisher) PublishDatasetChanged(_ context.Context, revision int64, action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revisions = append(p.revisions, revision)
	p.actions = append(p.actions, action)
	return p.err
}

type fakeRecorder struct {
	ok, failed map[string]int
}

func (r *fakeRecorder) RecordMutation(action string, _ int64, err error) {
	if r.ok == nil {
		r.ok, r.failed = map[string]int{}, map[string]int{}
	}
	if err != nil {
		r.failed[action]++
		return
	}
	r.ok[action]++
}

var today = core.NewDate(2024, 7, 15)

func baseDataset() core.Dataset {
	return core.Dataset{
		InitiationDate: core.NewDate(2024, 6, 1),
		Rooms: []core.Room{
			{ID: "r101", Number: "101", RentHistory: []core.TimeValue{{Amount: 8000, EffectiveDate: core.NewDate(2024, 1, 1)}}},
			{ID: "r102", Number: "102", RentHistory: []core.TimeValue{{Amount: 8500, EffectiveDate: core.NewDate(2024, 1, 1)}}},
		},
		Renters: []core.Renter{
			{ID: "t1", Name: "Karim", Status: core.RenterActive, OccupancyHistory: []core.OccupancyEntry{
				{RoomID: core.StrPtr("r101"), EffectiveDate: core.NewDate(2024, 6, 1)},
			}},
		},
		FamilyMembers: []core.FamilyMember{
			{ID: "fm1", Name: "Amina", ExpectedHistory: []core.TimeValue{{Amount: 10000, EffectiveDate: core.NewDate(2024, 1, 1)}}},
		},
	}
}

func newTestService(t *testing.T) (*LedgerService, *fakePublisher, *fakeRecorder) {
	t.Helper()
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	svc := NewLedgerService(memory.New(baseDataset()), pub, rec, LedgerConfig{
		Now:               func() core.Date { return today },
		DefaultInitiation: core.NewDate(2024, 1, 1),
	})
	return svc, pub, rec
}

func TestAddAndUpdateRoom(t *testing.T) {
	svc, pub, rec := newTestService(t)
	ctx := context.Background()

	ds, err := svc.AddRoom(ctx, RoomInput{ID: "r201", Number: " 201 ", Rent: 9000})
	if err != nil {
		t.Fatalf("AddRoom: %v", err)
	}
	room, ok := ds.FindRoom("r201")
	if !ok || room.Number != "201" || len(room.RentHistory) != 1 || !room.RentHistory[0].EffectiveDate.SameDay(today) {
		t.Fatalf("room = %+v", room)
	}

	ds, err = svc.UpdateRoom(ctx, RoomInput{ID: "r201", Number: "201A", Rent: 9000})
	if err != nil {
		t.Fatalf("UpdateRoom: %v", err)
	}
	room, _ = ds.FindRoom("r201")
	if room.Number != "201A" || len(room.RentHistory) != 1 {
		t.Errorf("unchanged rent should not add history: %+v", room)
	}

	ds, _ = svc.UpdateRoom(ctx, RoomInput{ID: "r201", Number: "201A", Rent: 9500})
	room, _ = ds.FindRoom("r201")
	if len(room.RentHistory) != 1 || room.RentHistory[0].Amount != 9500 {
		t.Errorf("same-day change should replace the entry: %+v", room.RentHistory)
	}

	if len(pub.revisions) != 3 || pub.revisions[2] != 3 || pub.actions[0] != ActionAddRoom {
		t.Errorf("published %v %v", pub.revisions, pub.actions)
	}
	if rec.ok[ActionUpdateRoom] != 2 {
		t.Errorf("recorded %+v", rec.ok)
	}
}

func TestMutationErrors(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"room without number", func() error { _, err := svc.AddRoom(ctx, RoomInput{Rent: 10}); return err }, core.ErrEmptyRoomNumber},
		{"negative rent", func() error { _, err := svc.AddRoom(ctx, RoomInput{Number: "9", Rent: -1}); return err }, ErrInvalidInput},
		{"unknown room", func() error { _, err := svc.UpdateRoom(ctx, RoomInput{ID: "nope", Number: "1"}); return err }, storage.ErrNotFound},
		{"occupied room delete", func() error { _, err := svc.DeleteRoom(ctx, "r101"); return err }, ledger.ErrRoomHasOccupant},
		{"occupied room assignment", func() error {
			_, err := svc.AddRenter(ctx, RenterInput{Name: "Sara", RoomID: core.StrPtr("r101")})
			return err
		}, ledger.ErrRoomOccupied},
		{"renter into missing room", func() error {
			_, err := svc.AddRenter(ctx, RenterInput{Name: "Sara", RoomID: core.StrPtr("r999")})
			return err
		}, core.ErrMissingReference},
		{"payment for unknown renter", func() error {
			_, err := svc.AddRentPayment(ctx, RentPaymentInput{RenterID: "t9", Amount: 10})
			return err
		}, core.ErrMissingReference},
		{"zero payment", func() error {
			_, err := svc.AddRentPayment(ctx, RentPaymentInput{RenterID: "t1", Amount: 0})
			return err
		}, core.ErrInvalidAmount},
		{"payment before tenancy", func() error {
			_, err := svc.AddRentPayment(ctx, RentPaymentInput{RenterID: "t1", Amount: 10, Month: core.NewDate(2024, 5, 1)})
			return err
		}, ledger.ErrRenterNotEligible},
		{"bad bill type", func() error {
			_, err := svc.AddUtilityBill(ctx, core.UtilityBill{Type: "Oil", Date: today, Amount: 5})
			return err
		}, core.ErrInvalidBillType},
		{"expense without date", func() error {
			_, err := svc.AddExpense(ctx, core.Expense{Category: core.CategoryOther, Amount: 5})
			return err
		}, core.ErrMissingDate},
		{"delete missing payout", func() error { _, err := svc.DeletePayout(ctx, "p404"); return err }, storage.ErrNotFound},
		{"zero initiation date", func() error { _, err := svc.UpdateInitiationDate(ctx, core.Date{}); return err }, core.ErrMissingDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if rev, _ := svc.Revision(ctx); rev != 0 {
		t.Errorf("failed mutations bumped revision to %d", rev)
	}
	if rec.failed[ActionAddRoom] != 2 {
		t.Errorf("failed = %+v", rec.failed)
	}
}

func TestRenterLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ds, err := svc.AddRenter(ctx, RenterInput{ID: "t2", Name: "Sara", RoomID: core.StrPtr("r102")})
	if err != nil {
		t.Fatalf("AddRenter: %v", err)
	}
	sara, _ := ds.FindRenter("t2")
	if sara.Status != core.RenterActive || len(sara.OccupancyHistory) != 1 {
		t.Fatalf("renter = %+v", sara)
	}

	ds, err = svc.UpdateRenter(ctx, RenterInput{ID: "t2", Name: "Sara B", RoomID: core.StrPtr("r102")})
	if err != nil {
		t.Fatalf("UpdateRenter: %v", err)
	}
	sara, _ = ds.FindRenter("t2")
	if sara.Name != "Sara B" || len(sara.OccupancyHistory) != 1 {
		t.Errorf("same room should not append occupancy: %+v", sara)
	}

	ds, err = svc.ArchiveRenter(ctx, "t2")
	if err != nil {
		t.Fatalf("ArchiveRenter: %v", err)
	}
	sara, _ = ds.FindRenter("t2")
	last, _ := sara.LastOccupancy()
	// Sara moved in today, so the move-out replaces that entry.
	if sara.Status != core.RenterArchived || last.RoomID != nil || !last.EffectiveDate.SameDay(today) || len(sara.OccupancyHistory) != 1 {
		t.Errorf("archived renter = %+v", sara)
	}
	if id, ok := ledger.RoomForRenter(sara, core.NewDate(2024, 12, 31)); ok {
		t.Errorf("archived renter still holds %q", id)
	}

	// Room 102 is free again, so another renter can move in.
	if _, err := svc.AddRenter(ctx, RenterInput{ID: "t3", Name: "Omar", RoomID: core.StrPtr("r102")}); err != nil {
		t.Fatalf("AddRenter after archive: %v", err)
	}

	// Reactivating Sara into the occupied room is a conflict.
	if _, err := svc.UpdateRenter(ctx, RenterInput{ID: "t2", Name: "Sara B", RoomID: core.StrPtr("r102")}); !errors.Is(err, ledger.ErrRoomOccupied) {
		t.Errorf("err = %v, want ErrRoomOccupied", err)
	}
	ds, err = svc.UpdateRenter(ctx, RenterInput{ID: "t2", Name: "Sara B"})
	if err != nil {
		t.Fatalf("reactivate without room: %v", err)
	}
	if sara, _ = ds.FindRenter("t2"); sara.Status != core.RenterActive {
		t.Errorf("update should reactivate: %+v", sara)
	}

	if _, err := svc.DeleteRenter(ctx, "t2"); err != nil {
		t.Errorf("DeleteRenter without payments: %v", err)
	}
}

func TestRentPayments(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ds, err := svc.AddRentPayment(ctx, RentPaymentInput{ID: "rp1", RenterID: "t1", Amount: 8000.004, Month: core.NewDate(2024, 6, 1)})
	if err != nil {
		t.Fatalf("AddRentPayment: %v", err)
	}
	p, _ := ds.FindRentPayment("rp1")
	if p.Amount != 8000 || !p.Date.SameDay(core.NewDate(2024, 6, 30)) || p.RoomNumber != "101" || p.RenterName != "Karim" {
		t.Errorf("past-month payment = %+v", p)
	}

	ds, _ = svc.AddRentPayment(ctx, RentPaymentInput{ID: "rp2", RenterID: "t1", Amount: 500, Month: core.NewDate(2024, 7, 1)})
	if p, _ = ds.FindRentPayment("rp2"); !p.Date.SameDay(today) {
		t.Errorf("current-month payment dated %s, want today", p.Date)
	}

	if _, err := svc.DeleteRenter(ctx, "t1"); !errors.Is(err, ledger.ErrRenterHasPayments) {
		t.Errorf("err = %v, want ErrRenterHasPayments", err)
	}

	// Re-point the payment to a renter without a room at that date.
	if _, err := svc.AddRenter(ctx, RenterInput{ID: "t2", Name: "Sara"}); err != nil {
		t.Fatal(err)
	}
	ds, err = svc.UpdateRentPayment(ctx, RentPaymentInput{ID: "rp1", RenterID: "t2", Amount: 7000})
	if err != nil {
		t.Fatalf("UpdateRentPayment: %v", err)
	}
	p, _ = ds.FindRentPayment("rp1")
	if p.RenterName != "Sara" || p.RoomNumber != core.UnknownRoomNumber || p.Amount != 7000 || !p.Date.SameDay(core.NewDate(2024, 6, 30)) {
		t.Errorf("updated payment = %+v", p)
	}

	ds, err = svc.DeleteRentPayment(ctx, "rp2")
	if err != nil || len(ds.RentPayments) != 1 {
		t.Errorf("DeleteRentPayment: %v, %d left", err, len(ds.RentPayments))
	}
}

func TestFamilyMembersAndPayouts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ds, err := svc.UpdateFamilyMember(ctx, FamilyMemberInput{ID: "fm1", Name: "Amina", Expected: 12000})
	if err != nil {
		t.Fatalf("UpdateFamilyMember: %v", err)
	}
	m, _ := ds.FindFamilyMember("fm1")
	if len(m.ExpectedHistory) != 2 || ledger.EffectiveValue(m.ExpectedHistory, today) != 12000 {
		t.Errorf("member = %+v", m)
	}

	ds, err = svc.AddPayout(ctx, PayoutInput{ID: "p1", FamilyMemberID: "fm1", Amount: 6000, Month: core.NewDate(2024, 6, 1), Details: " June "})
	if err != nil {
		t.Fatalf("AddPayout: %v", err)
	}
	p, _ := ds.FindPayout("p1")
	if p.FamilyMemberName != "Amina" || p.Details != "June" || !p.Date.SameDay(core.NewDate(2024, 6, 30)) {
		t.Errorf("payout = %+v", p)
	}

	if _, err := svc.AddFamilyMember(ctx, FamilyMemberInput{ID: "fm2", Name: "Yusuf", Expected: 5000}); err != nil {
		t.Fatal(err)
	}
	ds, err = svc.UpdatePayout(ctx, PayoutInput{ID: "p1", FamilyMemberID: "fm2", Amount: 6500})
	if err != nil {
		t.Fatalf("UpdatePayout: %v", err)
	}
	p, _ = ds.FindPayout("p1")
	if p.FamilyMemberName != "Yusuf" || p.Amount != 6500 || !p.Date.SameDay(core.NewDate(2024, 6, 30)) {
		t.Errorf("updated payout = %+v", p)
	}

	if _, err := svc.DeleteFamilyMember(ctx, "fm2"); !errors.Is(err, ledger.ErrMemberHasPayouts) {
		t.Errorf("err = %v, want ErrMemberHasPayouts", err)
	}
	if _, err := svc.DeleteFamilyMember(ctx, "fm1"); err != nil {
		t.Errorf("DeleteFamilyMember: %v", err)
	}
}

func TestBillsAndExpenses(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ds, err := svc.AddUtilityBill(ctx, core.UtilityBill{ID: "b1", Type: core.BillWater, Date: core.NewDate(2024, 6, 3), Amount: 1500})
	if err != nil {
		t.Fatalf("AddUtilityBill: %v", err)
	}
	ds, err = svc.UpdateUtilityBill(ctx, core.UtilityBill{ID: "b1", Type: core.BillGas, Date: core.NewDate(2024, 6, 4), Amount: 1600, Notes: "cylinder"})
	if err != nil {
		t.Fatalf("UpdateUtilityBill: %v", err)
	}
	if b, _ := ds.FindUtilityBill("b1"); b.Type != core.BillGas || b.Amount != 1600 {
		t.Errorf("bill = %+v", b)
	}
	if _, err := svc.UpdateUtilityBill(ctx, core.UtilityBill{ID: "b9", Type: core.BillGas, Date: today, Amount: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	ds, err = svc.AddExpense(ctx, core.Expense{Category: core.CategoryMaintenance, Date: today, Amount: 700, Details: "Plumber"})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if len(ds.Expenses) != 1 || ds.Expenses[0].ID == "" {
		t.Fatalf("expenses = %+v", ds.Expenses)
	}
	id := ds.Expenses[0].ID
	if _, err := svc.UpdateExpense(ctx, core.Expense{ID: id, Category: core.CategoryOther, Date: today, Amount: 750}); err != nil {
		t.Errorf("UpdateExpense: %v", err)
	}
	if ds, err = svc.DeleteExpense(ctx, id); err != nil || len(ds.Expenses) != 0 {
		t.Errorf("DeleteExpense: %v", err)
	}
	if ds, err = svc.DeleteUtilityBill(ctx, "b1"); err != nil || len(ds.UtilityBills) != 0 {
		t.Errorf("DeleteUtilityBill: %v", err)
	}
}

func TestInitiationDateAndClear(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	ds, err := svc.UpdateInitiationDate(ctx, core.NewDate(2024, 3, 1))
	if err != nil || !ds.InitiationDate.SameDay(core.NewDate(2024, 3, 1)) {
		t.Fatalf("UpdateInitiationDate: %v, %s", err, ds.InitiationDate)
	}

	ds, err = svc.ClearAllData(ctx)
	if err != nil {
		t.Fatalf("ClearAllData: %v", err)
	}
	if len(ds.Rooms)+len(ds.Renters)+len(ds.FamilyMembers) != 0 || !ds.InitiationDate.SameDay(core.NewDate(2024, 1, 1)) {
		t.Errorf("cleared dataset = %+v", ds)
	}
	if pub.actions[len(pub.actions)-1] != ActionClearAllData {
		t.Errorf("actions = %v", pub.actions)
	}

	ds, err = svc.Seed(ctx, baseDataset())
	if err != nil || len(ds.Rooms) != 2 {
		t.Errorf("Seed: %v, rooms %d", err, len(ds.Rooms))
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	svc, pub, _ := newTestService(t)
	pub.err = errors.New("broker down")

	if _, err := svc.AddRoom(context.Background(), RoomInput{Number: "301", Rent: 1}); err != nil {
		t.Errorf("AddRoom with failing publisher: %v", err)
	}
}

func TestNilCollaborators(t *testing.T) {
	svc := NewLedgerService(memory.New(baseDataset()), nil, nil, LedgerConfig{})
	if _, err := svc.AddRoom(context.Background(), RoomInput{Number: "301", Rent: 1}); err != nil {
		t.Errorf("AddRoom: %v", err)
	}
}

func TestReadOnly(t *testing.T) {
	svc := NewLedgerService(memory.New(baseDataset()), nil, nil, LedgerConfig{ReadOnly: true})
	ctx := context.Background()

	if _, err := svc.ClearAllData(ctx); !errors.Is(err, ErrReadOnly) {
		t.Errorf("err = %v, want ErrReadOnly", err)
	}
	if ds, err := svc.Sync(ctx); err != nil || len(ds.Rooms) != 2 {
		t.Errorf("Sync in read-only mode: %v", err)
	}
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddExpense(ctx, core.Expense{Category: core.CategoryOther, Date: today, Amount: 1}); err != nil {
				t.Errorf("AddExpense: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, r := range pub.revisions {
		if seen[r] {
			t.Errorf("revision %d published twice", r)
		}
		seen[r] = true
	}
	if rev, _ := svc.Revision(ctx); rev != 20 {
		t.Errorf("revision = %d, want 20", rev)
	}
}
